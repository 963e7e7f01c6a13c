// Package logging builds the charmbracelet loggers fwhelper writes to.
// FWHELPER_LOG_LEVEL, FWHELPER_LOG_PREFIX and FWHELPER_LOG_TO_FILE tune
// them without a config file.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerCloser is a logger that owns its output file, if any.
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close releases the output file. Loggers on stderr have nothing to close.
func (lc *LoggerCloser) Close() error {
	if lc.closer == nil {
		return nil
	}
	return lc.closer.Close()
}

var levels = map[string]log.Level{
	"debug": log.DebugLevel,
	"info":  log.InfoLevel,
	"warn":  log.WarnLevel,
	"error": log.ErrorLevel,
}

// ParseLevel returns the level called s. The empty string is info.
func ParseLevel(s string) (log.Level, error) {
	if s == "" {
		return log.InfoLevel, nil
	}
	lvl, ok := levels[s]
	if !ok {
		return log.InfoLevel, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
	return lvl, nil
}

// NewLoggerWithWriter returns a logger on w. An unknown FWHELPER_LOG_LEVEL
// leaves the level at info.
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	lvl, _ := ParseLevel(os.Getenv("FWHELPER_LOG_LEVEL"))
	lg.SetLevel(lvl)

	prefix, ok := os.LookupEnv("FWHELPER_LOG_PREFIX")
	if !ok {
		prefix = "fwhelper "
	}

	lc := &LoggerCloser{Logger: lg.WithPrefix(prefix)}
	if c, ok := w.(io.Closer); ok && w != os.Stderr {
		lc.closer = c
	}
	return lc
}

// NewLogger returns a logger on stderr, or on fwhelper-<timestamp>.log in
// the working directory when FWHELPER_LOG_TO_FILE is 1 and the file can be
// created.
func NewLogger() *LoggerCloser {
	if os.Getenv("FWHELPER_LOG_TO_FILE") != "1" {
		return NewLoggerWithWriter(os.Stderr)
	}
	name := "fwhelper-" + time.Now().Format("20060102-150405") + ".log"
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return NewLoggerWithWriter(os.Stderr)
	}
	return NewLoggerWithWriter(f)
}
