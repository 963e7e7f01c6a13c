package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"

	"fwhelper/internal/logging"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
	logger      *logging.LoggerCloser
)

// Setup installs the process logger and routes log/slog through it. An
// empty logFile means stderr, subject to FWHELPER_LOG_TO_FILE.
func Setup(logFile string, debug bool) {
	initOnce.Do(func() {
		switch {
		case logFile != "":
			f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
			if err != nil {
				logger = logging.NewLogger()
				logger.Warn("Falling back to stderr", "file", logFile, "err", err)
				break
			}
			logger = logging.NewLoggerWithWriter(f)
		default:
			logger = logging.NewLogger()
		}
		if debug {
			logger.SetLevel(charmlog.DebugLevel)
			logger.SetReportCaller(true)
		}

		slog.SetDefault(slog.New(logger.Logger))
		initialized.Store(true)
	})
}

// Logger returns the process logger, or a discarding one before Setup.
func Logger() *charmlog.Logger {
	if !Initialized() {
		return charmlog.New(io.Discard)
	}
	return logger.Logger
}

// Close flushes and closes a file-backed logger.
func Close() error {
	if !Initialized() {
		return nil
	}
	return logger.Close()
}

func Initialized() bool {
	return initialized.Load()
}

func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if cleanup != nil {
			cleanup()
		}
	}
}
