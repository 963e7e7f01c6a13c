// Package config loads fwhelper settings from a JSON file and the
// environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	charmlog "github.com/charmbracelet/log"

	"fwhelper/internal/analysis"
	"fwhelper/internal/detectors"
	"fwhelper/internal/logging"
	"fwhelper/internal/sigscan"
)

// SignatureOverride replaces the built-in signature of one kind.
type SignatureOverride struct {
	Pattern string `json:"pattern" jsonschema:"title=Pattern,description=Hex bytes separated by spaces; ?? matches any byte,example=d0 83 d0 82 f8 e4 93"`
	Offset  int    `json:"offset,omitempty" jsonschema:"title=Offset,description=Added to the match address to get the function entry"`
}

// Config represents configuration for the fwhelper tool
type Config struct {
	Kinds        []string                     `json:"kinds,omitempty" jsonschema:"title=Kinds,description=Function kinds to process in order,enum=dword-copy,enum=switch-case,enum=u32-write"`
	Base         uint32                       `json:"base,omitempty" jsonschema:"title=Base,description=CODE address of the first image byte,maximum=65535"`
	Offset       uint64                       `json:"offset,omitempty" jsonschema:"title=Offset,description=File offset of the first code byte"`
	CodeSize     uint64                       `json:"code_size,omitempty" jsonschema:"title=Code Size,description=Number of code bytes; 0 means the rest of the file"`
	Container    bool                         `json:"container,omitempty" jsonschema:"title=Container,description=Read offset and code size from the vendor firmware container (size prefix + magic + checksum)"`
	EntryPoints  []uint32                     `json:"entry_points,omitempty" jsonschema:"title=Entry Points,description=Extra CODE addresses to disassemble from besides the interrupt vectors"`
	SwitchLayout string                       `json:"switch_layout,omitempty" jsonschema:"title=Switch Layout,description=Encoding of switch tables,enum=keyed,enum=overlaid,default=keyed"`
	Signatures   map[string]SignatureOverride `json:"signatures,omitempty" jsonschema:"title=Signatures,description=Per-kind signature overrides"`
	LogLevel     string                       `json:"log_level,omitempty" jsonschema:"title=Log Level,description=Minimum level logged; debug overrides it,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Debug        bool                         `json:"debug,omitempty" jsonschema:"title=Debug,description=Enable debug logging"`
}

// Default returns the configuration used when nothing is set. Only the
// dword-copy kind runs by default; the other kinds are opt-in.
func Default() *Config {
	return &Config{
		Kinds:        []string{string(analysis.KindDwordCopy)},
		SwitchLayout: detectors.LayoutKeyed.String(),
	}
}

// Load reads the JSON file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv reads FWHELPER_KINDS (comma separated), FWHELPER_BASE and
// FWHELPER_SWITCH_LAYOUT.
func (c *Config) applyEnv() error {
	if v := os.Getenv("FWHELPER_KINDS"); v != "" {
		c.Kinds = SplitList(v)
	}
	if v := os.Getenv("FWHELPER_BASE"); v != "" {
		base, err := ParseAddr(v)
		if err != nil {
			return fmt.Errorf("FWHELPER_BASE: %w", err)
		}
		c.Base = base
	}
	if v := os.Getenv("FWHELPER_SWITCH_LAYOUT"); v != "" {
		c.SwitchLayout = v
	}
	return nil
}

// Validate checks every field that has a restricted domain.
func (c *Config) Validate() error {
	if _, err := c.ParsedKinds(); err != nil {
		return err
	}
	if _, err := c.Layout(); err != nil {
		return err
	}
	if _, err := c.ParsedSignatures(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Base > 0xffff {
		return fmt.Errorf("base %#x outside CODE space", c.Base)
	}
	return nil
}

// ParsedKinds returns the configured kinds in order.
func (c *Config) ParsedKinds() ([]analysis.Kind, error) {
	kinds := make([]analysis.Kind, 0, len(c.Kinds))
	for _, s := range c.Kinds {
		k, err := analysis.ParseKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Level returns the log level, debug when Debug is set.
func (c *Config) Level() charmlog.Level {
	if c.Debug {
		return charmlog.DebugLevel
	}
	lvl, _ := logging.ParseLevel(c.LogLevel)
	return lvl
}

// Layout returns the switch table layout.
func (c *Config) Layout() (detectors.Layout, error) {
	return detectors.ParseLayout(c.SwitchLayout)
}

// ParsedSignatures compiles the signature overrides.
func (c *Config) ParsedSignatures() (map[analysis.Kind]sigscan.Signature, error) {
	out := make(map[analysis.Kind]sigscan.Signature, len(c.Signatures))
	for name, o := range c.Signatures {
		k, err := analysis.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("signatures: %w", err)
		}
		sig, err := sigscan.Parse(name, o.Pattern, o.Offset)
		if err != nil {
			return nil, fmt.Errorf("signatures.%s: %w", name, err)
		}
		out[k] = sig
	}
	return out, nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ParseAddr parses a 16-bit address in decimal or 0x hex.
func ParseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}
