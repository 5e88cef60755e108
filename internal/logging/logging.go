// Package logging configures the process-wide structured logger.
//
// Everything logs to stderr: stdout carries the MCP transport when serving.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Config selects level and output format.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json | logfmt
}

// DefaultConfig logs at info in text form.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text"}
}

// Init builds the root logger and installs it as the default.
func Init(cfg Config, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}

	opts := log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "memory-engine",
	}
	switch cfg.Format {
	case "json":
		opts.Formatter = log.JSONFormatter
	case "logfmt":
		opts.Formatter = log.LogfmtFormatter
	default:
		opts.Formatter = log.TextFormatter
	}

	l := log.NewWithOptions(w, opts)
	log.SetDefault(l)
	if err != nil && cfg.Level != "" {
		l.Warn("unknown log level, using info", "level", cfg.Level)
	}
	return l
}

// For returns a child of the current default logger tagged with a component.
func For(component string) *log.Logger {
	return log.Default().With("component", component)
}
