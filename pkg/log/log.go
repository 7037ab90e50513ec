package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config selects the level and output format for a process logger.
type Config struct {
	// Level is one of trace|debug|info|warn|error. Empty means info.
	Level string
	// Format is json or text. Empty means json.
	Format string
}

// New builds a zerolog.Logger from cfg, writing to os.Stdout.
func New(cfg Config) (zerolog.Logger, error) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter builds a zerolog.Logger from cfg against an explicit writer.
func NewWithWriter(cfg Config, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log: invalid level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	switch strings.ToLower(cfg.Format) {
	case "", "json":
	case "text", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	default:
		return zerolog.Nop(), fmt.Errorf("log: invalid format %q; use json or text", cfg.Format)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// Nop returns a logger that discards everything. Used in tests and as a
// safe zero-ish default for optional loggers.
func Nop() zerolog.Logger { return zerolog.Nop() }

// Component returns a child logger tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// RedirectStdLog routes the standard library's global logger through l so
// that third-party packages logging via log.Printf share one output.
func RedirectStdLog(l zerolog.Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(l)
}
