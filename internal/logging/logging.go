// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dshills/plugbus/internal/config"
)

// Logger is a slog.Logger with the writer it owns.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New builds a logger from cfg. Output goes to a rotating file when
// cfg.File is set and to stderr otherwise.
func New(cfg config.Log, stderr io.Writer) (*Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	var (
		w      = stderr
		closer io.Closer
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w, closer = rotating, rotating
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == config.FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h), closer: closer}, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
