// Package log builds the process slog logger from configuration.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	charmlog "charm.land/log/v2"
	"github.com/rand/goalsolver/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel parses debug, info, warn or error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}

// New returns a logger configured by cfg. Output goes to cfg.File, rotated
// by size, or to fallback when no file is set. The returned closer releases
// the log file and must be called on shutdown.
func New(cfg config.LogConfig, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	out := fallback
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		out, closer = file, file
	}

	handler, err := newHandler(cfg.Format, level, out)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return slog.New(handler).With("component", "goalsolver"), closer, nil
}

func newHandler(format string, level slog.Level, w io.Writer) (slog.Handler, error) {
	switch format {
	case "", "text":
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}), nil
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	case "pretty":
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: true,
		}), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
