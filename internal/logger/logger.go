// Package logger builds the slog.Logger the scheduler uses for its own
// operational log (as opposed to the Log notifier sink, which records
// job lifecycle events). File rotation follows the teacher's lumberjack
// configuration, trimmed to a single destination since there is no
// per-process stdout/stderr split in an in-process scheduler.
package logger

import (
	"io"
	"log/slog"
	"os"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation limits, mirroring the teacher's process-log defaults.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes the scheduler's own operational log destination. A
// zero Config logs to stdout, colored and unrotated.
type Config struct {
	File       string // path to the operational log file; empty means stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Level      slog.Level
}

// New builds a slog.Logger per Config. When File is set, output is
// rotated via lumberjack; otherwise it writes to stdout through a
// ColorTextHandler for interactive use.
func New(cfg Config) *slog.Logger {
	var w io.Writer = os.Stdout
	var handler slog.Handler

	if cfg.File != "" {
		w = &lj.Logger{
			Filename:   cfg.File,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   cfg.Compress,
		}
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})
	} else {
		handler = NewColorTextHandler(w, &slog.HandlerOptions{Level: cfg.Level}, true)
	}

	return slog.New(handler)
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
