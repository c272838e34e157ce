// Package logging builds the application logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tessro/spindle/internal/config"
)

// Rotation limits for the log file.
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// New creates a [log.Logger] from cfg, with timestamps enabled. When
// cfg.File is set, output goes to a size-rotated file instead of w; w
// defaults to [os.Stderr].
func New(cfg config.LogConfig, w io.Writer) (*log.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	opts := log.Options{ReportTimestamp: true}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, err
		}
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		}
		opts.Formatter = log.LogfmtFormatter
		opts.ReportCaller = true
	}

	logger := log.NewWithOptions(w, opts)
	if err := SetLevel(logger, cfg.Level); err != nil {
		return nil, err
	}
	return logger, nil
}

// SetLevel parses level and applies it to l. An empty level means info.
func SetLevel(l *log.Logger, level string) error {
	if level == "" {
		l.SetLevel(log.InfoLevel)
		return nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	l.SetLevel(lvl)
	return nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// DefaultFile returns the log file used when the terminal is owned by the
// UI and no file is configured.
func DefaultFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "spindle", "spindle.log")
}
