package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings for every file this package opens.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes where devrun writes its own diagnostics and, optionally,
// a raw copy of each child's output.
//
// File is the session log (slog records, uncolored). Dir holds per-process
// output logs named <label>.log. Rotation parameters follow lumberjack semantics.
type Config struct {
	Level      string `mapstructure:"level" json:"level"`
	Color      string `mapstructure:"color" json:"color"` // auto, always, never
	File       string `mapstructure:"file" json:"file"`
	Dir        string `mapstructure:"dir" json:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

// ParseLevel maps a level name to slog.Level. Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the session logger. Records go to w (colored per Config.Color)
// and, when File is set, to a rotating file as plain text. The returned
// closer releases the file and is never nil.
func New(c Config, w io.Writer) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}

	var h slog.Handler
	if c.useColor(w) {
		h = NewColorTextHandler(w, opts, false)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	if c.File == "" {
		return slog.New(h), nopCloser{}
	}
	if dir := filepath.Dir(c.File); dir != "" {
		_ = os.MkdirAll(dir, 0o750)
	}
	fw := c.rotating(c.File)
	return slog.New(fanout{h, slog.NewTextHandler(fw, opts)}), fw
}

// ProcessWriter returns a rotating writer for the raw output of the process
// with the given label, or nil when Dir is unset.
func (c Config) ProcessWriter(label string) (io.WriteCloser, error) {
	if c.Dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(c.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", c.Dir, err)
	}
	name := strings.ToLower(label) + ".log"
	return c.rotating(filepath.Join(c.Dir, name)), nil
}

func (c Config) rotating(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func (c Config) useColor(w io.Writer) bool {
	switch strings.ToLower(c.Color) {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
