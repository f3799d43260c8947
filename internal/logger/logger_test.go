package logger

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// helper to close non-nil closers and ignore errors
func closeIf(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestNew_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	log, c := New(Config{Level: "info"}, &buf)
	defer closeIf(c)
	log.Info("hello", "k", "v")
	log.Debug("hidden")
	out := buf.String()
	if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "k=v") {
		t.Fatalf("unexpected output: %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Fatalf("expected no ANSI codes for non-terminal writer: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be filtered at info level")
	}
}

func TestNew_ColorAlways(t *testing.T) {
	var buf bytes.Buffer
	log, c := New(Config{Color: "always"}, &buf)
	defer closeIf(c)
	log.Warn("careful")
	out := buf.String()
	if !strings.Contains(out, "\033[33mWARN\033[0m") {
		t.Fatalf("expected yellow WARN prefix, got %q", out)
	}
	if strings.Contains(out, "time=") {
		t.Fatalf("color handler should drop time attr: %q", out)
	}
}

func TestNew_AlsoWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "devrun.log")
	var buf bytes.Buffer
	log, c := New(Config{File: path}, &buf)
	log.Info("to-both")
	closeIf(c)

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), "to-both") {
		t.Fatalf("file missing record: %q", string(b))
	}
	if !strings.Contains(buf.String(), "to-both") {
		t.Fatalf("console missing record: %q", buf.String())
	}
}

func TestProcessWriter_WithDir(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir}
	w, err := cfg.ProcessWriter("CLIENT")
	if err != nil {
		t.Fatalf("ProcessWriter error: %v", err)
	}
	if w == nil {
		t.Fatalf("expected writer when Dir is set")
	}
	_, _ = w.Write([]byte("hello\n"))
	closeIf(w)
	if _, err := os.Stat(filepath.Join(dir, "client.log")); err != nil {
		t.Fatalf("client.log not created: %v", err)
	}
}

func TestProcessWriter_NoDir(t *testing.T) {
	w, err := Config{}.ProcessWriter("SERVER")
	if err != nil || w != nil {
		t.Fatalf("expected nil writer and nil error, got %v, %v", w, err)
	}
}

func TestProcessWriter_Defaults(t *testing.T) {
	w, _ := Config{Dir: t.TempDir()}.ProcessWriter("x")
	l, ok := w.(*lj.Logger)
	if !ok {
		t.Fatalf("writer is not lumberjack.Logger")
	}
	if l.MaxSize != 10 || l.MaxBackups != 3 || l.MaxAge != 7 {
		t.Fatalf("unexpected defaults: size=%d backups=%d age=%d", l.MaxSize, l.MaxBackups, l.MaxAge)
	}
	closeIf(w)
}

func TestProcessWriter_Overrides(t *testing.T) {
	cfg := Config{Dir: t.TempDir(), MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 11, Compress: true}
	w, _ := cfg.ProcessWriter("x")
	l := w.(*lj.Logger)
	if l.MaxSize != 1 || l.MaxBackups != 9 || l.MaxAge != 11 || !l.Compress {
		t.Fatalf("unexpected overrides: size=%d backups=%d age=%d compress=%t", l.MaxSize, l.MaxBackups, l.MaxAge, l.Compress)
	}
	closeIf(w)
}
