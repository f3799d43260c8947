package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/filosign-dapp/devrun/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	out := &syncBuffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "devrun")
	assert.Contains(t, out, "--no-watch")
	assert.Contains(t, out, "--metrics-listen")
}

func TestMissingMarkerFails(t *testing.T) {
	_, err := execute(t, "--root", t.TempDir(), "--no-watch")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrMarkerMissing)
	assert.Equal(t, "package.json not found. Please run from the project root.", err.Error())
}

func TestInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devrun.toml"), []byte("stop_timeout = \"-1s\"\n"), 0o644))
	_, err := execute(t, "--root", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop_timeout must be positive")
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "packages", "server"), 0o755))

	out, err := execute(t, "config", "--root", dir, "--log-level", "debug")
	require.NoError(t, err)

	var got struct {
		Root   string `json:"root"`
		Client struct {
			Command string `json:"command"`
		} `json:"client"`
		Log struct {
			Level string `json:"level"`
		} `json:"log"`
	}
	require.NoError(t, json.NewDecoder(strings.NewReader(out)).Decode(&got))
	assert.Equal(t, dir, got.Root)
	assert.Equal(t, "bun run client:dev", got.Client.Command)
	assert.Equal(t, "debug", got.Log.Level)
	assert.Contains(t, out, "ok      packages/server")
	assert.Contains(t, out, "missing packages/lib")
}

func TestRunEndsWhenChildExits(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix sleep")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0o644))

	out, err := execute(t, "--root", dir, "--no-watch", "--client-cmd", "true", "--server-cmd", "sleep 30")
	require.NoError(t, err)
	assert.Contains(t, out, "❌ Client process stopped")
	assert.Contains(t, out, "✅ Processes stopped")
}

func TestSpawnFailureExitsCleanly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix sleep")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0o644))

	out, err := execute(t, "--root", dir, "--no-watch", "--client-cmd", "/nonexistent/devrun-client", "--server-cmd", "sleep 30")
	require.NoError(t, err)
	assert.Contains(t, out, "❌ Error starting processes")
	assert.Contains(t, out, "⚠️  One or more processes have stopped unexpectedly")
	assert.Contains(t, out, "❌ Client process stopped")
}
