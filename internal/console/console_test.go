package console

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabeledPlainWriter(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	c.Labeled("CLIENT", "vite ready")
	c.Labeled("WORKER", "custom label")
	assert.Equal(t, "[CLIENT] vite ready\n[WORKER] custom label\n", buf.String())
}

func TestPrintfAddsNewline(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	c.Printf("👀 Watching: %s", "packages/server")
	c.Println("✅ Processes stopped")
	assert.Equal(t, "👀 Watching: packages/server\n✅ Processes stopped\n", buf.String())
}

func TestPrintLeavesLineOpen(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	c.Print("Continue without file watching? (y/N) ")
	assert.Equal(t, "Continue without file watching? (y/N) ", buf.String())
}

func TestConcurrentLinesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	var wg sync.WaitGroup
	for _, label := range []string{"CLIENT", "SERVER"} {
		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Labeled(label, strings.Repeat("x", 64))
			}
		}(label)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 400)
	for _, l := range lines {
		ok := l == "[CLIENT] "+strings.Repeat("x", 64) || l == "[SERVER] "+strings.Repeat("x", 64)
		if !ok {
			t.Fatalf("interleaved line: %q", l)
		}
	}
}
