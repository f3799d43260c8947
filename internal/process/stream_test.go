package process

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/filosign-dapp/devrun/internal/console"
	"github.com/stretchr/testify/assert"
)

func TestStreamLongLinesAndPartialTail(t *testing.T) {
	long := strings.Repeat("x", 3<<20)
	in := "first\r\n" + long + "\nlast without newline"
	out := &syncBuffer{}
	tee := &syncBuffer{}

	Stream(strings.NewReader(in), "SERVER", console.New(out), tee)

	got := out.String()
	assert.Equal(t, "[SERVER] first\n[SERVER] "+long+"\n[SERVER] last without newline\n", got)
	assert.Equal(t, "first\n"+long+"\nlast without newline\n", tee.String())
}

// failingReader returns data, then an error once, then more data.
type failingReader struct {
	calls   int
	drained bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	f.calls++
	switch f.calls {
	case 1:
		return copy(p, "ok\n"), nil
	case 2:
		return 0, errors.New("read failed")
	case 3:
		f.drained = true
		return copy(p, "dropped\n"), nil
	default:
		return 0, io.EOF
	}
}

func TestStreamGoesQuietOnReadErrorAndDrains(t *testing.T) {
	out := &syncBuffer{}
	r := &failingReader{}
	Stream(r, "CLIENT", console.New(out), nil)
	assert.Equal(t, "[CLIENT] ok\n", out.String())
	assert.True(t, r.drained, "remaining output must be consumed")
}
