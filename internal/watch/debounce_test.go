package watch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDebouncer(window time.Duration) (*Debouncer, *fakeClock, *[]string) {
	var fired []string
	d := NewDebouncer(DefaultFilter(), window, func(p string) { fired = append(fired, p) })
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	d.now = clk.now
	return d, clk, &fired
}

func TestDebounceWindow(t *testing.T) {
	d, clk, fired := newTestDebouncer(2 * time.Second)

	assert.True(t, d.Handle("packages/client/src/App.tsx", false), "first change fires")

	clk.advance(1500 * time.Millisecond)
	assert.False(t, d.Handle("packages/client/src/App.tsx", false), "t=1.5s is inside the window")

	clk.advance(time.Second) // t=2.5s
	assert.True(t, d.Handle("packages/server/index.ts", false), "t=2.5s is past the window")

	assert.Equal(t, []string{"packages/client/src/App.tsx", "packages/server/index.ts"}, *fired)
}

func TestDebounceMeasuresFromLastFiredRestart(t *testing.T) {
	d, clk, fired := newTestDebouncer(2 * time.Second)
	d.Handle("a.ts", false)
	// Dropped events do not extend the window.
	clk.advance(1900 * time.Millisecond)
	d.Handle("b.ts", false)
	clk.advance(200 * time.Millisecond) // 2.1s after the first restart
	d.Handle("c.ts", false)
	assert.Equal(t, []string{"a.ts", "c.ts"}, *fired)
}

func TestDebounceBoundaryIsExclusive(t *testing.T) {
	d, clk, fired := newTestDebouncer(2 * time.Second)
	d.Handle("a.ts", false)
	clk.advance(2 * time.Second)
	assert.False(t, d.Handle("b.ts", false), "exactly the window length does not fire")
	assert.Len(t, *fired, 1)
}

func TestDebounceIgnoresFilteredEvents(t *testing.T) {
	d, _, fired := newTestDebouncer(2 * time.Second)
	assert.False(t, d.Handle("packages/server/index.py", false))
	assert.False(t, d.Handle("packages/client/src", true))
	assert.False(t, d.Handle("packages/client/node_modules/a.ts", false))
	assert.Empty(t, *fired)
	// A filtered event must not start a window.
	assert.True(t, d.Handle("packages/server/index.ts", false))
}

func TestNewDebouncerDefaultWindow(t *testing.T) {
	d := NewDebouncer(DefaultFilter(), 0, func(string) {})
	assert.Equal(t, DefaultDebounce, d.window)
}

func TestDebounceConcurrentEventsFireOnce(t *testing.T) {
	var n atomic.Int32
	d := NewDebouncer(DefaultFilter(), time.Hour, func(string) { n.Add(1) })
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Handle("packages/lib/index.ts", false)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), n.Load())
}
