package watch

import (
	"sync"
	"time"

	"github.com/filosign-dapp/devrun/internal/metrics"
)

// DefaultDebounce is the minimum spacing between two restarts.
const DefaultDebounce = 2 * time.Second

// Debouncer fires restart for the first relevant change and drops every
// further change until the window has elapsed. Dropped changes are not
// replayed.
type Debouncer struct {
	filter  Filter
	window  time.Duration
	restart func(path string)
	now     func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewDebouncer returns a Debouncer calling restart with the triggering path.
// A non-positive window selects DefaultDebounce.
func NewDebouncer(f Filter, window time.Duration, restart func(path string)) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{filter: f, window: window, restart: restart, now: time.Now}
}

// Handle processes one change event and reports whether it fired a restart.
// The restart runs synchronously on the caller's goroutine.
func (d *Debouncer) Handle(path string, isDir bool) bool {
	if !d.filter.ShouldRestart(path, isDir) {
		metrics.IncChangeEvent(metrics.ChangeFiltered)
		return false
	}

	d.mu.Lock()
	now := d.now()
	if now.Sub(d.last) <= d.window {
		d.mu.Unlock()
		metrics.IncChangeEvent(metrics.ChangeDebounced)
		return false
	}
	d.last = now
	d.mu.Unlock()

	metrics.IncChangeEvent(metrics.ChangeAccepted)
	d.restart(path)
	return true
}
