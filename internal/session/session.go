// Package session drives one development session: precondition checks, the
// process pair, the file watcher and the liveness loop that ends the session.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/filosign-dapp/devrun/internal/config"
	"github.com/filosign-dapp/devrun/internal/console"
	"github.com/filosign-dapp/devrun/internal/supervisor"
	"github.com/filosign-dapp/devrun/internal/watch"
)

// State is the lifecycle phase of a Controller.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var (
	// ErrMarkerMissing is returned when the project marker file is absent.
	ErrMarkerMissing = errors.New("project marker not found")
	// ErrWatchDeclined is returned when file watching is unavailable and the
	// user chose not to continue without it.
	ErrWatchDeclined = errors.New("continuing without file watching was declined")
)

// MarkerError reports the missing marker file. It matches ErrMarkerMissing.
type MarkerError struct {
	Marker string
}

func (e *MarkerError) Error() string {
	return fmt.Sprintf("%s not found. Please run from the project root.", e.Marker)
}

func (e *MarkerError) Unwrap() error { return ErrMarkerMissing }

// Options tune how a session reacts to a missing watch capability.
type Options struct {
	NoWatch   bool         // skip capability detection entirely
	AssumeYes bool         // answer the fallback prompt with yes
	In        io.Reader    // prompt input; nil reads os.Stdin
	Open      watch.Opener // nil uses fsnotify.NewWatcher
}

// Controller owns the state of one session.
type Controller struct {
	cfg     *config.Config
	opts    Options
	console *console.Console
	log     *slog.Logger

	state   atomic.Int32
	pair    *supervisor.Pair
	watcher *watch.Watcher
}

// New returns a Controller in StateInit. cfg is expected to be validated.
func New(cfg *config.Config, opts Options, c *console.Console, log *slog.Logger) *Controller {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	return &Controller{cfg: cfg, opts: opts, console: c, log: log}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	c.log.Debug("session state", "state", s)
}

// Pair returns the supervised process pair; nil before Run has started it.
func (c *Controller) Pair() *supervisor.Pair { return c.pair }

// Run executes the session until a child exits on its own, fails to spawn,
// or ctx is cancelled. It returns nil after any of those; precondition
// failures return ErrMarkerMissing or ErrWatchDeclined before anything is
// spawned.
func (c *Controller) Run(ctx context.Context) error {
	c.setState(StateInit)
	c.console.Printf("🏗️  %s Development Server", filepath.Base(c.cfg.Root))

	if _, err := os.Stat(c.cfg.MarkerPath()); err != nil {
		c.setState(StateStopped)
		return &MarkerError{Marker: c.cfg.Marker}
	}

	capability, err := c.detect()
	if err != nil {
		c.setState(StateStopped)
		return err
	}

	environ, err := c.cfg.Environment()
	if err != nil {
		c.closeCapability(capability)
		c.setState(StateStopped)
		return err
	}
	c.pair = supervisor.New(supervisor.Options{
		Client:       c.cfg.ClientSpec(),
		Server:       c.cfg.ServerSpec(),
		Env:          environ,
		Log:          c.cfg.Log,
		StopTimeout:  c.cfg.StopTimeout,
		RestartDelay: c.cfg.RestartDelay,
	}, c.console, c.log)

	c.setState(StateRunning)
	if err := c.pair.Start(); err != nil {
		// The pair is empty again; the first poll reports it and shuts down.
		c.log.Debug("pair start failed", "err", err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	var watching sync.WaitGroup
	switch cp := capability.(type) {
	case watch.Available:
		if c.startWatcher(watchCtx, cp, &watching) {
			c.console.Println("📡 File watcher active. Press Ctrl+C to stop.")
		} else {
			c.console.Println("⚠️  File watching disabled. Press Ctrl+C to stop.")
		}
	case watch.Unavailable, nil:
		c.console.Println("⚠️  File watching disabled. Press Ctrl+C to stop.")
	}

	c.poll(ctx)
	c.shutdown(stopWatch, &watching)
	return nil
}

// detect resolves the watch capability, prompting when it is unavailable.
// A nil Capability means watching is off by choice.
func (c *Controller) detect() (watch.Capability, error) {
	if c.opts.NoWatch || !c.cfg.Watch.Enabled {
		c.log.Debug("file watching disabled by configuration")
		return nil, nil
	}
	capability := watch.Detect(c.opts.Open)
	if u, ok := capability.(watch.Unavailable); ok {
		c.console.Printf("❌ File watching is unavailable: %v", u.Err)
		c.console.Println("   On Linux, raise fs.inotify.max_user_watches and fs.inotify.max_user_instances, or pass --no-watch.")
		if !c.confirm("Continue without file watching? (y/N) ") {
			return nil, ErrWatchDeclined
		}
	}
	return capability, nil
}

func (c *Controller) confirm(prompt string) bool {
	if c.opts.AssumeYes {
		c.console.Printf("%sy", prompt)
		return true
	}
	c.console.Print(prompt)
	line, err := bufio.NewReader(c.opts.In).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (c *Controller) closeCapability(cp watch.Capability) {
	if a, ok := cp.(watch.Available); ok {
		_ = a.FS.Close()
	}
}

func (c *Controller) startWatcher(ctx context.Context, a watch.Available, wg *sync.WaitGroup) bool {
	filter := watch.Filter{Extensions: c.cfg.Watch.Extensions, Exclude: c.cfg.Watch.Exclude}
	deb := watch.NewDebouncer(filter, c.cfg.Watch.Debounce, c.onChange)
	w := watch.New(a.FS, deb, filter, c.log)

	dirs, err := w.Register(c.cfg.Root, c.cfg.Watch.Paths)
	if err != nil {
		c.log.Warn("file watcher registration failed", "err", err)
		_ = w.Close()
		return false
	}
	for _, d := range dirs {
		c.console.Printf("👀 Watching: %s", d)
	}
	if len(dirs) == 0 {
		c.log.Warn("none of the watch paths exist", "root", c.cfg.Root, "paths", c.cfg.Watch.Paths)
	}

	c.watcher = w
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()
	return true
}

func (c *Controller) onChange(path string) {
	c.console.Printf("📝 File changed: %s", path)
	if err := c.pair.Restart(); err != nil {
		c.log.Error("restart failed", "err", err)
	}
}

// poll returns when ctx is done or a child has exited.
func (c *Controller) poll(ctx context.Context) {
	t := time.NewTicker(c.cfg.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.console.Println("🛑 Received interrupt signal, shutting down...")
			return
		case <-t.C:
			dead := c.pair.Dead()
			if len(dead) == 0 {
				continue
			}
			c.console.Println("⚠️  One or more processes have stopped unexpectedly")
			for _, label := range dead {
				switch label {
				case supervisor.Client:
					c.console.Println("❌ Client process stopped")
				case supervisor.Server:
					c.console.Println("❌ Server process stopped")
				}
				if p := c.pair.Process(label); p != nil {
					c.log.Info("process exited", "label", label, "pid", p.PID(), "err", p.ExitErr())
				}
			}
			return
		}
	}
}

// shutdown stops watching first so no restart can begin after the pair is
// stopped, then stops the pair. An in-flight restart completes before Stop
// proceeds.
func (c *Controller) shutdown(stopWatch context.CancelFunc, watching *sync.WaitGroup) {
	c.setState(StateShuttingDown)
	if stopWatch != nil {
		stopWatch()
	}
	if c.watcher != nil {
		if err := c.watcher.Close(); err != nil {
			c.log.Debug("close file watcher", "err", err)
		}
	}
	if watching != nil {
		watching.Wait()
	}
	if c.pair != nil {
		_ = c.pair.Stop()
	}
	c.setState(StateStopped)
}
