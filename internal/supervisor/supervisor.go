// Package supervisor owns the CLIENT/SERVER process pair of a development
// session: starting both, stopping both, and restarting them as a unit.
package supervisor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/filosign-dapp/devrun/internal/console"
	"github.com/filosign-dapp/devrun/internal/env"
	"github.com/filosign-dapp/devrun/internal/logger"
	"github.com/filosign-dapp/devrun/internal/metrics"
	"github.com/filosign-dapp/devrun/internal/process"
)

// Labels of the two managed processes.
const (
	Client = "CLIENT"
	Server = "SERVER"
)

// Defaults used when Options leaves a duration at zero.
const (
	DefaultStopTimeout  = 5 * time.Second
	DefaultRestartDelay = 1 * time.Second
)

// streamDrain bounds how long Stop waits for a streamer to flush before
// closing the process output log.
const streamDrain = 500 * time.Millisecond

// Options configures a Pair.
type Options struct {
	Client       process.Spec
	Server       process.Spec
	Env          *env.Env // nil: children inherit the environment unchanged
	Log          logger.Config
	StopTimeout  time.Duration
	RestartDelay time.Duration
}

type member struct {
	spec process.Spec
	proc *process.Process
	tee  io.WriteCloser
}

// Pair supervises the client and server processes. Start, Stop and Restart
// are serialized; Dead may be called concurrently with any of them.
type Pair struct {
	opts    Options
	console *console.Console
	log     *slog.Logger

	opMu sync.Mutex // serializes Start/Stop/Restart

	mu         sync.Mutex // guards members and restarting
	members    [2]member
	restarting bool

	sleep func(time.Duration)
	spawn func(process.Spec, []string, *console.Console, io.Writer) (*process.Process, error)
}

// New returns a Pair with nothing running.
func New(opts Options, c *console.Console, log *slog.Logger) *Pair {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.Client.Label == "" {
		opts.Client.Label = Client
	}
	if opts.Server.Label == "" {
		opts.Server.Label = Server
	}
	return &Pair{
		opts:    opts,
		console: c,
		log:     log,
		members: [2]member{{spec: opts.Client}, {spec: opts.Server}},
		sleep:   time.Sleep,
		spawn:   process.Start,
	}
}

// Start spawns both processes. If either fails to spawn, whatever was started
// is stopped again and the spawn error is returned; there is no retry.
func (p *Pair) Start() error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	return p.start()
}

// Stop terminates both processes (graceful, then forced after StopTimeout)
// and clears the handles. It is idempotent. The returned error aggregates
// every failed termination step; it is informational and has already been
// logged.
func (p *Pair) Stop() error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	return p.stop()
}

// Restart stops both processes, waits RestartDelay so ports and file handles
// are released, then starts them again.
func (p *Pair) Restart() error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.setRestarting(true)
	defer p.setRestarting(false)

	p.console.Println("🔄 Restarting processes due to file changes...")
	metrics.IncRestart()
	if err := p.stop(); err != nil {
		p.log.Debug("stop during restart reported errors", "err", err)
	}
	p.sleep(p.opts.RestartDelay)
	return p.start()
}

// Dead returns the labels of processes that are not running. While a restart
// is in progress the pair is considered healthy and Dead returns nil.
func (p *Pair) Dead() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.restarting {
		return nil
	}
	var dead []string
	for _, m := range p.members {
		if m.proc == nil || !m.proc.Alive() {
			dead = append(dead, m.spec.Label)
		}
	}
	return dead
}

// Process returns the current handle for label, or nil.
func (p *Pair) Process(label string) *process.Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.members {
		if m.spec.Label == label {
			return m.proc
		}
	}
	return nil
}

func (p *Pair) start() error {
	p.console.Println("🚀 Starting client and server...")
	for i := range p.members {
		spec := p.members[i].spec
		tee, err := p.opts.Log.ProcessWriter(spec.Label)
		if err != nil {
			p.log.Warn("process output log unavailable", "label", spec.Label, "err", err)
		}
		proc, err := p.spawn(spec, p.environ(spec), p.console, tee)
		if err != nil {
			if tee != nil {
				_ = tee.Close()
			}
			err = fmt.Errorf("start %s: %w", spec.Label, err)
			p.console.Printf("❌ Error starting processes: %v", err)
			p.log.Error("spawn failed", "label", spec.Label, "command", spec.Command, "err", err)
			_ = p.stop()
			return err
		}
		p.log.Debug("process started", "label", spec.Label, "pid", proc.PID(), "command", spec.Command)

		p.mu.Lock()
		p.members[i].proc = proc
		p.members[i].tee = tee
		p.mu.Unlock()
	}
	p.console.Println("✅ Both processes started successfully!")
	return nil
}

func (p *Pair) stop() error {
	p.mu.Lock()
	members := p.members
	p.mu.Unlock()

	if members[0].proc == nil && members[1].proc == nil {
		return nil
	}

	p.console.Println("🛑 Stopping processes...")
	var errs []error
	for _, m := range members {
		if m.proc == nil {
			continue
		}
		if err := m.proc.Stop(p.opts.StopTimeout); err != nil {
			errs = append(errs, err)
		}
		m.proc.WaitStream(streamDrain)
		if m.tee != nil {
			if err := m.tee.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s output log: %w", m.spec.Label, err))
			}
		}
	}

	p.mu.Lock()
	for i := range p.members {
		p.members[i].proc = nil
		p.members[i].tee = nil
	}
	p.mu.Unlock()

	err := errors.Join(errs...)
	if err != nil {
		p.log.Warn("errors while stopping processes", "err", err)
	}
	p.console.Println("✅ Processes stopped")
	return err
}

func (p *Pair) setRestarting(v bool) {
	p.mu.Lock()
	p.restarting = v
	p.mu.Unlock()
}

func (p *Pair) environ(spec process.Spec) []string {
	if p.opts.Env == nil {
		if len(spec.Env) == 0 {
			return nil
		}
		e := env.New()
		return e.Merge(spec.Env)
	}
	return p.opts.Env.Merge(spec.Env)
}
