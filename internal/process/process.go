package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/filosign-dapp/devrun/internal/console"
	"github.com/filosign-dapp/devrun/internal/metrics"
)

// killGrace bounds how long Stop waits for the child to be reaped after SIGKILL.
const killGrace = 2 * time.Second

// Process is one running child. It is created by Start and must not be
// reused after it has exited.
type Process struct {
	spec    Spec
	cmd     *exec.Cmd
	done    chan struct{} // closed once cmd.Wait returns
	streamd chan struct{} // closed once the output streamer returns

	mu      sync.Mutex
	exitErr error
	exitAt  time.Time
}

// Start spawns the child described by spec with stdout and stderr merged into
// one pipe, and launches a streamer that relabels every line onto c. When tee
// is non-nil, raw lines are copied there as well. env replaces the inherited
// environment when non-empty.
func Start(spec Spec, env []string, c *console.Console, tee io.Writer) (*Process, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	cmd := spec.BuildCommand()
	cmd.Dir = spec.WorkDir
	if len(env) > 0 {
		cmd.Env = env
	}
	configureSysProcAttr(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}
	// The child holds its own copy of the write end; closing ours lets the
	// streamer see EOF once every writer in the process group is gone.
	_ = pw.Close()

	p := &Process{
		spec:    spec,
		cmd:     cmd,
		done:    make(chan struct{}),
		streamd: make(chan struct{}),
	}
	go p.wait()
	go func() {
		defer close(p.streamd)
		defer func() { _ = pr.Close() }()
		Stream(pr, spec.Label, c, tee)
	}()

	metrics.IncStart(spec.Label)
	metrics.SetRunning(spec.Label, true)
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.exitErr = err
	p.exitAt = time.Now()
	p.mu.Unlock()
	metrics.SetRunning(p.spec.Label, false)
	close(p.done)
}

// Label returns the console label of the process.
func (p *Process) Label() string { return p.spec.Label }

// PID returns the OS process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Done is closed when the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Alive reports whether the process is still running.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ExitErr returns the error from cmd.Wait; nil while running or on exit status 0.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Stop requests graceful termination, waits up to timeout, then kills the
// process group. It never leaves the process running when the returned error
// is nil; a non-nil error lists every step that failed and is informational.
func (p *Process) Stop(timeout time.Duration) error {
	if !p.Alive() {
		return nil
	}
	var errs []error
	if err := terminate(p.cmd.Process); err != nil {
		errs = append(errs, fmt.Errorf("terminate %s: %w", p.spec.Label, err))
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.done:
		metrics.IncStop(p.spec.Label, metrics.StopGraceful)
		return errors.Join(errs...)
	case <-t.C:
	}

	if err := forceKill(p.cmd.Process); err != nil {
		errs = append(errs, fmt.Errorf("kill %s: %w", p.spec.Label, err))
	}
	select {
	case <-p.done:
	case <-time.After(killGrace):
		errs = append(errs, fmt.Errorf("%s (pid %d) still running after kill", p.spec.Label, p.PID()))
	}
	metrics.IncStop(p.spec.Label, metrics.StopForced)
	return errors.Join(errs...)
}

// WaitStream blocks until the output streamer has drained the pipe or d elapses.
func (p *Process) WaitStream(d time.Duration) bool {
	select {
	case <-p.streamd:
		return true
	case <-time.After(d):
		return false
	}
}
