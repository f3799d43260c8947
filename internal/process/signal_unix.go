//go:build !windows

package process

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// terminate asks the process group led by p to exit.
func terminate(p *os.Process) error {
	return signalGroup(p, unix.SIGTERM)
}

// forceKill kills the process group led by p.
func forceKill(p *os.Process) error {
	return signalGroup(p, unix.SIGKILL)
}

func signalGroup(p *os.Process, sig unix.Signal) error {
	err := unix.Kill(-p.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		// Group already gone; fall back to the leader in case it left the group.
		err = p.Signal(sig)
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
	}
	return err
}
