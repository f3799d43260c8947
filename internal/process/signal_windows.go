//go:build windows

package process

import (
	"errors"
	"os"
)

// terminate has no graceful equivalent on Windows console processes started
// without a console of their own, so it kills directly.
func terminate(p *os.Process) error {
	return forceKill(p)
}

func forceKill(p *os.Process) error {
	err := p.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
