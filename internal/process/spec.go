package process

import (
	"errors"
	"os/exec"
	"strings"
)

// Spec describes one child of the development session.
type Spec struct {
	Label   string   `json:"label"`    // console prefix, e.g. CLIENT
	Command string   `json:"command"`  // command line; a shell is used only when needed
	WorkDir string   `json:"work_dir"` // defaults to the session root
	Env     []string `json:"env"`      // extra K=V entries for this process only
}

// Validate reports configuration errors that would make Start fail.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Label) == "" {
		return errors.New("process label is required")
	}
	if strings.TrimSpace(s.Command) == "" {
		return errors.New("process " + s.Label + " requires command")
	}
	return nil
}

// BuildCommand constructs an *exec.Cmd for the given spec.Command.
// It avoids invoking a shell when not necessary, and it also respects
// an explicit shell invocation already present in the command string
// (e.g., "sh -c 'echo hi'"), avoiding double-wrapping with another shell.
func (s Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		return shellCommand(noopScript)
	}
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		return shellCommand(afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return shellCommand(cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

func shellCommand(script string) *exec.Cmd {
	args := append(append([]string(nil), shellArgv[1:]...), script)
	// #nosec G204
	return exec.Command(shellArgv[0], args...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>" at the
// beginning of cmdStr and returns the script after "-c" with one pair of
// surrounding quotes removed.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if !strings.HasPrefix(trim, p) {
			continue
		}
		after := trim[len(p):]
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return after, true
	}
	return "", false
}
