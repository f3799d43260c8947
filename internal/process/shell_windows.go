//go:build windows

package process

// shellArgv runs a command line that needs a shell; the script is appended.
var shellArgv = []string{"cmd", "/c"}

// noopScript is what an empty command line runs.
const noopScript = "rem"
