package process

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/filosign-dapp/devrun/internal/console"
)

// Stream copies r to c line by line, prefixing each line with label. Lines
// have no length limit. It returns on EOF or on the first read error; errors
// are not reported, and whatever the child still writes is discarded so the
// child never sees a broken pipe.
func Stream(r io.Reader, label string, c *console.Console, tee io.Writer) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			c.Labeled(label, line)
			if tee != nil {
				_, _ = io.WriteString(tee, line+"\n")
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				_, _ = io.Copy(io.Discard, r)
			}
			return
		}
	}
}
