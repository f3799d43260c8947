// Package console serializes human-facing output: status lines from the
// session and relabeled lines from the child processes.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	clientColor  = lipgloss.Color("#06B6D4") // Cyan
	serverColor  = lipgloss.Color("#A855F7") // Purple
	defaultColor = lipgloss.Color("#6B7280") // Gray
)

// Console writes whole lines to w. Writes from concurrent goroutines never
// interleave within a line.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *lipgloss.Renderer
	styles   map[string]lipgloss.Style
}

// New returns a Console writing to w. Label colors are only emitted when w
// is a terminal that supports them.
func New(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:        w,
		renderer: r,
		styles: map[string]lipgloss.Style{
			"CLIENT": r.NewStyle().Foreground(clientColor).Bold(true),
			"SERVER": r.NewStyle().Foreground(serverColor).Bold(true),
		},
	}
}

// Println writes a status line.
func (c *Console) Println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, a...)
}

// Print writes s as is, without a newline, e.g. for a prompt.
func (c *Console) Print(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.w, s)
}

// Printf writes a formatted status line; a trailing newline is added.
func (c *Console) Printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, format+"\n", a...)
}

// Labeled writes one line of child output prefixed with "[label]".
func (c *Console) Labeled(label, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "%s %s\n", c.style(label).Render("["+label+"]"), line)
}

func (c *Console) style(label string) lipgloss.Style {
	if s, ok := c.styles[label]; ok {
		return s
	}
	s := c.renderer.NewStyle().Foreground(defaultColor)
	c.styles[label] = s
	return s
}
