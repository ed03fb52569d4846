// Package replier renders status replies for terminal users.
package replier

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

var toneStyles = map[ports.Tone]lipgloss.Style{
	ports.ToneInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	ports.ToneSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	ports.ToneWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	ports.ToneError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
}

var tonePrefixes = map[ports.Tone]string{
	ports.ToneInfo:    "•",
	ports.ToneSuccess: "✓",
	ports.ToneWarn:    "!",
	ports.ToneError:   "✗",
}

// Terminal writes one line per reply.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
	quiet bool
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithOutput sets the destination (default: os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(t *Terminal) {
		t.out = w
	}
}

// WithColor styles the tone marker.
func WithColor(enabled bool) Option {
	return func(t *Terminal) {
		t.color = enabled
	}
}

// WithQuiet drops info replies and keeps the rest.
func WithQuiet(enabled bool) Option {
	return func(t *Terminal) {
		t.quiet = enabled
	}
}

// NewTerminal creates a terminal replier.
func NewTerminal(opts ...Option) *Terminal {
	t := &Terminal{out: os.Stdout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reply writes the reply prefixed by its tone marker.
func (t *Terminal) Reply(_ context.Context, r ports.Reply) {
	if t.quiet && r.Tone == ports.ToneInfo {
		return
	}
	prefix, ok := tonePrefixes[r.Tone]
	if !ok {
		prefix = tonePrefixes[ports.ToneInfo]
	}
	if t.color {
		prefix = toneStyles[r.Tone].Render(prefix)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintf(t.out, "%s %s\n", prefix, r.Text)
}

// Ensure Terminal implements ports.Replier.
var _ ports.Replier = (*Terminal)(nil)
