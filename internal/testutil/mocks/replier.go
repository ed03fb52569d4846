package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Replier captures replies for assertions.
type Replier struct {
	mu      sync.RWMutex
	replies []ports.Reply
}

// NewReplier creates an empty Replier.
func NewReplier() *Replier {
	return &Replier{}
}

// Reply records r.
func (m *Replier) Reply(_ context.Context, r ports.Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, r)
}

// Replies returns every captured reply.
func (m *Replier) Replies() []ports.Reply {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ports.Reply(nil), m.replies...)
}

// Texts returns the text of every reply.
func (m *Replier) Texts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.replies))
	for _, r := range m.replies {
		out = append(out, r.Text)
	}
	return out
}

// Last returns the most recent reply.
func (m *Replier) Last() (ports.Reply, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.replies) == 0 {
		return ports.Reply{}, false
	}
	return m.replies[len(m.replies)-1], true
}

// Contains reports whether any reply text contains substr.
func (m *Replier) Contains(substr string) bool {
	for _, text := range m.Texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

// Ensure Replier implements ports.Replier.
var _ ports.Replier = (*Replier)(nil)
