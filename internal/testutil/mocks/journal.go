package mocks

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Journal is an in-memory test double for ports.Journal.
type Journal struct {
	mu      sync.RWMutex
	entries []ports.JournalEntry
	err     error
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// FailWith makes Record return err.
func (j *Journal) FailWith(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = err
}

// Record appends an entry.
func (j *Journal) Record(_ context.Context, entry ports.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, entry)
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(_ context.Context, limit int) ([]ports.JournalEntry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]ports.JournalEntry, 0, len(j.entries))
	for i := len(j.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, j.entries[i])
	}
	return out, nil
}

// Entries returns every recorded entry in insertion order.
func (j *Journal) Entries() []ports.JournalEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]ports.JournalEntry(nil), j.entries...)
}

// Kinds lists "kind:outcome" for each entry.
func (j *Journal) Kinds() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]string, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, string(e.Kind)+":"+e.Outcome)
	}
	return out
}

// Ensure Journal implements ports.Journal.
var _ ports.Journal = (*Journal)(nil)
