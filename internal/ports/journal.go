package ports

import (
	"context"
	"time"
)

// JournalKind classifies a journal entry.
type JournalKind string

// Journal entry kinds.
const (
	JournalInstall JournalKind = "install"
	JournalUpgrade JournalKind = "upgrade"
	JournalDisable JournalKind = "disable"
	JournalReload  JournalKind = "reload"
	JournalRefresh JournalKind = "refresh"
	JournalScan    JournalKind = "scan"
	JournalTick    JournalKind = "tick"
)

// JournalEntry is one recorded operation outcome.
type JournalEntry struct {
	ID        string
	Kind      JournalKind
	PluginID  string
	Version   string
	Outcome   string
	Detail    string
	CreatedAt time.Time
}

// Journal keeps a history of mutating operations and scheduler ticks.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
	Recent(ctx context.Context, limit int) ([]JournalEntry, error)
}
