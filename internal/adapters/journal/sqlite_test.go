package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

func openTemp(t *testing.T) (*SQLiteJournal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "history.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func TestSQLiteJournal_RecordAndRecent(t *testing.T) {
	t.Parallel()

	j, _ := openTemp(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, ports.JournalEntry{Kind: ports.JournalRefresh, Outcome: "ok", CreatedAt: at}))
	require.NoError(t, j.Record(ctx, ports.JournalEntry{Kind: ports.JournalInstall, PluginID: "foo", Version: "1.0.0", Outcome: "ok", CreatedAt: at.Add(time.Minute)}))
	require.NoError(t, j.Record(ctx, ports.JournalEntry{Kind: ports.JournalUpgrade, PluginID: "foo", Version: "2.0.0", Outcome: "failed", Detail: "activate: boom", CreatedAt: at.Add(2 * time.Minute)}))

	recent, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ports.JournalUpgrade, recent[0].Kind)
	assert.Equal(t, "activate: boom", recent[0].Detail)
	assert.Equal(t, at.Add(2*time.Minute), recent[0].CreatedAt)
	assert.NotEmpty(t, recent[0].ID)
	assert.Equal(t, ports.JournalInstall, recent[1].Kind)

	all, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteJournal_ForPlugin(t *testing.T) {
	t.Parallel()

	j, _ := openTemp(t)
	ctx := context.Background()
	for _, id := range []string{"foo", "bar", "foo"} {
		require.NoError(t, j.Record(ctx, ports.JournalEntry{Kind: ports.JournalInstall, PluginID: id, Outcome: "ok"}))
	}

	entries, err := j.ForPlugin(ctx, "foo", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "foo", e.PluginID)
	}
}

func TestSQLiteJournal_Persists(t *testing.T) {
	t.Parallel()

	j, path := openTemp(t)
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, ports.JournalEntry{ID: "fixed-id", Kind: ports.JournalTick, Outcome: "skipped"}))
	require.NoError(t, j.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	entries, err := reopened.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fixed-id", entries[0].ID)
	assert.Equal(t, "skipped", entries[0].Outcome)

	assert.Error(t, reopened.Record(ctx, ports.JournalEntry{ID: "fixed-id", Kind: ports.JournalTick, Outcome: "fresh"}), "ids are unique")
}

func TestSQLiteJournal_InMemory(t *testing.T) {
	t.Parallel()

	j, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	require.NoError(t, j.Record(context.Background(), ports.JournalEntry{Kind: ports.JournalScan, Outcome: "ok"}))
	entries, err := j.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
