// Package catalogue mirrors the remote plugin catalogue and serves immutable
// snapshots of it.
package catalogue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Cache layout below the store directory.
const (
	treeDirName       = "catalogue"
	timestampFileName = "last_update"
)

// Store owns the published catalogue snapshot and its on-disk cache.
// Readers never block; refreshes are serialized and swap the snapshot atomically.
type Store struct {
	dir        string
	sourceURL  string
	fetcher    ports.Fetcher
	logger     ports.Logger
	now        func() time.Time
	parseLimit int

	refreshMu sync.Mutex
	current   atomic.Pointer[Snapshot]
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(l ports.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithParseLimit bounds concurrent plugin directory parses.
func WithParseLimit(n int) StoreOption {
	return func(s *Store) {
		s.parseLimit = n
	}
}

// NewStore creates a store caching into dir and refreshing from sourceURL.
// It starts with an empty snapshot; call Load or Refresh to populate it.
func NewStore(dir, sourceURL string, fetcher ports.Fetcher, opts ...StoreOption) *Store {
	s := &Store{
		dir:        dir,
		sourceURL:  sourceURL,
		fetcher:    fetcher,
		logger:     ports.NewNopLogger(),
		now:        time.Now,
		parseLimit: defaultParseLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(EmptySnapshot())
	return s
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Snapshot returns the currently published snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Get looks up a plugin in the published snapshot.
func (s *Store) Get(id string) (*PluginRecord, bool) {
	return s.Snapshot().Get(id)
}

// Filter queries the published snapshot.
func (s *Store) Filter(q Query) ([]*PluginRecord, error) {
	return s.Snapshot().Filter(q)
}

// LastRefresh is when the published snapshot was downloaded. Zero if never.
func (s *Store) LastRefresh() time.Time {
	return s.Snapshot().RefreshedAt()
}

// IsStale reports whether the snapshot is older than interval or was never refreshed.
func (s *Store) IsStale(interval time.Duration) bool {
	last := s.LastRefresh()
	if last.IsZero() {
		return true
	}
	return s.now().Sub(last) >= interval
}

// ResolveRelease returns the newest asset-bearing release of id accepted by req.
func (s *Store) ResolveRelease(id string, req Requirement) (Release, error) {
	return ResolveRelease(s.Snapshot(), id, req)
}

// ResolveRelease scans a snapshot's releases newest-first.
func ResolveRelease(snap *Snapshot, id string, req Requirement) (Release, error) {
	p, ok := snap.Get(id)
	if !ok {
		return Release{}, &NoMatchingReleaseError{ID: id, Requirement: req.String(), Unknown: true}
	}
	for _, r := range p.Releases {
		if len(r.Assets) > 0 && req.Accept(r.Version) {
			return r, nil
		}
	}
	return Release{}, &NoMatchingReleaseError{ID: id, Requirement: req.String()}
}

// Load parses the on-disk cache without network access.
func (s *Store) Load(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	tree := filepath.Join(s.dir, treeDirName)
	records, err := parseTree(ctx, tree, s.parseLimit)
	if err != nil {
		return &CatalogueLoadError{Dir: tree, Err: err}
	}
	refreshedAt, err := s.readTimestamp()
	if err != nil {
		return &CatalogueLoadError{Dir: s.dir, Err: err}
	}

	s.current.Store(NewSnapshot(records, refreshedAt))
	s.logger.Debug(ctx, "catalogue loaded from cache",
		ports.F("plugins", len(records)),
		ports.F("refreshed_at", refreshedAt.Format(time.RFC3339)),
	)
	return nil
}

// Refresh downloads, verifies, extracts and parses the remote archive, then
// swaps the cache tree and the published snapshot. On failure the published
// snapshot and timestamp are left untouched.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	archive, err := s.download(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(archive) }()

	if err := verifyArchive(archive); err != nil {
		return &CatalogueCorruptionError{Source: s.sourceURL, Err: err}
	}

	staging, err := os.MkdirTemp(s.dir, ".staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := extractArchive(archive, staging); err != nil {
		return &CatalogueCorruptionError{Source: s.sourceURL, Err: err}
	}
	records, err := parseTree(ctx, staging, s.parseLimit)
	if err != nil {
		return &CatalogueCorruptionError{Source: s.sourceURL, Err: err}
	}

	if err := s.swapTree(staging); err != nil {
		return err
	}

	refreshedAt := s.now()
	s.current.Store(NewSnapshot(records, refreshedAt))

	if err := s.writeTimestamp(refreshedAt); err != nil {
		s.logger.Warn(ctx, "failed to persist refresh timestamp", ports.ErrField(err))
	}
	s.logger.Info(ctx, "catalogue refreshed", ports.F("plugins", len(records)))
	return nil
}

func (s *Store) download(ctx context.Context) (string, error) {
	f, err := os.CreateTemp(s.dir, "catalogue-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create temp archive: %w", err)
	}
	path := f.Name()

	_, fetchErr := s.fetcher.Fetch(ctx, s.sourceURL, f)
	closeErr := f.Close()
	if fetchErr != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("download catalogue: %w", fetchErr)
	}
	if closeErr != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp archive: %w", closeErr)
	}
	return path, nil
}

// swapTree replaces the cache tree with staging, restoring the old tree on failure.
func (s *Store) swapTree(staging string) error {
	tree := filepath.Join(s.dir, treeDirName)
	previous := ""
	if _, err := os.Stat(tree); err == nil {
		previous = fmt.Sprintf("%s.previous-%d", tree, s.now().UnixNano())
		if err := os.Rename(tree, previous); err != nil {
			return fmt.Errorf("failed to move old catalogue aside: %w", err)
		}
	}
	if err := os.Rename(staging, tree); err != nil {
		if previous != "" {
			_ = os.Rename(previous, tree)
		}
		return fmt.Errorf("failed to install catalogue tree: %w", err)
	}
	if previous != "" {
		_ = os.RemoveAll(previous)
	}
	return nil
}

func (s *Store) readTimestamp() (time.Time, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, timestampFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp file: %w", err)
	}
	return time.Unix(int64(secs), 0), nil
}

func (s *Store) writeTimestamp(t time.Time) error {
	path := filepath.Join(s.dir, timestampFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(t.Unix(), 10)), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
