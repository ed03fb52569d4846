package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists live intents keyed by actor id.
type Store interface {
	Load(ctx context.Context) (map[string]Intent, error)
	Save(ctx context.Context, intents map[string]Intent) error
}

// MemoryStore keeps intents for the life of the process.
type MemoryStore struct {
	mu      sync.Mutex
	intents map[string]Intent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{intents: make(map[string]Intent)}
}

// Load returns a copy of the stored intents.
func (s *MemoryStore) Load(_ context.Context) (map[string]Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyIntents(s.intents), nil
}

// Save replaces the stored intents.
func (s *MemoryStore) Save(_ context.Context, intents map[string]Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = copyIntents(intents)
	return nil
}

// FileStore keeps intents in a JSON file so a CLI user can confirm from a
// second process.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the file. A missing file means no intents.
func (s *FileStore) Load(_ context.Context) (map[string]Intent, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]Intent), nil
		}
		return nil, fmt.Errorf("failed to read intents: %w", err)
	}

	intents := make(map[string]Intent)
	if err := json.Unmarshal(data, &intents); err != nil {
		return nil, fmt.Errorf("failed to parse intents: %w", err)
	}
	return intents, nil
}

// Save writes the file atomically.
func (s *FileStore) Save(_ context.Context, intents map[string]Intent) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(intents, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode intents: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write intents: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func copyIntents(in map[string]Intent) map[string]Intent {
	out := make(map[string]Intent, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)
