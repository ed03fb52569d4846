// Package host provides a ports.Host backed by a plugin directory and a
// JSON registry of loaded plugins.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Errors.
var (
	ErrNotLoaded       = errors.New("plugin is not loaded")
	ErrAlreadyLoaded   = errors.New("plugin is already loaded")
	ErrHostManaged     = errors.New("plugin is provided by the host")
	ErrArtifactMissing = errors.New("plugin artifact is missing")
)

// DisabledSuffix is appended to the file name of a disabled plugin.
const DisabledSuffix = ".disabled"

// DirectoryHost tracks loaded plugins in a state file next to the
// plugin directory. Builtins are reported as installed without files.
type DirectoryHost struct {
	mu        sync.Mutex
	dir       string
	statePath string
	builtins  map[string]string
}

// NewDirectoryHost creates a host for dir. builtins maps host-provided
// ids to their versions.
func NewDirectoryHost(dir, statePath string, builtins map[string]string) *DirectoryHost {
	copied := make(map[string]string, len(builtins))
	for id, v := range builtins {
		copied[id] = v
	}
	return &DirectoryHost{dir: dir, statePath: statePath, builtins: copied}
}

// Installed lists loaded plugins and builtins ordered by id.
func (h *DirectoryHost) Installed(_ context.Context) ([]ports.InstalledPlugin, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	loaded, err := h.read()
	if err != nil {
		return nil, err
	}
	out := make([]ports.InstalledPlugin, 0, len(loaded)+len(h.builtins))
	for id, v := range h.builtins {
		out = append(out, ports.InstalledPlugin{ID: id, Version: v})
	}
	for _, p := range loaded {
		if _, builtin := h.builtins[p.ID]; !builtin {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Lookup returns one loaded plugin or builtin.
func (h *DirectoryHost) Lookup(_ context.Context, id string) (ports.InstalledPlugin, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if v, ok := h.builtins[id]; ok {
		return ports.InstalledPlugin{ID: id, Version: v}, true, nil
	}
	loaded, err := h.read()
	if err != nil {
		return ports.InstalledPlugin{}, false, err
	}
	p, ok := find(loaded, id)
	return p, ok, nil
}

// Load registers an artifact as loaded. The file must exist inside the
// plugin directory and the id must not already be loaded.
func (h *DirectoryHost) Load(_ context.Context, artifact ports.Artifact) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.load(artifact)
}

func (h *DirectoryHost) load(artifact ports.Artifact) error {
	if _, ok := h.builtins[artifact.ID]; ok {
		return fmt.Errorf("%w: %s", ErrHostManaged, artifact.ID)
	}
	if _, err := os.Stat(artifact.Path); err != nil {
		return fmt.Errorf("%w: %s", ErrArtifactMissing, artifact.Path)
	}
	loaded, err := h.read()
	if err != nil {
		return err
	}
	if existing, ok := find(loaded, artifact.ID); ok {
		return fmt.Errorf("%w: %s@%s", ErrAlreadyLoaded, existing.ID, existing.Version)
	}

	loaded = append(loaded, ports.InstalledPlugin{ID: artifact.ID, Version: artifact.Version, FilePath: artifact.Path})
	return h.write(loaded)
}

// Unload removes a plugin from the registry, leaving its file in place.
func (h *DirectoryHost) Unload(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.remove(id)
	return err
}

// Disable unloads a plugin and renames its file so it is not loaded again.
func (h *DirectoryHost) Disable(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.remove(id)
	if err != nil {
		return err
	}
	if p.FilePath == "" {
		return nil
	}
	if err := os.Rename(p.FilePath, p.FilePath+DisabledSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to disable %s: %w", id, err)
	}
	return nil
}

// Reload unloads a plugin and loads it again from its registered file.
// If the file is gone the plugin stays unloaded.
func (h *DirectoryHost) Reload(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.remove(id)
	if err != nil {
		return err
	}
	return h.load(ports.Artifact{ID: p.ID, Version: p.Version, Path: p.FilePath})
}

// PluginDirectory returns the plugin directory.
func (h *DirectoryHost) PluginDirectory() string {
	return h.dir
}

func (h *DirectoryHost) remove(id string) (ports.InstalledPlugin, error) {
	if _, ok := h.builtins[id]; ok {
		return ports.InstalledPlugin{}, fmt.Errorf("%w: %s", ErrHostManaged, id)
	}
	loaded, err := h.read()
	if err != nil {
		return ports.InstalledPlugin{}, err
	}
	p, ok := find(loaded, id)
	if !ok {
		return ports.InstalledPlugin{}, fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}

	filtered := make([]ports.InstalledPlugin, 0, len(loaded)-1)
	for _, q := range loaded {
		if q.ID != id {
			filtered = append(filtered, q)
		}
	}
	return p, h.write(filtered)
}

func (h *DirectoryHost) read() ([]ports.InstalledPlugin, error) {
	data, err := os.ReadFile(h.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []ports.InstalledPlugin{}, nil
		}
		return nil, fmt.Errorf("failed to read host state: %w", err)
	}

	var loaded []ports.InstalledPlugin
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse host state: %w", err)
	}
	return loaded, nil
}

// write replaces the state file atomically.
func (h *DirectoryHost) write(loaded []ports.InstalledPlugin) error {
	if err := os.MkdirAll(filepath.Dir(h.statePath), 0o755); err != nil {
		return err
	}
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].ID < loaded[j].ID })

	data, err := json.MarshalIndent(loaded, "", "  ")
	if err != nil {
		return err
	}
	tmp := h.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, h.statePath)
}

func find(loaded []ports.InstalledPlugin, id string) (ports.InstalledPlugin, bool) {
	for _, p := range loaded {
		if p.ID == id {
			return p, true
		}
	}
	return ports.InstalledPlugin{}, false
}

// Ensure DirectoryHost implements ports.Host.
var _ ports.Host = (*DirectoryHost)(nil)
