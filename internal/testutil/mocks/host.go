package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// ErrNotLoaded is returned for operations on a plugin the fake host does not have.
var ErrNotLoaded = errors.New("plugin not loaded")

// Host is a thread-safe in-memory test double for ports.Host. Loading an id
// that is already loaded fails, so tests catch two versions loaded at once.
type Host struct {
	mu       sync.RWMutex
	dir      string
	plugins  map[string]ports.InstalledPlugin
	loadErrs map[string]error
	listErr  error
	disabled []string
	calls    []string
	onLoad   func(ports.Artifact)
}

// NewHost creates a host whose plugin directory is dir.
func NewHost(dir string) *Host {
	return &Host{
		dir:      dir,
		plugins:  make(map[string]ports.InstalledPlugin),
		loadErrs: make(map[string]error),
	}
}

// Add registers an already-loaded plugin.
func (h *Host) Add(id, version, path string) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.plugins[id] = ports.InstalledPlugin{ID: id, Version: version, FilePath: path}
	return h
}

// FailLoad makes Load of id return err.
func (h *Host) FailLoad(id string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadErrs[id] = err
}

// FailLoadVersion makes Load of one version of id return err.
func (h *Host) FailLoadVersion(id, version string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadErrs[id+"@"+version] = err
}

// FailList makes Installed return err.
func (h *Host) FailList(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listErr = err
}

// OnLoad installs a hook run for every successful load.
func (h *Host) OnLoad(hook func(ports.Artifact)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLoad = hook
}

// Installed lists loaded plugins ordered by id.
func (h *Host) Installed(_ context.Context) ([]ports.InstalledPlugin, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.listErr != nil {
		return nil, h.listErr
	}
	out := make([]ports.InstalledPlugin, 0, len(h.plugins))
	for _, p := range h.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Lookup returns a loaded plugin.
func (h *Host) Lookup(_ context.Context, id string) (ports.InstalledPlugin, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	p, ok := h.plugins[id]
	return p, ok, nil
}

// Load records the artifact as loaded.
func (h *Host) Load(_ context.Context, artifact ports.Artifact) error {
	h.mu.Lock()
	h.calls = append(h.calls, fmt.Sprintf("load:%s@%s", artifact.ID, artifact.Version))
	for _, key := range []string{artifact.ID + "@" + artifact.Version, artifact.ID} {
		if err, ok := h.loadErrs[key]; ok {
			h.mu.Unlock()
			return err
		}
	}
	if existing, ok := h.plugins[artifact.ID]; ok {
		h.mu.Unlock()
		return fmt.Errorf("%s@%s is already loaded", existing.ID, existing.Version)
	}
	h.plugins[artifact.ID] = ports.InstalledPlugin{ID: artifact.ID, Version: artifact.Version, FilePath: artifact.Path}
	hook := h.onLoad
	h.mu.Unlock()

	if hook != nil {
		hook(artifact)
	}
	return nil
}

// Unload forgets a loaded plugin.
func (h *Host) Unload(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, "unload:"+id)
	if _, ok := h.plugins[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}
	delete(h.plugins, id)
	return nil
}

// Disable unloads a plugin and remembers it as disabled.
func (h *Host) Disable(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, "disable:"+id)
	if _, ok := h.plugins[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}
	delete(h.plugins, id)
	h.disabled = append(h.disabled, id)
	return nil
}

// Reload checks that the plugin is loaded.
func (h *Host) Reload(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, "reload:"+id)
	if _, ok := h.plugins[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}
	return nil
}

// PluginDirectory returns the configured directory.
func (h *Host) PluginDirectory() string {
	return h.dir
}

// Disabled lists ids passed to Disable.
func (h *Host) Disabled() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.disabled...)
}

// Calls lists load/unload/disable/reload invocations in order.
func (h *Host) Calls() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.calls...)
}

// Ensure Host implements ports.Host.
var _ ports.Host = (*Host)(nil)
