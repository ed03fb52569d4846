package ports

import "context"

// InstalledPlugin is the host's view of a loaded plugin.
type InstalledPlugin struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	FilePath string `json:"file_path"`
}

// Artifact is a plugin file handed to the host loader.
type Artifact struct {
	ID      string
	Version string
	Path    string
}

// Host is the application that loads plugin artifacts and owns the
// installed-plugin registry. The manager only queries and instructs it.
type Host interface {
	// Installed lists every plugin currently loaded.
	Installed(ctx context.Context) ([]InstalledPlugin, error)

	// Lookup returns the loaded plugin with the given id.
	Lookup(ctx context.Context, id string) (InstalledPlugin, bool, error)

	// Load activates an artifact. An error means the plugin is not loaded.
	Load(ctx context.Context, artifact Artifact) error

	// Unload deactivates a plugin without touching its file.
	Unload(ctx context.Context, id string) error

	// Disable unloads a plugin and prevents it from loading again.
	Disable(ctx context.Context, id string) error

	// Reload unloads and loads a plugin from its current file.
	Reload(ctx context.Context, id string) error

	// PluginDirectory is where artifacts must be placed to be loadable.
	PluginDirectory() string
}
