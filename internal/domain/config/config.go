// Package config defines the plugin manager's configuration: recognized
// options, defaults, validation, and loading from YAML, TOML or INI files.
package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Defaults.
const (
	DefaultPermissionLevel    = 3
	DefaultCatalogueSourceURL = "https://github.com/MCDReforged/PluginCatalogue/archive/refs/heads/meta.zip"
	DefaultUpdateInterval     = 1800
	DefaultPluginDirectory    = "plugins"
	DefaultPageSize           = 6
	DefaultDataDirectory      = ".addonctl"
	DefaultPython             = "python3"
	DefaultConfirmTimeout     = 10
	DefaultLanguage           = "en_us"
)

// Config holds every recognized option.
type Config struct {
	PermissionLevel          int               `yaml:"permission-level" toml:"permission-level"`
	CatalogueSourceURL       string            `yaml:"catalogue-source-url" toml:"catalogue-source-url"`
	UpdateIntervalSeconds    int               `yaml:"update-interval-seconds" toml:"update-interval-seconds"`
	CheckUpgradeOnRefresh    bool              `yaml:"check-upgrade-on-refresh" toml:"check-upgrade-on-refresh"`
	PluginDirectory          string            `yaml:"plugin-directory" toml:"plugin-directory"`
	PageSize                 int               `yaml:"page-size" toml:"page-size"`
	DataDirectory            string            `yaml:"data-directory" toml:"data-directory"`
	PythonExecutable         string            `yaml:"python-executable" toml:"python-executable"`
	DependencyBlacklist      []string          `yaml:"dependency-blacklist" toml:"dependency-blacklist"`
	ConfirmTimeoutSeconds    int               `yaml:"confirm-timeout-seconds" toml:"confirm-timeout-seconds"`
	PreferredAssetExtensions []string          `yaml:"preferred-asset-extensions" toml:"preferred-asset-extensions"`
	DefaultLanguage          string            `yaml:"default-language" toml:"default-language"`
	HostProvidedVersions     map[string]string `yaml:"host-provided-versions" toml:"host-provided-versions"`
}

// Default returns a Config with every option at its default.
func Default() *Config {
	return &Config{
		PermissionLevel:          DefaultPermissionLevel,
		CatalogueSourceURL:       DefaultCatalogueSourceURL,
		UpdateIntervalSeconds:    DefaultUpdateInterval,
		CheckUpgradeOnRefresh:    true,
		PluginDirectory:          DefaultPluginDirectory,
		PageSize:                 DefaultPageSize,
		DataDirectory:            DefaultDataDirectory,
		PythonExecutable:         DefaultPython,
		DependencyBlacklist:      []string{"python", "mcdreforged"},
		ConfirmTimeoutSeconds:    DefaultConfirmTimeout,
		PreferredAssetExtensions: []string{".mcdr", ".pyz", ".zip", ".py"},
		DefaultLanguage:          DefaultLanguage,
		HostProvidedVersions:     map[string]string{},
	}
}

// UpdateInterval is the refresh interval as a duration.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

// ConfirmTimeout is the confirmation window as a duration.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

// CacheDirectory holds the extracted catalogue and its timestamp file.
func (c *Config) CacheDirectory() string {
	return filepath.Join(c.DataDirectory, "cache")
}

// BackupDirectory holds superseded plugin artifacts.
func (c *Config) BackupDirectory() string {
	return filepath.Join(c.DataDirectory, "backup")
}

// JournalPath is the sqlite history database.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDirectory, "history.db")
}

// IntentsPath stores pending confirmation intents.
func (c *Config) IntentsPath() string {
	return filepath.Join(c.DataDirectory, "intents.json")
}

// StatePath stores the directory host's loaded-plugin registry.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDirectory, "installed.json")
}

// LockPath is the session lock file shared by every addonctl process
// using this data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDirectory, "session.lock")
}

// Validate checks every option and reports all problems at once.
func (c *Config) Validate() error {
	errs := NewErrorList()

	if c.PermissionLevel < 0 {
		errs.AddValidation("permission-level", "must not be negative", "Use 0 to allow every requester.")
	}
	if c.CatalogueSourceURL == "" {
		errs.AddValidation("catalogue-source-url", "must be set", "Use the default catalogue archive URL.")
	} else if u, err := url.Parse(c.CatalogueSourceURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.AddValidation("catalogue-source-url", "must be an http(s) URL", "Example: "+DefaultCatalogueSourceURL)
	}
	if c.UpdateIntervalSeconds <= 0 {
		errs.AddValidation("update-interval-seconds", "must be positive", "The default is 1800 (30 minutes).")
	}
	if strings.TrimSpace(c.PluginDirectory) == "" {
		errs.AddValidation("plugin-directory", "must be set", "Point it at the host's plugin folder.")
	}
	if c.PageSize <= 0 {
		errs.AddValidation("page-size", "must be positive", "The default is 6.")
	}
	if strings.TrimSpace(c.DataDirectory) == "" {
		errs.AddValidation("data-directory", "must be set", "The default is .addonctl.")
	}
	if c.ConfirmTimeoutSeconds <= 0 {
		errs.AddValidation("confirm-timeout-seconds", "must be positive", "The default is 10.")
	}
	for _, ext := range c.PreferredAssetExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs.AddValidation("preferred-asset-extensions", "entries must start with a dot: "+ext, "Example: .mcdr")
		}
	}

	return errs.AsError()
}
