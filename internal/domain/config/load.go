package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// FileNames are the config files Discover looks for, in order.
var FileNames = []string{"addonctl.yaml", "addonctl.yml", "addonctl.toml", "addonctl.ini"}

// iniSection optionally groups the options in INI files.
const iniSection = "addonctl"

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewConfigNotFoundError(path)
		}
		return nil, err
	}
	return Parse(path, data)
}

// Discover returns the first config file from FileNames present in dir.
func Discover(dir string) (string, bool) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Resolve loads the explicit path when given, otherwise a discovered file in
// dir, otherwise the defaults.
func Resolve(path, dir string) (*Config, string, error) {
	if path == "" {
		found, ok := Discover(dir)
		if !ok {
			return Default(), "", nil
		}
		path = found
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse decodes data in the format implied by name's extension on top of
// the defaults, then validates the result.
func Parse(name string, data []byte) (*Config, error) {
	cfg := Default()

	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = decodeYAML(name, data, cfg)
	case ".toml":
		err = decodeTOML(name, data, cfg)
	case ".ini", ".cfg":
		err = decodeINI(name, data, cfg)
	default:
		return nil, NewFormatUnknownError(name)
	}
	if err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(name string, data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return NewYAMLParseError(name, err)
	}
	return nil
}

func decodeTOML(name string, data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return NewConfigParseError(name, err)
	}
	return nil
}

// decodeINI reads options from the default section or an [addonctl]
// section, and host versions from [host-provided-versions].
func decodeINI(name string, data []byte, cfg *Config) error {
	file, err := ini.Load(data)
	if err != nil {
		return NewConfigParseError(name, err)
	}

	sec := file.Section("")
	if named, err := file.GetSection(iniSection); err == nil {
		sec = named
	}

	known := map[string]bool{}
	intOpt := func(key string, dst *int) error {
		known[key] = true
		if !sec.HasKey(key) {
			return nil
		}
		v, err := sec.Key(key).Int()
		if err != nil {
			return NewConfigParseError(name, fmt.Errorf("%s: %w", key, err))
		}
		*dst = v
		return nil
	}
	stringOpt := func(key string, dst *string) {
		known[key] = true
		if sec.HasKey(key) {
			*dst = sec.Key(key).String()
		}
	}
	listOpt := func(key string, dst *[]string) {
		known[key] = true
		if sec.HasKey(key) {
			*dst = sec.Key(key).Strings(",")
		}
	}

	for key, dst := range map[string]*int{
		"permission-level":        &cfg.PermissionLevel,
		"update-interval-seconds": &cfg.UpdateIntervalSeconds,
		"page-size":               &cfg.PageSize,
		"confirm-timeout-seconds": &cfg.ConfirmTimeoutSeconds,
	} {
		if err := intOpt(key, dst); err != nil {
			return err
		}
	}
	stringOpt("catalogue-source-url", &cfg.CatalogueSourceURL)
	stringOpt("plugin-directory", &cfg.PluginDirectory)
	stringOpt("data-directory", &cfg.DataDirectory)
	stringOpt("python-executable", &cfg.PythonExecutable)
	stringOpt("default-language", &cfg.DefaultLanguage)
	listOpt("dependency-blacklist", &cfg.DependencyBlacklist)
	listOpt("preferred-asset-extensions", &cfg.PreferredAssetExtensions)

	known["check-upgrade-on-refresh"] = true
	if sec.HasKey("check-upgrade-on-refresh") {
		v, err := sec.Key("check-upgrade-on-refresh").Bool()
		if err != nil {
			return NewConfigParseError(name, fmt.Errorf("check-upgrade-on-refresh: %w", err))
		}
		cfg.CheckUpgradeOnRefresh = v
	}

	for _, key := range sec.KeyStrings() {
		if !known[key] {
			return NewConfigParseError(name, fmt.Errorf("unknown option %q", key))
		}
	}

	if hosted, err := file.GetSection("host-provided-versions"); err == nil {
		for id, version := range hosted.KeysHash() {
			cfg.HostProvidedVersions[id] = version
		}
	}
	return nil
}

// normalize trims list entries and lowercases ids and extensions.
func (c *Config) normalize() {
	c.DependencyBlacklist = cleanList(c.DependencyBlacklist, true)
	c.PreferredAssetExtensions = cleanList(c.PreferredAssetExtensions, true)
	if c.HostProvidedVersions == nil {
		c.HostProvidedVersions = map[string]string{}
	}
	if c.PythonExecutable == "" {
		c.PythonExecutable = DefaultPython
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = DefaultLanguage
	}
}

func cleanList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if lower {
			s = strings.ToLower(s)
		}
		out = append(out, s)
	}
	return out
}
