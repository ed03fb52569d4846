package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// DefaultAssetBase prefixes generated asset download URLs.
const DefaultAssetBase = "https://assets.example.invalid"

// CatalogueBuilder builds catalogue trees and archives in the remote layout:
// one directory per plugin holding meta.json, plugin.json and release.json.
type CatalogueBuilder struct {
	root      string
	assetBase string
	plugins   []*PluginFixture
	extra     map[string][]byte
}

// PluginFixture describes one catalogue plugin.
type PluginFixture struct {
	ID          string
	Name        string
	Authors     []string
	Labels      []string
	Description interface{}
	Repository  string
	Releases    []*ReleaseFixture
}

// ReleaseFixture describes one release.
type ReleaseFixture struct {
	Version      string
	Assets       []string
	Dependencies map[string]string
	Requirements []string
}

// PluginOpt configures a plugin fixture.
type PluginOpt func(*PluginFixture)

// ReleaseOpt configures a release fixture.
type ReleaseOpt func(*ReleaseFixture)

// NewCatalogueBuilder creates a builder wrapping the tree in the usual
// top-level archive folder.
func NewCatalogueBuilder() *CatalogueBuilder {
	return &CatalogueBuilder{
		root:      "PluginCatalogue-meta",
		assetBase: DefaultAssetBase,
		extra:     make(map[string][]byte),
	}
}

// WithRoot sets the top-level folder. An empty root writes plugin directories at the top.
func (b *CatalogueBuilder) WithRoot(root string) *CatalogueBuilder {
	b.root = root
	return b
}

// WithAssetBase sets the URL prefix of generated asset links.
func (b *CatalogueBuilder) WithAssetBase(base string) *CatalogueBuilder {
	b.assetBase = base
	return b
}

// WithFile adds a raw file relative to the root.
func (b *CatalogueBuilder) WithFile(name string, content []byte) *CatalogueBuilder {
	b.extra[name] = content
	return b
}

// Plugin adds a plugin.
func (b *CatalogueBuilder) Plugin(id string, opts ...PluginOpt) *CatalogueBuilder {
	p := &PluginFixture{ID: id, Name: id, Authors: []string{"tester"}}
	for _, opt := range opts {
		opt(p)
	}
	b.plugins = append(b.plugins, p)
	return b
}

// Named sets the display name.
func Named(name string) PluginOpt {
	return func(p *PluginFixture) { p.Name = name }
}

// ByAuthors sets the authors.
func ByAuthors(authors ...string) PluginOpt {
	return func(p *PluginFixture) { p.Authors = authors }
}

// Labelled sets the labels.
func Labelled(labels ...string) PluginOpt {
	return func(p *PluginFixture) { p.Labels = labels }
}

// Described sets the description, either a string or a language map.
func Described(description interface{}) PluginOpt {
	return func(p *PluginFixture) { p.Description = description }
}

// Release adds a release. Without options it gets one asset named <id>-<version>.mcdr.
func Release(version string, opts ...ReleaseOpt) PluginOpt {
	return func(p *PluginFixture) {
		r := &ReleaseFixture{Version: version}
		for _, opt := range opts {
			opt(r)
		}
		if r.Assets == nil {
			r.Assets = []string{p.ID + "-" + version + ".mcdr"}
		}
		p.Releases = append(p.Releases, r)
	}
}

// WithAssets replaces the asset names. Pass none for an unusable release.
func WithAssets(names ...string) ReleaseOpt {
	return func(r *ReleaseFixture) {
		if names == nil {
			names = []string{}
		}
		r.Assets = names
	}
}

// DependsOn adds a dependency edge.
func DependsOn(id, requirement string) ReleaseOpt {
	return func(r *ReleaseFixture) {
		if r.Dependencies == nil {
			r.Dependencies = make(map[string]string)
		}
		r.Dependencies[id] = requirement
	}
}

// Requires adds requirement-installer specs.
func Requires(specs ...string) ReleaseOpt {
	return func(r *ReleaseFixture) { r.Requirements = append(r.Requirements, specs...) }
}

// AssetURL returns the download URL generated for an asset.
func (b *CatalogueBuilder) AssetURL(id, name string) string {
	return b.assetBase + "/" + id + "/" + name
}

// Files renders every file of the tree keyed by slash-separated path.
func (b *CatalogueBuilder) Files(t testing.TB) map[string][]byte {
	t.Helper()

	files := make(map[string][]byte)
	for name, content := range b.extra {
		files[path.Join(b.root, name)] = content
	}
	for _, p := range b.plugins {
		dir := path.Join(b.root, p.ID)
		files[path.Join(dir, "meta.json")] = mustJSON(t, b.meta(p))
		files[path.Join(dir, "plugin.json")] = mustJSON(t, map[string]interface{}{
			"id":         p.ID,
			"repository": p.Repository,
			"labels":     p.Labels,
		})
		files[path.Join(dir, "release.json")] = mustJSON(t, b.releases(p))
	}
	return files
}

// Archive renders the tree as a zip archive.
func (b *CatalogueBuilder) Archive(t testing.TB) []byte {
	t.Helper()

	files := b.Files(t)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteTree writes the tree below dir.
func (b *CatalogueBuilder) WriteTree(t testing.TB, dir string) {
	t.Helper()

	for name, content := range b.Files(t) {
		target := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
		require.NoError(t, os.WriteFile(target, content, 0o644))
	}
}

func (b *CatalogueBuilder) meta(p *PluginFixture) map[string]interface{} {
	m := map[string]interface{}{
		"id":         p.ID,
		"name":       p.Name,
		"authors":    p.Authors,
		"repository": p.Repository,
	}
	if len(p.Releases) > 0 {
		m["version"] = p.Releases[0].Version
	}
	if p.Description != nil {
		m["description"] = p.Description
	}
	return m
}

func (b *CatalogueBuilder) releases(p *PluginFixture) map[string]interface{} {
	entries := make([]map[string]interface{}, 0, len(p.Releases))
	latest := "N/A"
	for i, r := range p.Releases {
		if i == 0 {
			latest = r.Version
		}
		assets := make([]map[string]interface{}, 0, len(r.Assets))
		for _, name := range r.Assets {
			assets = append(assets, map[string]interface{}{
				"name":                 name,
				"browser_download_url": b.AssetURL(p.ID, name),
			})
		}
		deps := r.Dependencies
		if deps == nil {
			deps = map[string]string{}
		}
		entries = append(entries, map[string]interface{}{
			"tag_name":       "v" + r.Version,
			"parsed_version": r.Version,
			"assets":         assets,
			"meta": map[string]interface{}{
				"dependencies": deps,
				"requirements": r.Requirements,
			},
		})
	}
	return map[string]interface{}{
		"id":             p.ID,
		"latest_version": latest,
		"releases":       entries,
	}
}

func mustJSON(t testing.TB, v interface{}) []byte {
	t.Helper()

	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	return data
}
