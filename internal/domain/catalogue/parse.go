package catalogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Files inside each plugin directory of the catalogue tree.
const (
	metaFileName    = "meta.json"
	pluginFileName  = "plugin.json"
	releaseFileName = "release.json"
)

// defaultParseLimit bounds concurrent plugin directory parses.
const defaultParseLimit = 8

type metaFile struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Repository   string            `json:"repository"`
	Link         string            `json:"link"`
	Authors      []Author          `json:"authors"`
	Description  Description       `json:"description"`
	Dependencies map[string]string `json:"dependencies"`
	Requirements []string          `json:"requirements"`
}

type pluginFile struct {
	ID         string   `json:"id"`
	Repository string   `json:"repository"`
	Labels     []string `json:"labels"`
	Authors    []Author `json:"authors"`
}

type releaseFile struct {
	LatestVersion string         `json:"latest_version"`
	Releases      []releaseEntry `json:"releases"`
}

type releaseEntry struct {
	URL           string            `json:"url"`
	TagName       string            `json:"tag_name"`
	CreatedAt     string            `json:"created_at"`
	Prerelease    bool              `json:"prerelease"`
	ParsedVersion string            `json:"parsed_version"`
	Assets        []Asset           `json:"assets"`
	Dependencies  map[string]string `json:"dependencies"`
	Requirements  []string          `json:"requirements"`
	Meta          *struct {
		Dependencies map[string]string `json:"dependencies"`
		Requirements []string          `json:"requirements"`
	} `json:"meta"`
}

// locateRoot finds the directory whose children are plugin directories.
// Archives wrap the tree in one top-level folder, so a single level of
// nesting is followed.
func locateRoot(dir string) (string, error) {
	for depth := 0; depth < 2; depth++ {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", err
		}
		var subdirs []string
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if fileExists(filepath.Join(dir, e.Name(), metaFileName)) {
				return dir, nil
			}
			subdirs = append(subdirs, e.Name())
		}
		if len(subdirs) != 1 {
			break
		}
		dir = filepath.Join(dir, subdirs[0])
	}
	return "", ErrNoCatalogueRoot
}

// parseTree parses every plugin directory below dir concurrently.
func parseTree(ctx context.Context, dir string, limit int) ([]*PluginRecord, error) {
	root, err := locateRoot(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultParseLimit
	}

	var (
		mu      sync.Mutex
		records = make([]*PluginRecord, 0, len(entries))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pluginDir := filepath.Join(root, e.Name())
		if !fileExists(filepath.Join(pluginDir, metaFileName)) {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := parsePluginDir(pluginDir)
			if err != nil {
				return err
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoCatalogueRoot
	}
	return records, nil
}

// parsePluginDir reads meta.json and the optional plugin.json and release.json.
func parsePluginDir(dir string) (*PluginRecord, error) {
	var meta metaFile
	if err := readJSON(filepath.Join(dir, metaFileName), &meta); err != nil {
		return nil, err
	}

	var plugin pluginFile
	if err := readJSON(filepath.Join(dir, pluginFileName), &plugin); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var release releaseFile
	if err := readJSON(filepath.Join(dir, releaseFileName), &release); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	rec := &PluginRecord{
		ID:          meta.ID,
		Name:        meta.Name,
		Authors:     meta.Authors,
		Labels:      normalizeLabels(plugin.Labels),
		Description: meta.Description,
		Repository:  firstNonEmpty(meta.Repository, meta.Link, plugin.Repository),
	}
	if rec.ID == "" {
		rec.ID = firstNonEmpty(plugin.ID, filepath.Base(dir))
	}
	if len(rec.Authors) == 0 {
		rec.Authors = plugin.Authors
	}

	releases := make([]Release, 0, len(release.Releases))
	for _, entry := range release.Releases {
		r, ok := entry.toRelease()
		if ok {
			releases = append(releases, r)
		}
	}
	rec.Releases = normalizeReleases(releases)
	return rec, nil
}

// toRelease converts a release entry, reporting false for unparsable versions.
func (e releaseEntry) toRelease() (Release, bool) {
	raw := e.ParsedVersion
	if raw == "" {
		raw = strings.TrimPrefix(e.TagName, "v")
	}
	v, err := ParseVersion(raw)
	if err != nil {
		return Release{}, false
	}

	deps, reqs := e.Dependencies, e.Requirements
	if e.Meta != nil {
		if deps == nil {
			deps = e.Meta.Dependencies
		}
		if reqs == nil {
			reqs = e.Meta.Requirements
		}
	}

	r := Release{
		Version:      v,
		Tag:          e.TagName,
		URL:          e.URL,
		Prerelease:   e.Prerelease,
		Assets:       e.Assets,
		Dependencies: deps,
		Requirements: reqs,
	}
	if t, err := time.Parse(time.RFC3339, e.CreatedAt); err == nil {
		r.CreatedAt = t
	}
	return r, true
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
