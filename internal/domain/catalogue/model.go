package catalogue

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// DefaultLanguage is the description fallback when the requested language is missing.
const DefaultLanguage = "en_us"

// Asset is one downloadable file of a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size,omitempty"`
}

// Release is one published version of a plugin.
type Release struct {
	Version      Version
	Tag          string
	URL          string
	CreatedAt    time.Time
	Prerelease   bool
	Assets       []Asset
	Dependencies map[string]string
	Requirements []string
}

// Usable reports whether the release can be installed.
func (r Release) Usable() bool {
	return len(r.Assets) > 0 && !r.Version.IsSentinel()
}

// PickAsset chooses the artifact to install. The first asset whose name ends with
// one of the preferred extensions wins, in preference order; otherwise the first asset.
func (r Release) PickAsset(preferredExt []string) (Asset, bool) {
	if len(r.Assets) == 0 {
		return Asset{}, false
	}
	for _, ext := range preferredExt {
		ext = strings.ToLower(ext)
		for _, a := range r.Assets {
			if strings.HasSuffix(strings.ToLower(a.Name), ext) {
				return a, true
			}
		}
	}
	return r.Assets[0], true
}

// DependencyRequirements parses the dependency map, sorted by id for deterministic traversal.
func (r Release) DependencyRequirements() ([]Dependency, error) {
	deps := make([]Dependency, 0, len(r.Dependencies))
	for id, expr := range r.Dependencies {
		req, err := ParseRequirement(expr)
		if err != nil {
			return nil, fmt.Errorf("dependency %s of %s: %w", id, r.Version, err)
		}
		deps = append(deps, Dependency{ID: id, Requirement: req})
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].ID < deps[j].ID })
	return deps, nil
}

// Dependency is a parsed edge of the dependency graph.
type Dependency struct {
	ID          string
	Requirement Requirement
}

// Author is a plugin author. The catalogue encodes it either as a plain
// name or as an object with name and link.
type Author struct {
	Name string `json:"name"`
	Link string `json:"link,omitempty"`
}

// UnmarshalJSON accepts both encodings.
func (a *Author) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		a.Name = name
		return nil
	}
	type plain Author
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("author must be a string or object: %w", err)
	}
	*a = Author(p)
	return nil
}

// Description is either keyed by language code ("en_us", "zh_cn") or plain text.
type Description struct {
	texts map[string]string
	plain string
}

// NewDescription builds a description from a language map.
func NewDescription(texts map[string]string) Description {
	d := Description{texts: make(map[string]string, len(texts))}
	for k, v := range texts {
		d.texts[strings.ToLower(k)] = v
	}
	return d
}

// PlainDescription builds a language-independent description.
func PlainDescription(text string) Description {
	return Description{plain: text}
}

// UnmarshalJSON accepts a string or a language map.
func (d *Description) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*d = PlainDescription(plain)
		return nil
	}
	var texts map[string]string
	if err := json.Unmarshal(data, &texts); err != nil {
		return fmt.Errorf("description must be a string or language map: %w", err)
	}
	*d = NewDescription(texts)
	return nil
}

// MarshalJSON writes the original shape back.
func (d Description) MarshalJSON() ([]byte, error) {
	if d.texts == nil {
		return json.Marshal(d.plain)
	}
	return json.Marshal(d.texts)
}

// All returns every text variant, used for keyword matching.
func (d Description) All() []string {
	if d.texts == nil {
		if d.plain == "" {
			return nil
		}
		return []string{d.plain}
	}
	out := make([]string, 0, len(d.texts))
	for _, k := range d.languages() {
		out = append(out, d.texts[k])
	}
	return out
}

// Text returns the best text for lang, falling back to DefaultLanguage and
// then to any available language.
func (d Description) Text(lang string) string {
	if d.texts == nil {
		return d.plain
	}
	key := strings.ToLower(lang)
	if t, ok := d.texts[key]; ok {
		return t
	}

	keys := d.languages()
	if len(keys) == 0 {
		return ""
	}

	// The first supported tag is the matcher's fallback, so put the default first.
	supported := make([]language.Tag, 0, len(keys))
	ordered := make([]string, 0, len(keys))
	if _, ok := d.texts[DefaultLanguage]; ok {
		supported = append(supported, languageTag(DefaultLanguage))
		ordered = append(ordered, DefaultLanguage)
	}
	for _, k := range keys {
		if k == DefaultLanguage {
			continue
		}
		supported = append(supported, languageTag(k))
		ordered = append(ordered, k)
	}

	requested, err := language.Parse(strings.ReplaceAll(key, "_", "-"))
	if err != nil {
		return d.texts[ordered[0]]
	}
	_, idx, _ := language.NewMatcher(supported).Match(requested)
	return d.texts[ordered[idx]]
}

func (d Description) languages() []string {
	keys := make([]string, 0, len(d.texts))
	for k := range d.texts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// languageTag converts a catalogue language code into a BCP 47 tag.
func languageTag(code string) language.Tag {
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return language.Und
	}
	return tag
}

// PluginRecord is the catalogue entry of one plugin. Records reachable from a
// published Snapshot must not be modified.
type PluginRecord struct {
	ID          string
	Name        string
	Authors     []Author
	Labels      []string
	Description Description
	Repository  string
	Releases    []Release
}

// Latest is the newest release version, or the sentinel when there is none.
func (p *PluginRecord) Latest() Version {
	if len(p.Releases) == 0 {
		return NegativeInfinity()
	}
	return p.Releases[0].Version
}

// LatestRelease returns the newest release.
func (p *PluginRecord) LatestRelease() (Release, bool) {
	if len(p.Releases) == 0 {
		return Release{}, false
	}
	return p.Releases[0], true
}

// HasLabel reports whether the plugin carries the label.
func (p *PluginRecord) HasLabel(label string) bool {
	for _, l := range p.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// AuthorNames returns author names in declaration order.
func (p *PluginRecord) AuthorNames() []string {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		names = append(names, a.Name)
	}
	return names
}

// DisplayName is the name, or the id when the name is empty.
func (p *PluginRecord) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// normalizeReleases drops unusable releases and orders the rest strictly
// newest-first, keeping the first occurrence of duplicate versions.
func normalizeReleases(releases []Release) []Release {
	usable := make([]Release, 0, len(releases))
	for _, r := range releases {
		if r.Usable() {
			usable = append(usable, r)
		}
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].Version.GreaterThan(usable[j].Version)
	})
	out := usable[:0]
	for i, r := range usable {
		if i > 0 && r.Version.Equal(out[len(out)-1].Version) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// normalizeLabels returns a sorted label set.
func normalizeLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
