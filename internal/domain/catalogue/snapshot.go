package catalogue

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// SortKey selects the ordering of filtered records.
type SortKey string

// Recognized sort keys.
const (
	SortByName    SortKey = "name"
	SortByAuthors SortKey = "authors"
	SortByLabels  SortKey = "labels"
)

var sortKeys = []SortKey{SortByName, SortByAuthors, SortByLabels}

// sortAccessors maps each key to the field it orders by.
var sortAccessors = map[SortKey]func(*PluginRecord) string{
	SortByName: func(p *PluginRecord) string {
		return p.DisplayName()
	},
	SortByAuthors: func(p *PluginRecord) string {
		return strings.Join(p.AuthorNames(), ",")
	},
	SortByLabels: func(p *PluginRecord) string {
		return strings.Join(p.Labels, ",")
	},
}

// ParseSortKey validates a user-supplied sort key. An empty key means SortByName.
func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortByName, nil
	}
	key := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sortAccessors[key]; !ok {
		return "", &InvalidSortKeyError{Key: s}
	}
	return key, nil
}

// SortKeys lists the recognized keys.
func SortKeys() []SortKey {
	out := make([]SortKey, len(sortKeys))
	copy(out, sortKeys)
	return out
}

// Query selects and orders records. Zero fields do not filter.
type Query struct {
	Sort    SortKey
	Label   string
	IDs     []string
	Keyword string
}

// Snapshot is an immutable view of the catalogue.
type Snapshot struct {
	plugins     map[string]*PluginRecord
	ids         []string
	refreshedAt time.Time
}

// NewSnapshot builds a snapshot. The records become owned by the snapshot.
func NewSnapshot(records []*PluginRecord, refreshedAt time.Time) *Snapshot {
	s := &Snapshot{
		plugins:     make(map[string]*PluginRecord, len(records)),
		refreshedAt: refreshedAt,
	}
	for _, r := range records {
		s.plugins[r.ID] = r
	}
	s.ids = make([]string, 0, len(s.plugins))
	for id := range s.plugins {
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)
	return s
}

// EmptySnapshot is the catalogue before any load or refresh.
func EmptySnapshot() *Snapshot {
	return NewSnapshot(nil, time.Time{})
}

// Get looks up a record by id.
func (s *Snapshot) Get(id string) (*PluginRecord, bool) {
	p, ok := s.plugins[id]
	return p, ok
}

// Len returns the number of plugins.
func (s *Snapshot) Len() int {
	return len(s.plugins)
}

// IDs returns all plugin ids in lexical order.
func (s *Snapshot) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// RefreshedAt is when the snapshot's data was downloaded. Zero if never.
func (s *Snapshot) RefreshedAt() time.Time {
	return s.refreshedAt
}

// Labels returns every label used by any plugin, sorted.
func (s *Snapshot) Labels() []string {
	seen := make(map[string]struct{})
	for _, p := range s.plugins {
		for _, l := range p.Labels {
			seen[l] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Filter applies the keyword, then the id subset, then the label, and sorts
// by the requested key with the id as tiebreaker.
func (s *Snapshot) Filter(q Query) ([]*PluginRecord, error) {
	key := q.Sort
	if key == "" {
		key = SortByName
	}
	accessor, ok := sortAccessors[key]
	if !ok {
		return nil, &InvalidSortKeyError{Key: string(q.Sort)}
	}

	// Casers keep state, so each call gets its own.
	fold := cases.Fold()
	keyword := fold.String(strings.TrimSpace(q.Keyword))

	var subset map[string]struct{}
	if q.IDs != nil {
		subset = make(map[string]struct{}, len(q.IDs))
		for _, id := range q.IDs {
			subset[id] = struct{}{}
		}
	}

	out := make([]*PluginRecord, 0, len(s.ids))
	for _, id := range s.ids {
		p := s.plugins[id]
		if keyword != "" && !matchesKeyword(p, keyword, fold) {
			continue
		}
		if subset != nil {
			if _, ok := subset[id]; !ok {
				continue
			}
		}
		if q.Label != "" && !p.HasLabel(q.Label) {
			continue
		}
		out = append(out, p)
	}

	sortKeysByID := make(map[string]string, len(out))
	for _, p := range out {
		sortKeysByID[p.ID] = fold.String(accessor(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := sortKeysByID[out[i].ID], sortKeysByID[out[j].ID]
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchesKeyword(p *PluginRecord, keyword string, fold cases.Caser) bool {
	if strings.Contains(fold.String(p.ID), keyword) || strings.Contains(fold.String(p.Name), keyword) {
		return true
	}
	for _, text := range p.Description.All() {
		if strings.Contains(fold.String(text), keyword) {
			return true
		}
	}
	return false
}
