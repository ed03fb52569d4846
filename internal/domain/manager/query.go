package manager

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/domain/scheduler"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Built-in browse indexes. Any catalogue label is also an index.
const (
	IndexAll       = "all"
	IndexInstalled = "installed"
	IndexOutdated  = "outdated"
)

// DefaultLabels are offered as indexes even when no plugin carries them yet.
var DefaultLabels = []string{"api", "information", "tool", "management"}

// InfoReleaseCount is how many recent releases Info returns.
const InfoReleaseCount = 5

// Status is a plugin's install state relative to the catalogue.
type Status string

// Statuses.
const (
	StatusNotInstalled Status = "not installed"
	StatusInstalled    Status = "installed"
	StatusOutdated     Status = "outdated"
)

// Entry is one listed catalogue plugin.
type Entry struct {
	Record    *catalogue.PluginRecord
	Status    Status
	Installed string
}

// Page is one page of a listing.
type Page struct {
	Entries []Entry
	Page    int
	MaxPage int
	Total   int
}

// BrowseQuery selects a listing.
type BrowseQuery struct {
	Index string
	Sort  catalogue.SortKey
	// Page is 1-based; zero means the first page.
	Page int
}

// Info is the detail view of one plugin.
type Info struct {
	Record      *catalogue.PluginRecord
	Description string
	Latest      catalogue.Version
	Releases    []catalogue.Release
	Installed   *ports.InstalledPlugin
	Status      Status
}

// Indexes lists the built-in indexes followed by every known label.
func (m *Manager) Indexes() []string {
	return append([]string{IndexAll, IndexInstalled, IndexOutdated}, m.labels()...)
}

func (m *Manager) labels() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range append(append([]string{}, DefaultLabels...), m.catalogue.Snapshot().Labels()...) {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Browse lists catalogue plugins of one index.
func (m *Manager) Browse(ctx context.Context, req Requester, q BrowseQuery) (*Page, error) {
	if err := m.authorize(req, "browse"); err != nil {
		return nil, err
	}

	installed, err := m.installedByID(ctx)
	if err != nil {
		return nil, err
	}
	snap := m.catalogue.Snapshot()

	query := catalogue.Query{Sort: q.Sort}
	switch index := strings.ToLower(strings.TrimSpace(q.Index)); index {
	case "", IndexAll:
	case IndexInstalled:
		query.IDs = make([]string, 0, len(installed))
		for id := range installed {
			query.IDs = append(query.IDs, id)
		}
	case IndexOutdated:
		query.IDs = []string{}
		for _, c := range scheduler.ScanUpgrades(snap, values(installed)) {
			query.IDs = append(query.IDs, c.PluginID)
		}
	default:
		if !contains(m.labels(), index) {
			return nil, &UnknownIndexError{Index: q.Index, Known: m.Indexes()}
		}
		query.Label = index
	}

	records, err := snap.Filter(query)
	if err != nil {
		return nil, err
	}
	return m.paginate(req, entries(records, installed), q.Page)
}

// Search lists catalogue plugins matching keyword.
func (m *Manager) Search(ctx context.Context, req Requester, keyword string, page int) (*Page, error) {
	if err := m.authorize(req, "search"); err != nil {
		return nil, err
	}
	installed, err := m.installedByID(ctx)
	if err != nil {
		return nil, err
	}
	records, err := m.catalogue.Snapshot().Filter(catalogue.Query{Keyword: keyword})
	if err != nil {
		return nil, err
	}
	return m.paginate(req, entries(records, installed), page)
}

// paginate slices entries for interactive requesters; others get one page
// holding everything.
func (m *Manager) paginate(req Requester, all []Entry, page int) (*Page, error) {
	if page == 0 {
		page = 1
	}
	if !req.Interactive {
		if page != 1 {
			return nil, &InvalidPageError{Page: page, MaxPage: 1}
		}
		return &Page{Entries: all, Page: 1, MaxPage: 1, Total: len(all)}, nil
	}

	size := m.settings.PageSize
	maxPage := (len(all) + size - 1) / size
	if maxPage == 0 {
		maxPage = 1
	}
	if page < 1 || page > maxPage {
		return nil, &InvalidPageError{Page: page, MaxPage: maxPage}
	}
	start := (page - 1) * size
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return &Page{Entries: all[start:end], Page: page, MaxPage: maxPage, Total: len(all)}, nil
}

// Info describes one catalogue plugin together with its installed version.
func (m *Manager) Info(ctx context.Context, req Requester, id string) (*Info, error) {
	if err := m.authorize(req, "info"); err != nil {
		return nil, err
	}
	record, ok := m.catalogue.Snapshot().Get(id)
	if !ok {
		return nil, &catalogue.PluginNotFoundError{ID: id}
	}

	info := &Info{
		Record:      record,
		Description: record.Description.Text(m.language(req)),
		Latest:      record.Latest(),
		Status:      StatusNotInstalled,
	}
	n := len(record.Releases)
	if n > InfoReleaseCount {
		n = InfoReleaseCount
	}
	info.Releases = record.Releases[:n]

	inst, found, err := m.host.Lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", id, err)
	}
	if found {
		info.Installed = &inst
		info.Status = status(record, inst.Version)
	}
	return info, nil
}

// List returns the host's installed plugins ordered by id.
func (m *Manager) List(ctx context.Context, req Requester) ([]ports.InstalledPlugin, error) {
	if err := m.authorize(req, "list"); err != nil {
		return nil, err
	}
	installed, err := m.host.Installed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list installed plugins: %w", err)
	}
	sort.Slice(installed, func(i, j int) bool { return installed[i].ID < installed[j].ID })
	return installed, nil
}

// Outdated lists installed plugins with a newer catalogue release.
func (m *Manager) Outdated(ctx context.Context, req Requester) ([]scheduler.Candidate, error) {
	if err := m.authorize(req, "outdated"); err != nil {
		return nil, err
	}
	return m.scan(ctx)
}

func (m *Manager) scan(ctx context.Context) ([]scheduler.Candidate, error) {
	installed, err := m.host.Installed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list installed plugins: %w", err)
	}
	return scheduler.ScanUpgrades(m.catalogue.Snapshot(), installed), nil
}

// History returns recent journal entries, newest first.
func (m *Manager) History(ctx context.Context, req Requester, limit int) ([]ports.JournalEntry, error) {
	if err := m.authorize(req, "history"); err != nil {
		return nil, err
	}
	if m.journal == nil {
		return nil, nil
	}
	return m.journal.Recent(ctx, limit)
}

func (m *Manager) installedByID(ctx context.Context) (map[string]ports.InstalledPlugin, error) {
	list, err := m.host.Installed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list installed plugins: %w", err)
	}
	out := make(map[string]ports.InstalledPlugin, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func entries(records []*catalogue.PluginRecord, installed map[string]ports.InstalledPlugin) []Entry {
	out := make([]Entry, 0, len(records))
	for _, r := range records {
		e := Entry{Record: r, Status: StatusNotInstalled}
		if inst, ok := installed[r.ID]; ok {
			e.Installed = inst.Version
			e.Status = status(r, inst.Version)
		}
		out = append(out, e)
	}
	return out
}

func status(record *catalogue.PluginRecord, installed string) Status {
	v, err := catalogue.ParseVersion(installed)
	if err == nil && v.LessThan(record.Latest()) {
		return StatusOutdated
	}
	return StatusInstalled
}

func values(m map[string]ports.InstalledPlugin) []ports.InstalledPlugin {
	out := make([]ports.InstalledPlugin, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
