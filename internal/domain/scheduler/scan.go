package scheduler

import (
	"sort"

	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Candidate is an installed plugin with a newer catalogue release.
type Candidate struct {
	PluginID  string
	Installed catalogue.Version
	Latest    catalogue.Version
}

// ScanUpgrades reports installed plugins older than the catalogue's latest
// release. Plugins missing from the catalogue or with unparsable versions
// are ignored. The result is ordered by id.
func ScanUpgrades(snap *catalogue.Snapshot, installed []ports.InstalledPlugin) []Candidate {
	var out []Candidate
	for _, inst := range installed {
		record, ok := snap.Get(inst.ID)
		if !ok {
			continue
		}
		latest := record.Latest()
		if latest.IsSentinel() {
			continue
		}
		current, err := catalogue.ParseVersion(inst.Version)
		if err != nil {
			continue
		}
		if current.LessThan(latest) {
			out = append(out, Candidate{PluginID: inst.ID, Installed: current, Latest: latest})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PluginID < out[j].PluginID })
	return out
}
