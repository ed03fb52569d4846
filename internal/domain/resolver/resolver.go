// Package resolver turns an install request into an ordered plan of plugin installs.
package resolver

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// DefaultBlacklist lists host-managed ids that are never installed automatically.
var DefaultBlacklist = []string{"python", "mcdreforged"}

// Catalogue provides the snapshot a resolution runs against.
type Catalogue interface {
	Snapshot() *catalogue.Snapshot
}

// Resolver resolves dependency graphs depth-first, post-order.
type Resolver struct {
	catalogue Catalogue
	host      ports.Host
	blacklist map[string]struct{}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBlacklist replaces the host-managed id list.
func WithBlacklist(ids ...string) Option {
	return func(r *Resolver) {
		r.blacklist = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			r.blacklist[id] = struct{}{}
		}
	}
}

// New creates a resolver.
func New(cat Catalogue, host ports.Host, opts ...Option) *Resolver {
	r := &Resolver{catalogue: cat, host: host}
	WithBlacklist(DefaultBlacklist...)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsBlacklisted reports whether id is host-managed.
func (r *Resolver) IsBlacklisted(id string) bool {
	_, ok := r.blacklist[id]
	return ok
}

type nodeState int

const (
	unvisited nodeState = iota
	visiting
	visited
)

// resolution carries the state of one Resolve call.
type resolution struct {
	r         *Resolver
	snap      *catalogue.Snapshot
	installed map[string]ports.InstalledPlugin
	plan      *Plan
	state     map[string]nodeState
	chosen    map[string]catalogue.Version
	path      []string
	reqSeen   map[string]struct{}
}

// Resolve expands req into a plan against one consistent catalogue snapshot.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Plan, error) {
	installed, err := r.host.Installed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list installed plugins: %w", err)
	}

	res := &resolution{
		r:         r,
		snap:      r.catalogue.Snapshot(),
		installed: make(map[string]ports.InstalledPlugin, len(installed)),
		plan:      &Plan{Request: req},
		state:     make(map[string]nodeState),
		chosen:    make(map[string]catalogue.Version),
		reqSeen:   make(map[string]struct{}),
	}
	for _, p := range installed {
		res.installed[p.ID] = p
	}

	if err := res.visit(req.PluginID, req.Requirement, req.Upgrade, ""); err != nil {
		return nil, err
	}
	return res.plan, nil
}

func (res *resolution) visit(id string, req catalogue.Requirement, upgrade bool, parent string) error {
	switch res.state[id] {
	case visiting:
		return &CyclicDependencyError{Cycle: res.cycleTo(id)}
	case visited:
		if chosen := res.chosen[id]; !req.Accept(chosen) {
			return &VersionConflictError{ID: id, Requirement: req.String(), Chosen: chosen.String(), RequiredBy: parent}
		}
		return nil
	}

	decision, installed, release, err := res.decide(id, req, upgrade, parent)
	if err != nil {
		return err
	}

	if decision == Skip {
		res.state[id] = visited
		res.chosen[id] = parseInstalled(installed.Version)
		res.plan.Skipped = append(res.plan.Skipped, Skipped{
			PluginID: id,
			Version:  installed.Version,
			Reason:   skipReason(res.r.IsBlacklisted(id), upgrade),
		})
		return nil
	}

	deps, err := release.DependencyRequirements()
	if err != nil {
		return err
	}

	res.state[id] = visiting
	res.path = append(res.path, id)
	for _, dep := range deps {
		if err := res.visit(dep.ID, dep.Requirement, false, id); err != nil {
			return err
		}
	}
	res.path = res.path[:len(res.path)-1]
	res.state[id] = visited
	res.chosen[id] = release.Version

	res.plan.addRequirements(release.Requirements, res.reqSeen)
	step := Step{
		PluginID:    id,
		Requirement: req,
		Release:     release,
		Decision:    decision,
		RequiredBy:  parent,
	}
	if decision == Upgrade {
		inst := installed
		step.Installed = &inst
	}
	res.plan.Steps = append(res.plan.Steps, step)
	return nil
}

// decide classifies a node. Expected outcomes are Decision values; only
// failures are errors.
func (res *resolution) decide(
	id string,
	req catalogue.Requirement,
	upgrade bool,
	parent string,
) (Decision, ports.InstalledPlugin, catalogue.Release, error) {
	installed, isInstalled := res.installed[id]
	satisfied := isInstalled && req.Accept(parseInstalled(installed.Version))

	if res.r.IsBlacklisted(id) {
		if satisfied {
			return Skip, installed, catalogue.Release{}, nil
		}
		return Unsupported, installed, catalogue.Release{}, &UnsupportedDependencyError{
			ID:          id,
			Requirement: req.String(),
			RequiredBy:  parent,
		}
	}

	if satisfied && !upgrade {
		return Skip, installed, catalogue.Release{}, nil
	}

	release, err := catalogue.ResolveRelease(res.snap, id, req)
	if err != nil {
		return Unsupported, installed, catalogue.Release{}, err
	}

	if !isInstalled {
		return Install, installed, release, nil
	}
	if satisfied && !release.Version.GreaterThan(parseInstalled(installed.Version)) {
		return Skip, installed, catalogue.Release{}, nil
	}
	return Upgrade, installed, release, nil
}

func (res *resolution) cycleTo(id string) []string {
	for i, p := range res.path {
		if p == id {
			cycle := append([]string{}, res.path[i:]...)
			return append(cycle, id)
		}
	}
	return []string{id, id}
}

func skipReason(blacklisted, upgrade bool) string {
	switch {
	case blacklisted:
		return "provided by host"
	case upgrade:
		return "already up to date"
	default:
		return "already satisfied"
	}
}

// parseInstalled parses a host-reported version; unparsable versions sort
// below everything and satisfy nothing.
func parseInstalled(s string) catalogue.Version {
	v, err := catalogue.ParseVersion(s)
	if err != nil {
		return catalogue.NegativeInfinity()
	}
	return v
}
