package resolver

import (
	"strings"

	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Decision is the outcome of examining one node of the dependency graph.
type Decision int

// Decisions.
const (
	// Skip means the node is already satisfied and contributes no step.
	Skip Decision = iota
	// Install means the plugin is not present and will be installed.
	Install
	// Upgrade means a different version replaces the installed one.
	Upgrade
	// Unsupported means a host-managed dependency is not satisfied.
	Unsupported
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case Install:
		return "install"
	case Upgrade:
		return "upgrade"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Request is one top-level install or upgrade request.
type Request struct {
	PluginID    string
	Requirement catalogue.Requirement
	// Upgrade replaces an installed version even when it satisfies the requirement.
	Upgrade bool
}

// TargetSpec renders the request the way the user typed it.
func (r Request) TargetSpec() string {
	spec := r.PluginID
	if !r.Requirement.IsAny() {
		spec += r.Requirement.String()
	}
	if r.Upgrade {
		return "upgrade " + spec
	}
	return spec
}

// Step is one plugin install in a plan.
type Step struct {
	PluginID    string
	Requirement catalogue.Requirement
	Release     catalogue.Release
	Decision    Decision
	// Installed is the version being replaced when Decision is Upgrade.
	Installed *ports.InstalledPlugin
	// RequiredBy is the dependent that pulled this step in; empty for the top-level step.
	RequiredBy string
}

// TopLevel reports whether this step is the requested plugin itself.
func (s Step) TopLevel() bool {
	return s.RequiredBy == ""
}

// Skipped records a node that contributed nothing.
type Skipped struct {
	PluginID string
	Version  string
	Reason   string
}

// Plan is the ordered result of resolving one request. Steps are in
// dependency-then-dependent order and each plugin id appears at most once.
type Plan struct {
	Request      Request
	Steps        []Step
	Requirements []string
	Skipped      []Skipped
}

// Empty reports whether the plan has nothing to install.
func (p *Plan) Empty() bool {
	return len(p.Steps) == 0
}

// PluginIDs lists step ids in execution order.
func (p *Plan) PluginIDs() []string {
	out := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.PluginID)
	}
	return out
}

// Summary renders the steps as "id@version" joined by commas.
func (p *Plan) Summary() string {
	parts := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		parts = append(parts, s.PluginID+"@"+s.Release.Version.String())
	}
	return strings.Join(parts, ", ")
}

func (p *Plan) addRequirements(specs []string, seen map[string]struct{}) {
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if _, ok := seen[spec]; ok {
			continue
		}
		seen[spec] = struct{}{}
		p.Requirements = append(p.Requirements, spec)
	}
}
