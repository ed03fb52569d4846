package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/domain/install"
	"github.com/felixgeelhaar/addonctl/internal/domain/resolver"
	"github.com/felixgeelhaar/addonctl/internal/domain/scheduler"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// ErrUpgradesFailed is wrapped when at least one plugin of an upgrade-all run failed.
var ErrUpgradesFailed = errors.New("some upgrades failed")

// upgradeAllSpec is the target spec confirmed by an upgrade-all request.
const upgradeAllSpec = "upgrade --all"

// InstallOptions adjust one install or upgrade.
type InstallOptions struct {
	// AssumeYes skips the confirmation gate.
	AssumeYes bool
}

// UpgradeResult is the outcome of one plugin in an upgrade-all run.
type UpgradeResult struct {
	Candidate scheduler.Candidate
	Report    *install.Report
	Err       error
}

// UpgradeAllReport collects every per-plugin result.
type UpgradeAllReport struct {
	Results []UpgradeResult
}

// Failed returns the results that ended in an error.
func (r *UpgradeAllReport) Failed() []UpgradeResult {
	var out []UpgradeResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

func (m *Manager) strategy(req Requester, opts InstallOptions) resolver.Strategy {
	if m.gate == nil || opts.AssumeYes || !req.Interactive {
		return resolver.InstallDirectly()
	}
	return resolver.ConfirmThenInstall(m.gate)
}

// Install resolves target ("foo", "foo>=2.0.0") and installs the plan.
func (m *Manager) Install(ctx context.Context, req Requester, target string, out ports.Replier, opts InstallOptions) (*install.Report, error) {
	request, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	release, err := m.guard(req, "install "+request.PluginID)
	if err != nil {
		return nil, err
	}
	defer release()

	return m.run(ctx, req, request, out, opts)
}

// Upgrade installs the newest release of an installed plugin.
func (m *Manager) Upgrade(ctx context.Context, req Requester, id string, out ports.Replier, opts InstallOptions) (*install.Report, error) {
	release, err := m.guard(req, "upgrade "+id)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := m.lookup(ctx, id); err != nil {
		return nil, err
	}
	request := resolver.Request{PluginID: id, Requirement: catalogue.AnyRequirement(), Upgrade: true}
	return m.run(ctx, req, request, out, opts)
}

func (m *Manager) run(ctx context.Context, req Requester, request resolver.Request, out ports.Replier, opts InstallOptions) (*install.Report, error) {
	if err := m.ensureFresh(ctx, out); err != nil {
		return nil, err
	}

	prepared, err := m.resolver.Prepare(ctx, request, req.ID, m.strategy(req, opts))
	if err != nil {
		reply(ctx, out, ports.Replyf(ports.ToneError, "Cannot install %s: %v", request.TargetSpec(), err))
		return nil, err
	}
	plan := prepared.Plan

	if plan.Empty() {
		for _, s := range plan.Skipped {
			if s.PluginID == request.PluginID {
				reply(ctx, out, ports.Replyf(ports.ToneInfo, "Nothing to do: %s@%s is %s", s.PluginID, s.Version, s.Reason))
			}
		}
		return &install.Report{Plan: plan}, nil
	}

	if !prepared.Authorization.Proceed {
		reply(ctx, out, ports.Replyf(ports.ToneWarn, "Plan: %s. Repeat the command within %s to confirm",
			plan.Summary(), prepared.Authorization.ExpiresAt.Sub(prepared.Authorization.Intent.CreatedAt)))
		return nil, &ConfirmationRequiredError{
			TargetSpec: request.TargetSpec(),
			Plan:       plan,
			ExpiresAt:  prepared.Authorization.ExpiresAt,
		}
	}

	if len(plan.Requirements) > 0 {
		reply(ctx, out, ports.Replyf(ports.ToneInfo, "Python requirements: %s", strings.Join(plan.Requirements, ", ")))
	}
	m.logger.Info(ctx, "executing plan", ports.PluginField(request.PluginID), ports.F("steps", plan.Summary()))

	report, err := m.executor.ExecutePlan(ctx, plan, out)
	if err != nil {
		reply(ctx, out, ports.Replyf(ports.ToneError, "Failed to install %s: %v", request.TargetSpec(), err))
		if report != nil && len(report.NotStarted) > 0 {
			reply(ctx, out, ports.Replyf(ports.ToneWarn, "Not started: %s", strings.Join(report.NotStarted, ", ")))
		}
		return report, err
	}
	return report, nil
}

// UpgradeAll upgrades every outdated plugin, continuing past failures.
func (m *Manager) UpgradeAll(ctx context.Context, req Requester, out ports.Replier, opts InstallOptions) (*UpgradeAllReport, error) {
	release, err := m.guard(req, upgradeAllSpec)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := m.ensureFresh(ctx, out); err != nil {
		return nil, err
	}
	candidates, err := m.scan(ctx)
	if err != nil {
		return nil, err
	}
	report := &UpgradeAllReport{}
	if len(candidates) == 0 {
		reply(ctx, out, ports.Replyf(ports.ToneSuccess, "All plugins are up to date"))
		return report, nil
	}

	auth, err := m.strategy(req, opts)(ctx, req.ID, upgradeAllSpec)
	if err != nil {
		return nil, err
	}
	if !auth.Proceed {
		reply(ctx, out, ports.Replyf(ports.ToneWarn, "%d plugins can be upgraded. Repeat the command to confirm", len(candidates)))
		return nil, &ConfirmationRequiredError{TargetSpec: upgradeAllSpec, ExpiresAt: auth.ExpiresAt}
	}

	for _, c := range candidates {
		res := UpgradeResult{Candidate: c}
		plan, err := m.resolver.Resolve(ctx, resolver.Request{PluginID: c.PluginID, Requirement: catalogue.AnyRequirement(), Upgrade: true})
		if err == nil {
			res.Report, err = m.executor.ExecutePlan(ctx, plan, out)
		}
		if err != nil {
			res.Err = err
			reply(ctx, out, ports.Replyf(ports.ToneError, "Failed to upgrade %s: %v", c.PluginID, err))
		}
		report.Results = append(report.Results, res)
	}

	if failed := report.Failed(); len(failed) > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrUpgradesFailed, len(failed), len(report.Results))
	}
	return report, nil
}

// Disable unloads an installed plugin and keeps it from loading again.
func (m *Manager) Disable(ctx context.Context, req Requester, id string, out ports.Replier) error {
	release, err := m.guard(req, "disable "+id)
	if err != nil {
		return err
	}
	defer release()

	inst, err := m.lookup(ctx, id)
	if err != nil {
		return err
	}
	err = m.host.Disable(ctx, id)
	m.recordAction(ctx, ports.JournalDisable, inst, err)
	if err != nil {
		reply(ctx, out, ports.Replyf(ports.ToneError, "Failed to disable %s: %v", id, err))
		return fmt.Errorf("disable %s: %w", id, err)
	}
	reply(ctx, out, ports.Replyf(ports.ToneSuccess, "Disabled %s@%s", id, inst.Version))
	return nil
}

// Reload asks the host to reload an installed plugin from its file.
func (m *Manager) Reload(ctx context.Context, req Requester, id string, out ports.Replier) error {
	release, err := m.guard(req, "reload "+id)
	if err != nil {
		return err
	}
	defer release()

	inst, err := m.lookup(ctx, id)
	if err != nil {
		return err
	}
	err = m.host.Reload(ctx, id)
	m.recordAction(ctx, ports.JournalReload, inst, err)
	if err != nil {
		reply(ctx, out, ports.Replyf(ports.ToneError, "Failed to reload %s: %v", id, err))
		return fmt.Errorf("reload %s: %w", id, err)
	}
	reply(ctx, out, ports.Replyf(ports.ToneSuccess, "Reloaded %s@%s", id, inst.Version))
	return nil
}

// Update refreshes the catalogue regardless of staleness and, when enabled,
// reports upgrade candidates.
func (m *Manager) Update(ctx context.Context, req Requester, out ports.Replier) ([]scheduler.Candidate, error) {
	release, err := m.guard(req, "update")
	if err != nil {
		return nil, err
	}
	defer release()

	reply(ctx, out, ports.Replyf(ports.ToneInfo, "Refreshing catalogue"))
	err = m.catalogue.Refresh(ctx)
	m.recordRefresh(ctx, err)
	if err != nil {
		reply(ctx, out, ports.Replyf(ports.ToneError, "Catalogue refresh failed: %v", err))
		return nil, err
	}
	reply(ctx, out, ports.Replyf(ports.ToneSuccess, "Catalogue updated: %d plugins", m.catalogue.Snapshot().Len()))

	if !m.settings.CheckUpgrade {
		return nil, nil
	}
	candidates, err := m.scan(ctx)
	if err != nil {
		return nil, err
	}
	entry := ports.JournalEntry{Kind: ports.JournalScan, Outcome: "ok"}
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		parts = append(parts, fmt.Sprintf("%s %s -> %s", c.PluginID, c.Installed, c.Latest))
		reply(ctx, out, ports.Replyf(ports.ToneInfo, "Upgrade available: %s %s -> %s", c.PluginID, c.Installed, c.Latest))
	}
	entry.Detail = strings.Join(parts, ", ")
	m.record(ctx, entry)
	return candidates, nil
}

func (m *Manager) lookup(ctx context.Context, id string) (ports.InstalledPlugin, error) {
	inst, found, err := m.host.Lookup(ctx, id)
	if err != nil {
		return ports.InstalledPlugin{}, fmt.Errorf("look up %s: %w", id, err)
	}
	if !found {
		return ports.InstalledPlugin{}, fmt.Errorf("%w: %s", ErrNotInstalled, id)
	}
	return inst, nil
}

func (m *Manager) recordAction(ctx context.Context, kind ports.JournalKind, inst ports.InstalledPlugin, err error) {
	entry := ports.JournalEntry{Kind: kind, PluginID: inst.ID, Version: inst.Version, Outcome: "ok"}
	if err != nil {
		entry.Outcome = "failed"
		entry.Detail = err.Error()
	}
	m.record(ctx, entry)
}
