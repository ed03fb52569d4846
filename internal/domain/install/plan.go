package install

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/addonctl/internal/domain/resolver"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Report is the outcome of executing a plan.
type Report struct {
	Plan    *resolver.Plan
	Results []*StepResult
	// NotStarted lists step ids abandoned after a failure.
	NotStarted []string
}

// Installed returns the ids of steps that completed.
func (r *Report) Installed() []string {
	var out []string
	for _, res := range r.Results {
		if res.OK() {
			out = append(out, res.PluginID)
		}
	}
	return out
}

// Failed returns the failing step, if any.
func (r *Report) Failed() *StepResult {
	for _, res := range r.Results {
		if !res.OK() {
			return res
		}
	}
	return nil
}

// ExecutePlan runs the plan's steps in order. Each requirement spec is
// ensured at most once, by the first step that needs it. The first failing
// step aborts the remaining ones; completed steps stay installed.
func (p *Pipeline) ExecutePlan(ctx context.Context, plan *resolver.Plan, out ports.Replier) (*Report, error) {
	report := &Report{Plan: plan}
	ensured := make(map[string]struct{})

	for i, step := range plan.Steps {
		var pending []string
		for _, spec := range step.Release.Requirements {
			if _, ok := ensured[spec]; ok {
				continue
			}
			pending = append(pending, spec)
		}

		reply(ctx, out, ports.Replyf(ports.ToneInfo, "%s %s@%s", verb(step.Decision), step.PluginID, step.Release.Version))
		res := p.Execute(ctx, step, pending)
		report.Results = append(report.Results, res)
		p.record(ctx, res)

		if !res.OK() {
			report.NotStarted = remaining(plan.Steps[i+1:])
			if res.RolledBack {
				reply(ctx, out, ports.Replyf(ports.ToneWarn, "Restored %s@%s", step.PluginID, step.Installed.Version))
			}
			if !step.TopLevel() {
				return report, &DependencyInstallError{
					DependencyID: step.PluginID,
					Dependent:    plan.Request.PluginID,
					Err:          res.Err,
				}
			}
			return report, res.Err
		}

		for _, spec := range pending {
			ensured[spec] = struct{}{}
		}
		reply(ctx, out, ports.Replyf(ports.ToneSuccess, "Installed %s@%s", step.PluginID, step.Release.Version))
	}
	return report, nil
}

func (p *Pipeline) record(ctx context.Context, res *StepResult) {
	if p.journal == nil {
		return
	}
	kind := ports.JournalInstall
	if res.Decision == resolver.Upgrade {
		kind = ports.JournalUpgrade
	}
	entry := ports.JournalEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		PluginID:  res.PluginID,
		Version:   res.Version,
		Outcome:   "ok",
		CreatedAt: p.now().UTC(),
	}
	if !res.OK() {
		entry.Outcome = "failed"
		entry.Detail = res.Err.Error()
	}
	if err := p.journal.Record(ctx, entry); err != nil {
		p.logger.Warn(ctx, "failed to record journal entry", ports.PluginField(res.PluginID), ports.ErrField(err))
	}
}

func remaining(steps []resolver.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.PluginID)
	}
	return out
}

func verb(d resolver.Decision) string {
	if d == resolver.Upgrade {
		return "Upgrading"
	}
	return "Installing"
}

func reply(ctx context.Context, out ports.Replier, r ports.Reply) {
	if out != nil {
		out.Reply(ctx, r)
	}
}

