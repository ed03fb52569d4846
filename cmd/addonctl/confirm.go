package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/addonctl/internal/domain/manager"
	"github.com/felixgeelhaar/addonctl/internal/domain/scheduler"
	"github.com/felixgeelhaar/addonctl/internal/tui"
)

var (
	errCancelled           = errors.New("cancelled")
	errConfirmationExpired = errors.New("confirmation expired, run the command again")
)

// confirmed runs call and, when the manager asks for confirmation, shows
// the prompt and repeats call once the user accepts.
func confirmed[T any](ctx context.Context, req manager.Requester, prompt func(*manager.ConfirmationRequiredError) tui.Prompt, call func() (T, error)) (T, error) {
	result, err := call()
	pending, ok := manager.AsConfirmationRequired(err)
	if !ok || !req.Interactive {
		return result, err
	}

	accepted, err := tui.Confirm(ctx, prompt(pending), tui.ConfirmOptions{})
	if err != nil {
		return result, fmt.Errorf("confirmation prompt: %w", err)
	}
	if !accepted {
		return result, errCancelled
	}

	result, err = call()
	if _, again := manager.AsConfirmationRequired(err); again {
		return result, errConfirmationExpired
	}
	return result, err
}

func planPrompt(pending *manager.ConfirmationRequiredError) tui.Prompt {
	if pending.Plan == nil {
		return tui.Prompt{Title: "Confirm " + pending.TargetSpec}
	}
	return tui.PlanPrompt(pending.Plan)
}

// upgradePrompt lists the plugins an upgrade-all run would touch.
func upgradePrompt(candidates []scheduler.Candidate) func(*manager.ConfirmationRequiredError) tui.Prompt {
	return func(*manager.ConfirmationRequiredError) tui.Prompt {
		p := tui.Prompt{Title: fmt.Sprintf("Upgrade %d plugins", len(candidates))}
		for _, c := range candidates {
			p.Lines = append(p.Lines, fmt.Sprintf("↑ %s %s -> %s", c.PluginID, c.Installed, c.Latest))
		}
		return p
	}
}
