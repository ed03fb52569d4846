package resolver

import (
	"context"
	"time"

	"github.com/felixgeelhaar/addonctl/internal/domain/confirm"
)

// Authorization tells the caller whether a prepared plan may run now.
type Authorization struct {
	Proceed   bool
	Intent    confirm.Intent
	ExpiresAt time.Time
}

// Strategy authorizes a top-level request. Dependencies inside a plan are
// never gated separately.
type Strategy func(ctx context.Context, actorID, targetSpec string) (Authorization, error)

// ConfirmThenInstall requires the actor to repeat the request before it runs.
func ConfirmThenInstall(gate *confirm.Gate) Strategy {
	return func(ctx context.Context, actorID, targetSpec string) (Authorization, error) {
		v, err := gate.Check(ctx, actorID, targetSpec)
		if err != nil {
			return Authorization{}, err
		}
		return Authorization{Proceed: v.Confirmed, Intent: v.Intent, ExpiresAt: v.ExpiresAt}, nil
	}
}

// InstallDirectly runs every request immediately.
func InstallDirectly() Strategy {
	return func(context.Context, string, string) (Authorization, error) {
		return Authorization{Proceed: true}, nil
	}
}

// Prepared is a resolved plan together with its authorization.
type Prepared struct {
	Plan          *Plan
	Authorization Authorization
}

// Prepare resolves req and applies strategy to the top-level request. A plan
// with nothing to install is authorized without consulting the strategy.
func (r *Resolver) Prepare(ctx context.Context, req Request, actorID string, strategy Strategy) (*Prepared, error) {
	plan, err := r.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return &Prepared{Plan: plan, Authorization: Authorization{Proceed: true}}, nil
	}
	if strategy == nil {
		strategy = InstallDirectly()
	}
	auth, err := strategy(ctx, actorID, req.TargetSpec())
	if err != nil {
		return nil, err
	}
	return &Prepared{Plan: plan, Authorization: auth}, nil
}
