package confirm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Verdict is the gate's answer to one request.
type Verdict struct {
	// Confirmed is true when this request repeats a live intent.
	Confirmed bool
	// Intent is the recorded intent when the request must be repeated.
	Intent Intent
	// ExpiresAt is when the recorded intent stops being confirmable.
	ExpiresAt time.Time
}

// Gate requires an actor to repeat the same request within a timeout.
// Each actor has at most one live intent; a different request replaces it.
type Gate struct {
	mu      sync.Mutex
	store   Store
	timeout time.Duration
	now     func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// NewGate creates a gate. A non-positive timeout uses DefaultTimeout.
func NewGate(store Store, timeout time.Duration, opts ...GateOption) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	g := &Gate{
		store:   store,
		timeout: timeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Timeout returns the confirmation window.
func (g *Gate) Timeout() time.Duration {
	return g.timeout
}

// Check records or confirms an intent. Expired intents of every actor are
// purged first.
func (g *Gate) Check(ctx context.Context, actorID, targetSpec string) (Verdict, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intents, err := g.store.Load(ctx)
	if err != nil {
		return Verdict{}, fmt.Errorf("load intents: %w", err)
	}

	now := g.now()
	for actor, intent := range intents {
		if intent.Expired(now, g.timeout) {
			delete(intents, actor)
		}
	}

	if existing, ok := intents[actorID]; ok && existing.TargetSpec == targetSpec {
		delete(intents, actorID)
		if err := g.store.Save(ctx, intents); err != nil {
			return Verdict{}, fmt.Errorf("save intents: %w", err)
		}
		return Verdict{Confirmed: true, Intent: existing}, nil
	}

	intent := Intent{
		ID:         uuid.New().String(),
		ActorID:    actorID,
		TargetSpec: targetSpec,
		CreatedAt:  now,
	}
	intents[actorID] = intent
	if err := g.store.Save(ctx, intents); err != nil {
		return Verdict{}, fmt.Errorf("save intents: %w", err)
	}
	return Verdict{Intent: intent, ExpiresAt: intent.ExpiresAt(g.timeout)}, nil
}

// Pending returns the live intent of an actor, if any.
func (g *Gate) Pending(ctx context.Context, actorID string) (Intent, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intents, err := g.store.Load(ctx)
	if err != nil {
		return Intent{}, false, fmt.Errorf("load intents: %w", err)
	}
	intent, ok := intents[actorID]
	if !ok || intent.Expired(g.now(), g.timeout) {
		return Intent{}, false, nil
	}
	return intent, true, nil
}
