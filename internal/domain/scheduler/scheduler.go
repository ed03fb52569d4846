// Package scheduler periodically refreshes the catalogue and scans for
// upgrades, sharing the session lock with interactive commands.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = 30 * time.Minute

// State represents the scheduler's lifecycle state.
type State string

const (
	// StateStopped indicates no timer is running.
	StateStopped State = "stopped"
	// StateRunning indicates the timer is waiting for the next tick.
	StateRunning State = "running"
	// StateTicking indicates a tick holds the session lock.
	StateTicking State = "ticking"
)

// Event types for the scheduler state machine.
const (
	EventStart        = "START"
	EventStop         = "STOP"
	EventTick         = "TICK"
	EventTickComplete = "TICK_COMPLETE"
)

// Outcome classifies a tick.
type Outcome string

// Tick outcomes.
const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeFresh     Outcome = "fresh"
	OutcomeFailed    Outcome = "failed"
)

// Catalogue is the part of the catalogue store a tick drives.
type Catalogue interface {
	Snapshot() *catalogue.Snapshot
	IsStale(interval time.Duration) bool
	Refresh(ctx context.Context) error
}

// Locker is the session lock shared with mutating commands.
type Locker interface {
	TryAcquire(operation string) (func(), error)
}

// TickResult describes one tick.
type TickResult struct {
	At         time.Time
	Outcome    Outcome
	Candidates []Candidate
	Err        error
}

// Context is the statekit context of the scheduler machine.
type Context struct {
	Interval time.Duration
}

// Scheduler drives refresh and upgrade scans on a fixed interval.
type Scheduler struct {
	mu sync.RWMutex

	catalogue    Catalogue
	host         ports.Host
	lock         Locker
	journal      ports.Journal
	logger       ports.Logger
	now          func() time.Time
	interval     time.Duration
	checkUpgrade bool

	interp    *statekit.Interpreter[Context]
	stopCh    chan struct{}
	stoppedCh chan struct{}
	onTick    func(TickResult)
	last      *TickResult
	ticks     atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the tick period and staleness threshold.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCheckUpgrade toggles the upgrade scan after refresh.
func WithCheckUpgrade(enabled bool) Option {
	return func(s *Scheduler) {
		s.checkUpgrade = enabled
	}
}

// WithJournal records tick outcomes.
func WithJournal(j ports.Journal) Option {
	return func(s *Scheduler) {
		s.journal = j
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l ports.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a stopped scheduler.
func New(cat Catalogue, host ports.Host, lock Locker, opts ...Option) *Scheduler {
	s := &Scheduler{
		catalogue:    cat,
		host:         host,
		lock:         lock,
		logger:       ports.NewNopLogger(),
		now:          time.Now,
		interval:     DefaultInterval,
		checkUpgrade: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// buildSchedulerMachine constructs the lifecycle machine.
func buildSchedulerMachine(s *Scheduler) (*statekit.Interpreter[Context], error) {
	machine, err := statekit.NewMachine[Context]("update-scheduler").
		WithInitial("stopped").
		WithContext(Context{Interval: s.interval}).
		WithAction("countTick", func(_ *Context, _ statekit.Event) {
			s.ticks.Add(1)
		}).
		State("stopped").
		On(EventStart).Target("running").Done().
		State("running").
		On(EventTick).Target("ticking").
		On(EventStop).Target("stopped").Done().
		State("ticking").
		OnEntry("countTick").
		On(EventTickComplete).Target("running").
		On(EventStop).Target("stopped").Done().
		Build()

	if err != nil {
		return nil, err
	}

	return statekit.NewInterpreter(machine), nil
}

// SetTickHandler sets a callback invoked after every timer-driven tick.
func (s *Scheduler) SetTickHandler(fn func(TickResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTick = fn
}

// Start starts the timer. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interp != nil {
		return nil
	}

	interp, err := buildSchedulerMachine(s)
	if err != nil {
		return fmt.Errorf("failed to build state machine: %w", err)
	}
	interp.Start()
	interp.Send(statekit.Event{Type: EventStart})
	s.interp = interp

	s.stopCh = make(chan struct{})
	s.stoppedCh = make(chan struct{})
	go s.run(ctx, s.stopCh, s.stoppedCh)

	s.logger.Info(ctx, "scheduler started", ports.F("interval", s.interval.String()))
	return nil
}

// Stop cancels the timer and waits for an in-flight tick. No tick starts
// after Stop returns.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	interp := s.interp
	stopCh := s.stopCh
	stoppedCh := s.stoppedCh

	if interp == nil {
		s.mu.Unlock()
		return nil
	}

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	s.mu.Unlock()

	select {
	case <-stoppedCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	interp.Send(statekit.Event{Type: EventStop})
	interp.Stop()
	s.interp = nil
	s.mu.Unlock()

	s.logger.Info(ctx, "scheduler stopped")
	return nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.interp == nil {
		return StateStopped
	}
	return State(s.interp.State().Value)
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Ticks counts ticks that acquired the lock while the timer was running.
func (s *Scheduler) Ticks() int64 {
	return s.ticks.Load()
}

// Last returns the most recent tick result.
func (s *Scheduler) Last() (TickResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return TickResult{}, false
	}
	return *s.last, true
}

// run is the timer loop.
func (s *Scheduler) run(ctx context.Context, stopCh, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			select {
			case <-stopCh:
				return
			default:
			}
			result := s.Tick(ctx)

			s.mu.RLock()
			handler := s.onTick
			s.mu.RUnlock()
			if handler != nil {
				handler(result)
			}
		}
	}
}

// Tick runs one refresh-and-scan cycle if the session lock is free.
// Every tick that gets the lock refreshes the catalogue. A busy lock
// skips the tick without waiting.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	return s.tick(ctx, false)
}

// Warm is the startup tick: it refreshes only when the catalogue is
// older than the interval, then scans like Tick.
func (s *Scheduler) Warm(ctx context.Context) TickResult {
	return s.tick(ctx, true)
}

func (s *Scheduler) tick(ctx context.Context, onlyIfStale bool) TickResult {
	result := TickResult{At: s.now()}

	release, err := s.lock.TryAcquire("scheduled refresh")
	if err != nil {
		result.Outcome = OutcomeSkipped
		s.logger.Debug(ctx, "tick skipped", ports.ErrField(err))
		s.finish(ctx, &result)
		return result
	}
	defer release()

	s.send(EventTick)
	defer s.send(EventTickComplete)

	result.Outcome = OutcomeFresh
	if !onlyIfStale || s.catalogue.IsStale(s.interval) {
		if err := s.catalogue.Refresh(ctx); err != nil {
			result.Outcome = OutcomeFailed
			result.Err = err
			s.logger.Warn(ctx, "scheduled refresh failed", ports.ErrField(err))
			s.finish(ctx, &result)
			return result
		}
		result.Outcome = OutcomeRefreshed
	}

	if s.checkUpgrade {
		installed, err := s.host.Installed(ctx)
		if err != nil {
			result.Outcome = OutcomeFailed
			result.Err = fmt.Errorf("failed to list installed plugins: %w", err)
			s.logger.Warn(ctx, "upgrade scan failed", ports.ErrField(err))
			s.finish(ctx, &result)
			return result
		}
		result.Candidates = ScanUpgrades(s.catalogue.Snapshot(), installed)
		for _, c := range result.Candidates {
			s.logger.Info(ctx, "upgrade available",
				ports.PluginField(c.PluginID),
				ports.F("installed", c.Installed.String()),
				ports.F("latest", c.Latest.String()),
			)
		}
	}

	s.logger.Debug(ctx, "tick finished", ports.F("outcome", string(result.Outcome)), ports.F("candidates", len(result.Candidates)))
	s.finish(ctx, &result)
	return result
}

func (s *Scheduler) send(event string) {
	s.mu.RLock()
	interp := s.interp
	s.mu.RUnlock()
	if interp != nil {
		interp.Send(statekit.Event{Type: statekit.EventType(event)})
	}
}

// finish stores the result and journals it.
func (s *Scheduler) finish(ctx context.Context, result *TickResult) {
	s.mu.Lock()
	stored := *result
	s.last = &stored
	s.mu.Unlock()

	if s.journal == nil {
		return
	}
	entry := ports.JournalEntry{
		ID:        uuid.NewString(),
		Kind:      ports.JournalTick,
		Outcome:   string(result.Outcome),
		Detail:    describe(result),
		CreatedAt: result.At.UTC(),
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Warn(ctx, "failed to record tick", ports.ErrField(err))
	}
}

func describe(result *TickResult) string {
	if result.Err != nil {
		return result.Err.Error()
	}
	if len(result.Candidates) == 0 {
		return ""
	}
	parts := make([]string, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		parts = append(parts, fmt.Sprintf("%s %s -> %s", c.PluginID, c.Installed, c.Latest))
	}
	return strings.Join(parts, ", ")
}
