// Package manager binds the command surface to the catalogue, resolver,
// installation pipeline and session lock.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/domain/confirm"
	"github.com/felixgeelhaar/addonctl/internal/domain/install"
	"github.com/felixgeelhaar/addonctl/internal/domain/resolver"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Requester identifies who issued a command.
type Requester struct {
	ID string
	// Interactive requesters get paginated listings and confirmation prompts.
	Interactive bool
	Permission  int
	// Language selects plugin descriptions, e.g. "zh_cn".
	Language string
}

// Catalogue is the part of the catalogue store the manager uses.
type Catalogue interface {
	Snapshot() *catalogue.Snapshot
	IsStale(interval time.Duration) bool
	Refresh(ctx context.Context) error
}

// Locker is the session lock guarding mutating operations.
type Locker interface {
	TryAcquire(operation string) (func(), error)
}

// Executor runs resolved plans.
type Executor interface {
	ExecutePlan(ctx context.Context, plan *resolver.Plan, out ports.Replier) (*install.Report, error)
}

// Settings are the configuration values the manager consults.
type Settings struct {
	PermissionLevel int
	PageSize        int
	UpdateInterval  time.Duration
	CheckUpgrade    bool
	DefaultLanguage string
}

// DefaultSettings mirror the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		PermissionLevel: 3,
		PageSize:        6,
		UpdateInterval:  30 * time.Minute,
		CheckUpgrade:    true,
		DefaultLanguage: catalogue.DefaultLanguage,
	}
}

// Manager implements every user-facing operation.
type Manager struct {
	catalogue Catalogue
	host      ports.Host
	resolver  *resolver.Resolver
	executor  Executor
	lock      Locker
	gate      *confirm.Gate
	journal   ports.Journal
	logger    ports.Logger
	settings  Settings
}

// Option configures a Manager.
type Option func(*Manager)

// WithGate enables confirm-by-repeating for interactive requesters.
func WithGate(g *confirm.Gate) Option {
	return func(m *Manager) {
		m.gate = g
	}
}

// WithJournal sets the history store.
func WithJournal(j ports.Journal) Option {
	return func(m *Manager) {
		m.journal = j
	}
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSettings replaces DefaultSettings.
func WithSettings(s Settings) Option {
	return func(m *Manager) {
		m.settings = s
	}
}

// New creates a manager.
func New(cat Catalogue, host ports.Host, res *resolver.Resolver, exec Executor, lock Locker, opts ...Option) *Manager {
	m := &Manager{
		catalogue: cat,
		host:      host,
		resolver:  res,
		executor:  exec,
		lock:      lock,
		logger:    ports.NewNopLogger(),
		settings:  DefaultSettings(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.settings.PageSize <= 0 {
		m.settings.PageSize = DefaultSettings().PageSize
	}
	if m.settings.DefaultLanguage == "" {
		m.settings.DefaultLanguage = catalogue.DefaultLanguage
	}
	return m
}

// Settings returns the effective settings.
func (m *Manager) Settings() Settings {
	return m.settings
}

func (m *Manager) authorize(req Requester, operation string) error {
	if req.Permission < m.settings.PermissionLevel {
		return &PermissionDeniedError{Operation: operation, Required: m.settings.PermissionLevel, Actual: req.Permission}
	}
	return nil
}

// guard checks permission and takes the session lock for a mutating operation.
func (m *Manager) guard(req Requester, operation string) (func(), error) {
	if err := m.authorize(req, operation); err != nil {
		return nil, err
	}
	return m.lock.TryAcquire(operation)
}

// ensureFresh refreshes a stale catalogue. A failed refresh only warns as
// long as some catalogue data is available.
func (m *Manager) ensureFresh(ctx context.Context, out ports.Replier) error {
	if !m.catalogue.IsStale(m.settings.UpdateInterval) {
		return nil
	}
	err := m.catalogue.Refresh(ctx)
	m.recordRefresh(ctx, err)
	if err == nil {
		return nil
	}
	if m.catalogue.Snapshot().Len() == 0 {
		return fmt.Errorf("%w: %v", ErrEmptyCatalogue, err)
	}
	m.logger.Warn(ctx, "catalogue refresh failed, using cached data", ports.ErrField(err))
	reply(ctx, out, ports.Replyf(ports.ToneWarn, "Catalogue refresh failed, using cached data: %v", err))
	return nil
}

func (m *Manager) recordRefresh(ctx context.Context, err error) {
	entry := ports.JournalEntry{Kind: ports.JournalRefresh, Outcome: "ok"}
	if err != nil {
		entry.Outcome = "failed"
		entry.Detail = err.Error()
	}
	m.record(ctx, entry)
}

func (m *Manager) record(ctx context.Context, entry ports.JournalEntry) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Record(ctx, entry); err != nil {
		m.logger.Warn(ctx, "failed to record journal entry", ports.F("kind", string(entry.Kind)), ports.ErrField(err))
	}
}

func (m *Manager) language(req Requester) string {
	if req.Language != "" {
		return req.Language
	}
	return m.settings.DefaultLanguage
}

func reply(ctx context.Context, out ports.Replier, r ports.Reply) {
	if out != nil {
		out.Reply(ctx, r)
	}
}
