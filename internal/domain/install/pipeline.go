// Package install executes resolved plans: one staged, rollback-capable
// step per plugin, with pip requirements installed before the download.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/addonctl/internal/domain/resolver"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// Requirements ensures pip-style requirements are present.
type Requirements interface {
	Ensure(ctx context.Context, spec string) (bool, error)
}

// StepResult describes how one plugin step ended.
type StepResult struct {
	PluginID string
	Version  string
	Decision resolver.Decision
	// Stages lists every stage entered, in order.
	Stages []Stage
	// FailedAt is the stage whose work failed; empty on success.
	FailedAt     Stage
	ArtifactPath string
	BackupPath   string
	// Requirements lists specs pip actually installed during this step.
	Requirements []string
	RolledBack   bool
	RollbackErr  error
	Err          error
}

// OK reports whether the step finished in done.
func (r *StepResult) OK() bool {
	return r.Err == nil
}

// Final is the terminal stage of the step.
func (r *StepResult) Final() Stage {
	if len(r.Stages) == 0 {
		return StagePending
	}
	return r.Stages[len(r.Stages)-1]
}

// Pipeline installs plugin releases into a host.
type Pipeline struct {
	host         ports.Host
	fetcher      ports.Fetcher
	requirements Requirements
	journal      ports.Journal
	logger       ports.Logger
	backupDir    string
	extensions   []string
	now          func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithJournal records each step outcome.
func WithJournal(j ports.Journal) Option {
	return func(p *Pipeline) {
		p.journal = j
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l ports.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithBackupDir sets where replaced artifacts are moved.
func WithBackupDir(dir string) Option {
	return func(p *Pipeline) {
		p.backupDir = dir
	}
}

// WithPreferredExtensions sets the asset extension preference order.
func WithPreferredExtensions(exts []string) Option {
	return func(p *Pipeline) {
		p.extensions = exts
	}
}

// WithClock overrides the time source used for backup names and journal entries.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a pipeline. Backups default to a ".backup"
// directory inside the host plugin directory.
func NewPipeline(host ports.Host, fetcher ports.Fetcher, reqs Requirements, opts ...Option) *Pipeline {
	p := &Pipeline{
		host:         host,
		fetcher:      fetcher,
		requirements: reqs,
		logger:       ports.NewNopLogger(),
		extensions:   []string{".mcdr", ".pyz", ".zip", ".py"},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.backupDir == "" {
		p.backupDir = filepath.Join(host.PluginDirectory(), ".backup")
	}
	return p
}

// Execute runs one step through backup, requirements, download and
// activation. pending lists the requirement specs still to be ensured for
// this step. A failure after backup restores and reloads the previous
// version.
func (p *Pipeline) Execute(ctx context.Context, step resolver.Step, pending []string) *StepResult {
	result := &StepResult{
		PluginID: step.PluginID,
		Version:  step.Release.Version.String(),
		Decision: step.Decision,
	}
	log := p.logger.With(ports.PluginField(step.PluginID), ports.VersionField(step.Release.Version))

	run, err := newStepRun(step.PluginID)
	if err != nil {
		result.Err = err
		result.Stages = []Stage{StageFailed}
		return result
	}
	defer run.stop()

	backedUp := false
	fail := func(stage Stage, err error) *StepResult {
		run.fail(stage, err)
		result.FailedAt = run.trace.failedAt
		result.Err = &StepError{PluginID: step.PluginID, Version: result.Version, Stage: stage, Err: err}
		if backedUp || result.ArtifactPath != "" {
			result.RollbackErr = p.rollback(ctx, step, result, backedUp)
			result.RolledBack = result.RollbackErr == nil && backedUp
			if result.RollbackErr != nil {
				log.Error(ctx, "rollback failed", ports.ErrField(result.RollbackErr))
			}
		}
		result.Stages = run.trace.stages
		log.Warn(ctx, "step failed", ports.StageField(string(stage)), ports.ErrField(err))
		return result
	}

	if step.Decision == resolver.Upgrade && step.Installed != nil {
		if err := run.advance(EventBackup, StageBackupExisting); err != nil {
			return fail(run.current(), err)
		}
		backup, err := p.backupExisting(ctx, *step.Installed)
		result.BackupPath = backup
		if err != nil {
			return fail(StageBackupExisting, err)
		}
		backedUp = true
		log.Debug(ctx, "backed up previous version", ports.F("backup", backup))
	}

	if err := run.advance(EventRequirements, StageInstallRequirements); err != nil {
		return fail(run.current(), err)
	}
	for _, spec := range pending {
		ran, err := p.requirements.Ensure(ctx, spec)
		if err != nil {
			return fail(StageInstallRequirements, err)
		}
		if ran {
			result.Requirements = append(result.Requirements, spec)
		}
	}

	if err := run.advance(EventDownload, StageDownload); err != nil {
		return fail(run.current(), err)
	}
	artifact, err := p.download(ctx, step)
	if err != nil {
		return fail(StageDownload, err)
	}
	result.ArtifactPath = artifact

	if err := run.advance(EventActivate, StageActivate); err != nil {
		return fail(run.current(), err)
	}
	if err := p.host.Load(ctx, ports.Artifact{ID: step.PluginID, Version: result.Version, Path: artifact}); err != nil {
		return fail(StageActivate, err)
	}

	if err := run.advance(EventComplete, StageDone); err != nil {
		return fail(run.current(), err)
	}
	result.Stages = run.trace.stages
	log.Info(ctx, "plugin installed", ports.F("decision", step.Decision.String()))
	return result
}

// backupExisting unloads the installed plugin and moves its artifact aside.
// When the move fails the plugin is loaded again.
func (p *Pipeline) backupExisting(ctx context.Context, installed ports.InstalledPlugin) (string, error) {
	if err := p.host.Unload(ctx, installed.ID); err != nil {
		return "", fmt.Errorf("failed to unload %s: %w", installed.ID, err)
	}
	if installed.FilePath == "" {
		return "", nil
	}
	if _, err := os.Stat(installed.FilePath); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	if err := os.MkdirAll(p.backupDir, 0o755); err != nil {
		p.reloadPrevious(ctx, installed)
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	suffix := p.now().UTC().Format("20060102T150405") + "-" + uuid.NewString()[:8]
	target := filepath.Join(p.backupDir, filepath.Base(installed.FilePath)+"."+suffix+".bak")
	if err := os.Rename(installed.FilePath, target); err != nil {
		p.reloadPrevious(ctx, installed)
		return "", fmt.Errorf("failed to move %s to backup: %w", installed.FilePath, err)
	}
	return target, nil
}

func (p *Pipeline) reloadPrevious(ctx context.Context, installed ports.InstalledPlugin) {
	err := p.host.Load(ctx, ports.Artifact{ID: installed.ID, Version: installed.Version, Path: installed.FilePath})
	if err != nil {
		p.logger.Error(ctx, "failed to reload previous version", ports.PluginField(installed.ID), ports.ErrField(err))
	}
}

// download fetches the release asset into a hidden temp file in the plugin
// directory and renames it into place once complete.
func (p *Pipeline) download(ctx context.Context, step resolver.Step) (string, error) {
	asset, ok := step.Release.PickAsset(p.extensions)
	if !ok {
		return "", ErrNoAsset
	}
	name := filepath.Base(asset.Name)
	if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid asset file name %q", asset.Name)
	}

	dir := p.host.PluginDirectory()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create plugin directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := p.fetcher.Fetch(ctx, asset.DownloadURL, tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	target := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to place %s: %w", name, err)
	}
	return target, nil
}

// rollback removes a partially installed artifact and restores the backup.
// When backedUp is set the previous version is reloaded.
func (p *Pipeline) rollback(ctx context.Context, step resolver.Step, result *StepResult, backedUp bool) error {
	var errs []error
	if result.ArtifactPath != "" {
		if err := os.Remove(result.ArtifactPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove new artifact: %w", err))
		}
	}
	if !backedUp || step.Installed == nil {
		return errors.Join(errs...)
	}

	previous := *step.Installed
	if result.BackupPath != "" {
		if err := os.Rename(result.BackupPath, previous.FilePath); err != nil {
			errs = append(errs, fmt.Errorf("failed to restore backup: %w", err))
			return errors.Join(errs...)
		}
	}
	err := p.host.Load(ctx, ports.Artifact{ID: previous.ID, Version: previous.Version, Path: previous.FilePath})
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to reload previous version: %w", err))
	}
	return errors.Join(errs...)
}
