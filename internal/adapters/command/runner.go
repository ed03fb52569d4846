// Package command runs external processes such as pip.
package command

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// ExecRunner executes real processes.
type ExecRunner struct {
	env    []string
	dir    string
	logger ports.Logger
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(kv ...string) Option {
	return func(r *ExecRunner) {
		r.env = append(r.env, kv...)
	}
}

// WithDir sets the working directory of every process.
func WithDir(dir string) Option {
	return func(r *ExecRunner) {
		r.dir = dir
	}
}

// WithLogger logs each invocation at debug level.
func WithLogger(l ports.Logger) Option {
	return func(r *ExecRunner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewExecRunner creates an ExecRunner. pip never prompts when run through it.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		env:    []string{"PIP_NO_INPUT=1"},
		logger: ports.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a command and returns the result. A non-zero exit is
// reported in the result; only failures to run the process are errors.
func (r *ExecRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Dir = r.dir

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := ports.CommandResult{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	call := ports.CommandCall{Command: command, Args: args}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			r.logger.Debug(ctx, "command exited", ports.F("command", call.String()), ports.F("exit_code", result.ExitCode))
			return result, nil
		}
		return result, err
	}

	r.logger.Debug(ctx, "command finished", ports.F("command", call.String()), ports.F("duration", result.Duration.String()))
	return result, nil
}

// Ensure ExecRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*ExecRunner)(nil)
