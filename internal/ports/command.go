// Package ports defines the narrow contracts the plugin manager core depends on.
package ports

import (
	"context"
	"strings"
	"time"
)

// CommandResult represents the result of executing an external process.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success returns true if the process exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// Output returns the most useful diagnostic text: stderr when present, stdout otherwise.
func (r CommandResult) Output() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// CommandCall records a command invocation.
type CommandCall struct {
	Command string
	Args    []string
}

// String renders the call the way a shell would show it.
func (c CommandCall) String() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

// CommandRunner executes external processes such as the requirement installer.
// A non-zero exit is reported through CommandResult.ExitCode, not as an error.
type CommandRunner interface {
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
}
