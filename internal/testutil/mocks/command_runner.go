// Package mocks provides fakes for the ports used in tests.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// pipArgs is the prefix every pip invocation of the requirement installer uses.
var pipArgs = []string{"-m", "pip", "--disable-pip-version-check"}

type scripted struct {
	result ports.CommandResult
	err    error
}

// CommandRunner answers scripted commands and records every call.
// Unscripted commands fail.
type CommandRunner struct {
	mu     sync.Mutex
	script map[string]scripted
	calls  []ports.CommandCall
}

// NewCommandRunner creates an empty CommandRunner.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{script: make(map[string]scripted)}
}

// AddResult scripts the result of command with exactly args.
func (m *CommandRunner) AddResult(command string, args []string, result ports.CommandResult) {
	m.set(command, args, scripted{result: result})
}

// AddError scripts command with exactly args to fail to start.
func (m *CommandRunner) AddError(command string, args []string, err error) {
	m.set(command, args, scripted{err: err})
}

// AddPipShow scripts "python -m pip show name". An empty version means
// the distribution is not installed.
func (m *CommandRunner) AddPipShow(python, name, version string) {
	args := append(append([]string{}, pipArgs...), "show", name)
	if version == "" {
		m.AddResult(python, args, ports.CommandResult{ExitCode: 1, Stderr: "WARNING: Package(s) not found: " + name})
		return
	}
	m.AddResult(python, args, ports.CommandResult{Stdout: fmt.Sprintf("Name: %s\nVersion: %s\nSummary: test\n", name, version)})
}

// AddPipInstall scripts "python -m pip install spec -q" with exitCode.
func (m *CommandRunner) AddPipInstall(python, spec string, exitCode int) {
	args := append(append([]string{}, pipArgs...), "install", spec, "-q")
	result := ports.CommandResult{ExitCode: exitCode}
	if exitCode != 0 {
		result.Stderr = "ERROR: Could not find a version that satisfies the requirement " + spec
	}
	m.AddResult(python, args, result)
}

func (m *CommandRunner) set(command string, args []string, s scripted) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script[commandKey(command, args)] = s
}

// Run records the call and returns the scripted answer.
func (m *CommandRunner) Run(_ context.Context, command string, args ...string) (ports.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, ports.CommandCall{Command: command, Args: args})
	s, ok := m.script[commandKey(command, args)]
	if !ok {
		return ports.CommandResult{}, fmt.Errorf("unscripted command: %s %s", command, strings.Join(args, " "))
	}
	return s.result, s.err
}

// Calls returns a copy of the recorded calls.
func (m *CommandRunner) Calls() []ports.CommandCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.CommandCall(nil), m.calls...)
}

// Reset forgets the script and the recorded calls.
func (m *CommandRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = make(map[string]scripted)
	m.calls = nil
}

func commandKey(command string, args []string) string {
	return command + "\x00" + strings.Join(args, "\x00")
}

var _ ports.CommandRunner = (*CommandRunner)(nil)
