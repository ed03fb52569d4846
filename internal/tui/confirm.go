package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/addonctl/internal/domain/resolver"
)

// Prompt is the content of a confirmation dialog.
type Prompt struct {
	Title string
	// Lines starting with "↑" render as upgrades, the rest as installs.
	Lines []string
	Note  string
}

// PlanPrompt describes a resolved plan: "+" installs, "↑" upgrades.
func PlanPrompt(plan *resolver.Plan) Prompt {
	p := Prompt{
		Title: "Install plan for " + plan.Request.PluginID,
		Lines: planLines(plan),
	}
	if len(plan.Requirements) > 0 {
		p.Note = "python: " + strings.Join(plan.Requirements, ", ")
	}
	return p
}

// ConfirmOptions configures a confirmation dialog.
type ConfirmOptions struct {
	// Input defaults to stdin.
	Input io.Reader
	// Output defaults to stdout.
	Output io.Writer
}

// confirmModel asks whether the prompted change should run.
type confirmModel struct {
	prompt    Prompt
	focused   bool // true = yes, false = no
	decided   bool
	confirmed bool
	width     int
	keys      KeyMap
	styles    Styles
}

func newConfirmModel(prompt Prompt) confirmModel {
	return confirmModel{
		prompt:  prompt,
		focused: true,
		width:   60,
		keys:    DefaultKeyMap(),
		styles:  DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m confirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m confirmModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case m.keys.IsLeft(msg):
		m.focused = true
	case m.keys.IsRight(msg):
		m.focused = false
	case key.Matches(msg, m.keys.Select):
		return m.decide(m.focused)
	case key.Matches(msg, m.keys.Accept):
		return m.decide(true)
	case key.Matches(msg, m.keys.Reject), key.Matches(msg, m.keys.Cancel):
		return m.decide(false)
	}
	return m, nil
}

func (m confirmModel) decide(confirmed bool) (tea.Model, tea.Cmd) {
	m.decided = true
	m.confirmed = confirmed
	return m, tea.Quit
}

// View renders the prompt and the yes/no buttons.
func (m confirmModel) View() string {
	if m.decided {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.prompt.Title))
	b.WriteString("\n")
	for _, line := range m.prompt.Lines {
		style := m.styles.Install
		if strings.HasPrefix(line, "↑") {
			style = m.styles.Upgrade
		}
		b.WriteString("  " + style.Render(line) + "\n")
	}
	if m.prompt.Note != "" {
		b.WriteString("  " + m.styles.Muted.Render(m.prompt.Note) + "\n")
	}
	b.WriteString("\n")

	yesStyle, noStyle := m.styles.Button, m.styles.Button
	if m.focused {
		yesStyle = m.styles.ButtonActive
	} else {
		noStyle = m.styles.ButtonActive
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Center, yesStyle.Render("Install"), "  ", noStyle.Render("Cancel"))
	b.WriteString(lipgloss.NewStyle().Width(m.width).Align(lipgloss.Center).Render(buttons))
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.helpLine()))
	return b.String()
}

func (m confirmModel) helpLine() string {
	parts := make([]string, 0, 3)
	for _, binding := range m.keys.ShortHelp() {
		h := binding.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

// planLines renders one line per step: "+" installs, "↑" upgrades.
func planLines(plan *resolver.Plan) []string {
	lines := make([]string, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		var line string
		if s.Decision == resolver.Upgrade && s.Installed != nil {
			line = fmt.Sprintf("↑ %s %s -> %s", s.PluginID, s.Installed.Version, s.Release.Version)
		} else {
			line = fmt.Sprintf("+ %s@%s", s.PluginID, s.Release.Version)
		}
		if !s.TopLevel() {
			line += " (required by " + s.RequiredBy + ")"
		}
		lines = append(lines, line)
	}
	return lines
}

// Confirm shows the prompt and reports whether the user accepted it.
func Confirm(ctx context.Context, prompt Prompt, opts ConfirmOptions) (bool, error) {
	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}

	finalModel, err := tea.NewProgram(newConfirmModel(prompt), programOpts...).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	m, ok := finalModel.(confirmModel)
	if !ok {
		return false, fmt.Errorf("unexpected model type")
	}
	return m.confirmed, nil
}
