// Package tui provides the interactive terminal prompts of the CLI.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme colors.
var (
	ColorPrimary    = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"}
	ColorSuccess    = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	ColorWarning    = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"}
	ColorError      = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	ColorMuted      = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"}
	ColorText       = lipgloss.AdaptiveColor{Light: "#4c4f69", Dark: "#cdd6f4"}
	ColorBackground = lipgloss.AdaptiveColor{Light: "#eff1f5", Dark: "#1e1e2e"}
	ColorSurface    = lipgloss.AdaptiveColor{Light: "#e6e9ef", Dark: "#313244"}
)

// Styles contains the lipgloss styles shared by prompts.
type Styles struct {
	Title     lipgloss.Style
	Paragraph lipgloss.Style
	Muted     lipgloss.Style

	Install lipgloss.Style
	Upgrade lipgloss.Style

	Button       lipgloss.Style
	ButtonActive lipgloss.Style

	Help lipgloss.Style
}

// DefaultStyles returns the default prompt styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1),

		Paragraph: lipgloss.NewStyle().
			Foreground(ColorText),

		Muted: lipgloss.NewStyle().
			Foreground(ColorMuted),

		Install: lipgloss.NewStyle().
			Foreground(ColorSuccess),

		Upgrade: lipgloss.NewStyle().
			Foreground(ColorWarning),

		Button: lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(ColorText).
			Background(ColorSurface).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted),

		ButtonActive: lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(ColorBackground).
			Background(ColorPrimary).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary),

		Help: lipgloss.NewStyle().
			Foreground(ColorMuted),
	}
}
