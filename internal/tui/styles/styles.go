// Package styles defines shared lipgloss styles for the watch view.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/wiggum/internal/board"
	"github.com/pablasso/wiggum/internal/status"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#5FAFAF") // Teal accent
	secondaryColor = lipgloss.Color("#666666") // Gray for secondary text
	successColor   = lipgloss.Color("#87AF87") // Muted sage for success
	errorColor     = lipgloss.Color("#AF5F5F") // Muted terracotta for errors
	warnColor      = lipgloss.Color("#D7AF5F") // Amber for paused

	// TitleStyle for headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// SubtleStyle for hints/help text
	SubtleStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	// SelectedStyle marks the task the runner is on.
	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// StatusBarStyle for bottom status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	// BoxStyle for panel borders
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)

	// SuccessStyle for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// ErrorStyle for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// WarnStyle for the paused label
	WarnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warnColor)
)

// Label renders a runner label in its color.
func Label(label string) string {
	switch label {
	case status.LabelRunning:
		return SuccessStyle.Bold(true).Render(label)
	case status.LabelPaused:
		return WarnStyle.Render(label)
	case status.LabelCrashed:
		return ErrorStyle.Bold(true).Render(label)
	default:
		return SubtleStyle.Render(label)
	}
}

// TaskIndicator returns the glyph for a task status.
func TaskIndicator(s board.Status) string {
	switch s {
	case board.StatusDone:
		return SuccessStyle.Render("✓")
	case board.StatusFailed:
		return ErrorStyle.Render("✗")
	default:
		return SubtleStyle.Render("○")
	}
}
