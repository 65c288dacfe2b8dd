// Package tui is the terminal watch view: a live status screen with
// pause, budget and refresh controls.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/wiggum/internal/status"
	"github.com/pablasso/wiggum/internal/tui/styles"
)

// Minimum terminal size the watch view lays out in.
const (
	MinTerminalWidth  = 60
	MinTerminalHeight = 15
)

// Run starts the watch view and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, collector *status.Collector, interval time.Duration) error {
	p := tea.NewProgram(
		New(ctx, collector, interval),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func renderTerminalTooSmall(width, height int) string {
	msg := lipgloss.JoinVertical(lipgloss.Center,
		styles.ErrorStyle.Render("Terminal too small"),
		styles.SubtleStyle.Render(fmt.Sprintf("Minimum: %dx%d", MinTerminalWidth, MinTerminalHeight)),
		styles.SubtleStyle.Render(fmt.Sprintf("Current: %dx%d", width, height)),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, msg)
}
