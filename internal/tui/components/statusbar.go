package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/pablasso/wiggum/internal/tui/styles"
)

// StatusBar renders a bottom help bar from key bindings.
type StatusBar struct{}

// NewStatusBar creates a new StatusBar instance.
func NewStatusBar() StatusBar {
	return StatusBar{}
}

// Render returns the status bar for the enabled bindings, joined with " • "
// and padded to width.
func (s StatusBar) Render(width int, bindings []key.Binding) string {
	items := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		items = append(items, strings.TrimSpace(h.Key+" "+h.Desc))
	}

	return styles.StatusBarStyle.Width(width).Render(strings.Join(items, " • "))
}
