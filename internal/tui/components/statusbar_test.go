package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/key"
)

func binding(keys, desc string) key.Binding {
	return key.NewBinding(key.WithKeys(keys), key.WithHelp(keys, desc))
}

func TestStatusBar_Render_JoinsBindings(t *testing.T) {
	sb := NewStatusBar()
	result := sb.Render(60, []key.Binding{
		binding("p", "pause"),
		binding("r", "refresh"),
		binding("q", "quit"),
	})

	if !strings.Contains(result, "p pause • r refresh • q quit") {
		t.Errorf("expected items joined with ' • ', got: %s", result)
	}
}

func TestStatusBar_Render_SkipsDisabled(t *testing.T) {
	sb := NewStatusBar()
	disabled := binding("+", "add iterations")
	disabled.SetEnabled(false)

	result := sb.Render(60, []key.Binding{disabled, binding("q", "quit")})

	if strings.Contains(result, "add iterations") {
		t.Errorf("disabled binding should be hidden, got: %s", result)
	}
	if !strings.Contains(result, "q quit") {
		t.Errorf("expected 'q quit', got: %s", result)
	}
}

func TestStatusBar_Render_EmptyBindings(t *testing.T) {
	sb := NewStatusBar()
	result := sb.Render(20, nil)

	if strings.TrimSpace(result) != "" {
		t.Errorf("expected blank bar, got: %q", result)
	}
}
