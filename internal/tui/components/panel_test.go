package components

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func numbered(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	return lines
}

func TestPanel_View_ShortContentHasBlankGutter(t *testing.T) {
	p := NewPanel(12, 4)
	p.SetLines(numbered(2))

	rows := strings.Split(p.View(), "\n")
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if !strings.HasPrefix(rows[0], "line 0") {
		t.Errorf("unexpected first row %q", rows[0])
	}
	if strings.Contains(p.View(), scrollTrack) || strings.Contains(p.View(), scrollThumb) {
		t.Error("scrollbar should be hidden when content fits")
	}
}

func TestPanel_View_ShowsScrollbar(t *testing.T) {
	p := NewPanel(12, 3)
	p.SetLines(numbered(9))

	rows := strings.Split(p.View(), "\n")
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// 3*3/9 = 1 thumb cell at the top.
	if !strings.HasSuffix(rows[0], scrollThumb) {
		t.Errorf("expected thumb on first row, got %q", rows[0])
	}
	if !strings.HasSuffix(rows[2], scrollTrack) {
		t.Errorf("expected track on last row, got %q", rows[2])
	}
}

func TestPanel_ScrollTo(t *testing.T) {
	p := NewPanel(12, 3)
	p.SetLines(numbered(10))

	p.ScrollTo(5)
	if p.YOffset() != 3 {
		t.Errorf("expected offset 3, got %d", p.YOffset())
	}
	p.ScrollTo(4)
	if p.YOffset() != 3 {
		t.Errorf("visible line should not scroll, got %d", p.YOffset())
	}
	p.ScrollTo(1)
	if p.YOffset() != 1 {
		t.Errorf("expected offset 1, got %d", p.YOffset())
	}
	p.ScrollTo(42)
	if p.YOffset() != 1 {
		t.Errorf("out of range line should be ignored, got %d", p.YOffset())
	}
}

func TestPanel_SetLines_KeepsOffset(t *testing.T) {
	p := NewPanel(12, 3)
	p.SetLines(numbered(10))
	p.ScrollTo(6)

	p.SetLines(numbered(10))
	if p.YOffset() != 4 {
		t.Errorf("refresh should keep offset 4, got %d", p.YOffset())
	}

	p.SetLines(numbered(4))
	if p.YOffset() != 1 {
		t.Errorf("shrinking content should clamp offset to 1, got %d", p.YOffset())
	}
}

func TestPanel_Update_ScrollsOnKeys(t *testing.T) {
	p := NewPanel(12, 3)
	p.SetLines(numbered(10))

	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyDown})
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyDown})
	if p.YOffset() != 2 {
		t.Errorf("expected offset 2 after two downs, got %d", p.YOffset())
	}
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyUp})
	if p.YOffset() != 1 {
		t.Errorf("expected offset 1 after up, got %d", p.YOffset())
	}
}
