package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/wiggum/internal/tui/styles"
)

const (
	scrollTrack = "│"
	scrollThumb = "█"
)

// Panel wraps bubbles/viewport with a 1-column scrollbar. Replacing the
// content keeps the scroll position so periodic refreshes do not jump.
type Panel struct {
	viewport viewport.Model
	lines    []string
	width    int // total width including scrollbar
	height   int
}

// NewPanel creates a panel. The width includes the scrollbar column.
func NewPanel(width, height int) Panel {
	vp := viewport.New(max(width-1, 0), height)
	vp.SetContent("")
	return Panel{viewport: vp, width: width, height: height}
}

// SetSize updates the panel dimensions.
func (p *Panel) SetSize(width, height int) {
	if p.width == width && p.height == height {
		return
	}
	p.width = width
	p.height = height
	p.viewport.Width = max(width-1, 0)
	p.viewport.Height = height
	p.viewport.SetContent(strings.Join(p.lines, "\n"))
	p.viewport.SetYOffset(p.viewport.YOffset)
}

// SetLines replaces the content, clamping the current offset.
func (p *Panel) SetLines(lines []string) {
	p.lines = append(p.lines[:0], lines...)
	p.viewport.SetContent(strings.Join(p.lines, "\n"))
	p.viewport.SetYOffset(p.viewport.YOffset)
}

// ScrollTo makes line visible, scrolling as little as possible.
func (p *Panel) ScrollTo(line int) {
	if line < 0 || line >= len(p.lines) {
		return
	}
	top := p.viewport.YOffset
	switch {
	case line < top:
		p.viewport.SetYOffset(line)
	case line >= top+p.height:
		p.viewport.SetYOffset(line - p.height + 1)
	}
}

// Update handles scroll keys and mouse wheel events.
func (p Panel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// YOffset returns the first visible line.
func (p Panel) YOffset() int {
	return p.viewport.YOffset
}

// View renders the visible lines with the scrollbar on the right.
func (p Panel) View() string {
	if p.height <= 0 {
		return ""
	}
	content := strings.Split(p.viewport.View(), "\n")
	bar := scrollbar(p.height, len(p.lines), p.viewport.YOffset)
	contentWidth := max(p.width-1, 0)

	out := make([]string, p.height)
	for i := range out {
		line := ""
		if i < len(content) {
			line = content[i]
		}
		if pad := contentWidth - lipgloss.Width(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		out[i] = line + bar[i]
	}
	return strings.Join(out, "\n")
}

// scrollbar returns one cell per row. It is a blank gutter until content
// overflows; then the thumb size and position follow the visible fraction.
func scrollbar(viewHeight, contentHeight, yOffset int) []string {
	cells := make([]string, viewHeight)
	if contentHeight <= viewHeight {
		for i := range cells {
			cells[i] = " "
		}
		return cells
	}

	thumbSize := max(viewHeight*viewHeight/contentHeight, 1)
	thumbMaxTop := viewHeight - thumbSize
	thumbTop := yOffset * thumbMaxTop / (contentHeight - viewHeight)
	thumbTop = clamp(thumbTop, 0, thumbMaxTop)

	for i := range cells {
		if i >= thumbTop && i < thumbTop+thumbSize {
			cells[i] = styles.SubtleStyle.Render(scrollThumb)
		} else {
			cells[i] = styles.SubtleStyle.Render(scrollTrack)
		}
	}
	return cells
}
