package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/pablasso/wiggum/internal/board"
	"github.com/pablasso/wiggum/internal/status"
	"github.com/pablasso/wiggum/internal/tui/components"
	"github.com/pablasso/wiggum/internal/tui/styles"
)

// AddStep is how many iterations the + key adds.
const AddStep = 10

const progressWidth = 24

type keyMap struct {
	Pause   key.Binding
	Add     key.Binding
	Refresh key.Binding
	Scroll  key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Pause:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
		Add:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", fmt.Sprintf("add %d iterations", AddStep))),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Scroll:  key.NewBinding(key.WithKeys("up", "down", "k", "j"), key.WithHelp("↑↓", "scroll")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Pause, k.Add, k.Refresh, k.Scroll, k.Quit}
}

// snapshotMsg carries a collected snapshot. Scheduled refreshes re-arm the
// tick; manual ones do not, so there is only ever one tick chain.
type snapshotMsg struct {
	snap      *status.Snapshot
	err       error
	scheduled bool
}

type tickMsg time.Time

// controlMsg reports the outcome of a control key.
type controlMsg struct {
	notice string
	err    error
}

// Model is the watch view.
type Model struct {
	ctx       context.Context
	collector *status.Collector
	interval  time.Duration
	keys      keyMap

	snap     *status.Snapshot
	err      error
	notice   string
	lastTask string

	width  int
	height int

	spinner   spinner.Model
	panel     components.Panel
	statusBar components.StatusBar
}

// New creates the watch model. Snapshots are refreshed every interval.
func New(ctx context.Context, collector *status.Collector, interval time.Duration) Model {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	return Model{
		ctx:       ctx,
		collector: collector,
		interval:  interval,
		keys:      defaultKeys(),
		spinner:   s,
		panel:     components.NewPanel(MinTerminalWidth, MinTerminalHeight),
		statusBar: components.NewStatusBar(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh(true))
}

func (m Model) refresh(scheduled bool) tea.Cmd {
	return func() tea.Msg {
		snap, err := m.collector.Collect(m.ctx)
		return snapshotMsg{snap: snap, err: err, scheduled: scheduled}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) togglePause() tea.Cmd {
	controls := m.collector.Controls()
	return func() tea.Msg {
		if controls.IsPaused(m.ctx) {
			if err := controls.Resume(m.ctx); err != nil {
				return controlMsg{err: err}
			}
			return controlMsg{notice: "Resumed"}
		}
		if err := controls.Pause(m.ctx); err != nil {
			return controlMsg{err: err}
		}
		return controlMsg{notice: "Paused after the current iteration"}
	}
}

func (m Model) addIterations() tea.Cmd {
	controls := m.collector.Controls()
	return func() tea.Msg {
		n, err := controls.AddIterations(m.ctx, AddStep)
		if err != nil {
			return controlMsg{err: err}
		}
		return controlMsg{notice: fmt.Sprintf("Max iterations now %d", n)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			return m, m.togglePause()
		case key.Matches(msg, m.keys.Add):
			return m, m.addIterations()
		case key.Matches(msg, m.keys.Refresh):
			return m, m.refresh(false)
		}
		var cmd tea.Cmd
		m.panel, cmd = m.panel.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.panel, cmd = m.panel.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tickMsg:
		return m, m.refresh(true)

	case snapshotMsg:
		var next tea.Cmd
		if msg.scheduled {
			next = m.tick()
		}
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
			m.layout()
		}
		return m, next

	case controlMsg:
		if msg.err != nil {
			m.notice = ""
			m.err = msg.err
			return m, nil
		}
		m.notice = msg.notice
		return m, m.refresh(false)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// layout sizes the panel to what the header and footer leave and refills it.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	used := lipgloss.Height(m.header()) + lipgloss.Height(m.footer())
	m.panel.SetSize(m.width, max(m.height-used, 1))

	lines, current := m.taskLines()
	m.panel.SetLines(lines)
	if id := m.currentTaskID(); id != m.lastTask {
		m.lastTask = id
		m.panel.ScrollTo(current)
	}
}

func (m Model) currentTaskID() string {
	if m.snap == nil || m.snap.CurrentTask == nil {
		return ""
	}
	return m.snap.CurrentTask.ID
}

// taskLines lists milestones and their tasks. current is the line index of
// the task the runner is on, or -1.
func (m Model) taskLines() (lines []string, current int) {
	current = -1
	if m.snap == nil {
		return nil, current
	}
	active := m.currentTaskID()
	for _, ms := range m.snap.Milestones {
		header := fmt.Sprintf("%s %s  %d/%d", ms.ID, ms.Name, ms.Done, ms.Total)
		header = styles.TitleStyle.Render(header)
		if ms.Blocked {
			header += styles.SubtleStyle.Render("  blocked by " + strings.Join(ms.BlockedBy, ", "))
		}
		lines = append(lines, header)

		for _, t := range ms.Tasks {
			line := fmt.Sprintf("  %s %s %s", styles.TaskIndicator(t.Status), t.ID, t.Title)
			if t.ID == active && t.Status == board.StatusTodo {
				line = styles.SelectedStyle.Render(fmt.Sprintf("  ▶ %s %s", t.ID, t.Title))
				current = len(lines)
			}
			if t.Note != "" {
				line += styles.SubtleStyle.Render("  " + t.Note)
			}
			lines = append(lines, line)
		}
	}
	return lines, current
}

func (m Model) header() string {
	if m.snap == nil {
		return styles.TitleStyle.Render("Wiggum") + "\n" + styles.SubtleStyle.Render("Loading status...") + "\n"
	}
	s := m.snap
	var b strings.Builder

	label := styles.Label(s.Label())
	if s.RunnerAlive && !s.Paused {
		label = m.spinner.View() + " " + label
	}
	b.WriteString(styles.TitleStyle.Render(s.ProjectName) + "  " + label + "\n")

	bar := components.NewProgress(s.Kanban.Done, s.Kanban.Failed, s.Kanban.Total, progressWidth).View()
	fmt.Fprintf(&b, "%s  %d/%d done, %d failed, %d todo\n", bar, s.Kanban.Done, s.Kanban.Total, s.Kanban.Failed, s.Kanban.Todo)

	budget := "?"
	if s.MaxIterations != nil {
		budget = fmt.Sprintf("%d", *s.MaxIterations)
	}
	stats := []string{fmt.Sprintf("Iterations %d/%s", s.IterationsUsed, budget)}
	if s.Velocity.AvgMinutes > 0 {
		stats = append(stats, fmt.Sprintf("Velocity %.1f min/task", s.Velocity.AvgMinutes))
	}
	if s.PredictedETA != nil {
		eta := fmt.Sprintf("ETA %s (%s)", s.PredictedETA.Format("15:04"), humanize.RelTime(*s.PredictedETA, s.Timestamp, "ago", "from now"))
		if s.DriftMinutes != nil {
			eta += fmt.Sprintf(" drift %+.0f min", *s.DriftMinutes)
		}
		stats = append(stats, eta)
	}
	b.WriteString(strings.Join(stats, "  •  ") + "\n")

	if ct := s.CurrentTask; ct != nil {
		elapsed := time.Duration(ct.DurationSeconds * float64(time.Second)).Round(time.Second)
		line := fmt.Sprintf("Current: %s attempt %d", ct.ID, max(ct.Attempt, 1))
		if ct.Level != "" {
			line += " on " + ct.Level
		}
		line += fmt.Sprintf(" for %s", elapsed)
		if ct.StallMultiplier >= 2 {
			line += styles.ErrorStyle.Render(fmt.Sprintf("  %.1fx average", ct.StallMultiplier))
		}
		b.WriteString(line + "\n")
	} else {
		b.WriteString(styles.SubtleStyle.Render("No task in progress") + "\n")
	}
	return b.String()
}

func (m Model) footer() string {
	var lines []string
	if m.snap != nil && len(m.snap.RunnerLog) > 0 {
		lines = append(lines, "")
		clip := lipgloss.NewStyle().MaxWidth(max(m.width, 1))
		for _, l := range m.snap.RunnerLog {
			lines = append(lines, clip.Render(styles.SubtleStyle.Render(l)))
		}
	}

	switch {
	case errors.Is(m.err, board.ErrNotFound):
		lines = append(lines, styles.ErrorStyle.Render("Kanban file not found"))
	case m.err != nil:
		lines = append(lines, styles.ErrorStyle.Render("Error: "+m.err.Error()))
	case m.notice != "":
		lines = append(lines, styles.SuccessStyle.Render(m.notice))
	default:
		lines = append(lines, "")
	}

	lines = append(lines, m.statusBar.Render(m.width, m.keys.help()))
	return strings.Join(lines, "\n")
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.width < MinTerminalWidth || m.height < MinTerminalHeight {
		return renderTerminalTooSmall(m.width, m.height)
	}
	return m.header() + m.panel.View() + "\n" + m.footer()
}
