// Package board implements the milestone/task board that the runner works through.
package board

// Status is the lifecycle state of a single task.
type Status string

// Task status constants
const (
	StatusTodo   Status = "todo"
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Valid reports whether s is one of the known task statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Task is an atomic unit of delegated work.
type Task struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Status             Status   `json:"status"`
	Note               string   `json:"note,omitempty"`
	Type               string   `json:"type,omitempty"`
}

// Milestone is an ordered group of tasks gated on other milestones.
type Milestone struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	BlockedBy []string `json:"blocked_by"`
	Tasks     []Task   `json:"tasks"`
}

// IsDone reports whether every task in the milestone is done.
// A milestone without tasks is always done.
func (m *Milestone) IsDone() bool {
	for i := range m.Tasks {
		if m.Tasks[i].Status != StatusDone {
			return false
		}
	}
	return true
}

// Board is the complete, ordered list of milestones.
type Board struct {
	Milestones []Milestone `json:"milestones"`
}

// Stats holds task counts for a board or a single milestone.
type Stats struct {
	Total  int `json:"total"`
	Todo   int `json:"todo"`
	Done   int `json:"done"`
	Failed int `json:"failed"`
}

func (s *Stats) add(t *Task) {
	s.Total++
	switch t.Status {
	case StatusTodo:
		s.Todo++
	case StatusDone:
		s.Done++
	case StatusFailed:
		s.Failed++
	}
}

// ProgressPercent returns the share of done tasks, 0 for an empty board.
func (s Stats) ProgressPercent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Done) / float64(s.Total) * 100
}

// doneMilestones returns the set of milestone IDs whose tasks are all done.
func (b *Board) doneMilestones() map[string]bool {
	done := make(map[string]bool, len(b.Milestones))
	for i := range b.Milestones {
		if b.Milestones[i].IsDone() {
			done[b.Milestones[i].ID] = true
		}
	}
	return done
}

// IsBlocked reports whether any of the milestone's blockers is not done.
// Unknown blocker IDs count as not done.
func (b *Board) IsBlocked(m *Milestone) bool {
	done := b.doneMilestones()
	return isBlocked(m, done)
}

func isBlocked(m *Milestone, done map[string]bool) bool {
	for _, blocker := range m.BlockedBy {
		if !done[blocker] {
			return true
		}
	}
	return false
}

// NextTask returns the first todo task of the first unblocked milestone that
// has one, scanning milestones in declaration order. Both results are nil when
// no task is actionable.
func (b *Board) NextTask() (*Milestone, *Task) {
	done := b.doneMilestones()
	for i := range b.Milestones {
		m := &b.Milestones[i]
		if isBlocked(m, done) {
			continue
		}
		for j := range m.Tasks {
			if m.Tasks[j].Status == StatusTodo {
				return m, &m.Tasks[j]
			}
		}
	}
	return nil, nil
}

// FindTask looks a task up by ID. Duplicate IDs are not rejected on load, so
// the last match in declaration order wins.
func (b *Board) FindTask(id string) (*Milestone, *Task) {
	var (
		foundM *Milestone
		foundT *Task
	)
	for i := range b.Milestones {
		m := &b.Milestones[i]
		for j := range m.Tasks {
			if m.Tasks[j].ID == id {
				foundM, foundT = m, &m.Tasks[j]
			}
		}
	}
	return foundM, foundT
}

// Stats counts tasks across the whole board.
func (b *Board) Stats() Stats {
	var s Stats
	for i := range b.Milestones {
		for j := range b.Milestones[i].Tasks {
			s.add(&b.Milestones[i].Tasks[j])
		}
	}
	return s
}

// MilestoneStats counts tasks of the first milestone with the given ID.
// An unknown ID yields zero counts.
func (b *Board) MilestoneStats(id string) Stats {
	var s Stats
	for i := range b.Milestones {
		if b.Milestones[i].ID != id {
			continue
		}
		for j := range b.Milestones[i].Tasks {
			s.add(&b.Milestones[i].Tasks[j])
		}
		break
	}
	return s
}
