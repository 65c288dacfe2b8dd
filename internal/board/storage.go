package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNotFound is returned by Load when the board file does not exist.
var ErrNotFound = errors.New("board file not found")

// ValidationError reports board content that does not match the schema.
type ValidationError struct {
	Path   string // location inside the document, e.g. milestones[0].tasks[2]
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid board file: %s", e.Reason)
	}
	return fmt.Sprintf("invalid board file: %s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Manager loads, queries and persists a board file.
type Manager struct {
	path  string
	board *Board
}

// NewManager creates a manager for the board file at path. Nothing is read
// until Load (or a query that needs the board) is called.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the board file location.
func (m *Manager) Path() string {
	return m.path
}

// Load reads and validates the board file, replacing any board held in memory.
func (m *Manager) Load() (*Board, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, m.path)
		}
		return nil, fmt.Errorf("failed to read board file: %w", err)
	}

	b, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m.board = b
	return b, nil
}

// Board returns the in-memory board, loading it on first use.
func (m *Manager) Board() (*Board, error) {
	if m.board != nil {
		return m.board, nil
	}
	return m.Load()
}

// Save atomically writes b to the board file. A nil b saves the board held
// in memory.
func (m *Manager) Save(b *Board) error {
	if b == nil {
		b = m.board
	}
	if b == nil {
		return errors.New("no board to save")
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", m.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	m.board = b
	return nil
}

// FindNextTask returns the next actionable milestone and task, or nils when
// the board is exhausted.
func (m *Manager) FindNextTask() (*Milestone, *Task, error) {
	b, err := m.Board()
	if err != nil {
		return nil, nil, err
	}
	ms, t := b.NextTask()
	return ms, t, nil
}

// GetTask returns the task with the given ID, or nil.
func (m *Manager) GetTask(id string) (*Task, error) {
	b, err := m.Board()
	if err != nil {
		return nil, err
	}
	_, t := b.FindTask(id)
	return t, nil
}

// UpdateTaskStatus sets a task's status (and note, when non-nil) and persists
// the board immediately. It reports whether the task was found.
func (m *Manager) UpdateTaskStatus(id string, status Status, note *string) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("invalid task status %q", status)
	}
	b, err := m.Board()
	if err != nil {
		return false, err
	}

	_, t := b.FindTask(id)
	if t == nil {
		return false, nil
	}
	t.Status = status
	if note != nil {
		t.Note = *note
	}
	if err := m.Save(b); err != nil {
		return true, err
	}
	return true, nil
}

// Stats returns task counts for the whole board.
func (m *Manager) Stats() (Stats, error) {
	b, err := m.Board()
	if err != nil {
		return Stats{}, err
	}
	return b.Stats(), nil
}

// MilestoneStats returns task counts for one milestone.
func (m *Manager) MilestoneStats(id string) (Stats, error) {
	b, err := m.Board()
	if err != nil {
		return Stats{}, err
	}
	return b.MilestoneStats(id), nil
}

// rawTask mirrors Task with pointer fields so missing required keys can be told
// apart from empty values.
type rawTask struct {
	ID                 *string  `json:"id"`
	Title              *string  `json:"title"`
	Description        *string  `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Status             *Status  `json:"status"`
	Note               *string  `json:"note"`
	Type               *string  `json:"type"`
}

type rawMilestone struct {
	ID        *string   `json:"id"`
	Name      *string   `json:"name"`
	BlockedBy []string  `json:"blocked_by"`
	Tasks     []rawTask `json:"tasks"`
}

type rawBoard struct {
	Milestones []rawMilestone `json:"milestones"`
}

// Parse decodes and validates board content. Unknown keys are ignored;
// duplicate task IDs are not checked.
func Parse(data []byte) (*Board, error) {
	var raw rawBoard
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ValidationError{
				Path:   typeErr.Field,
				Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
				Err:    err,
			}
		}
		return nil, &ValidationError{Reason: err.Error(), Err: err}
	}

	b := &Board{Milestones: make([]Milestone, 0, len(raw.Milestones))}
	for i, rm := range raw.Milestones {
		path := fmt.Sprintf("milestones[%d]", i)
		if rm.ID == nil {
			return nil, missingField(path, "id")
		}
		if rm.Name == nil {
			return nil, missingField(path, "name")
		}

		ms := Milestone{
			ID:        *rm.ID,
			Name:      *rm.Name,
			BlockedBy: rm.BlockedBy,
			Tasks:     make([]Task, 0, len(rm.Tasks)),
		}
		if ms.BlockedBy == nil {
			ms.BlockedBy = []string{}
		}

		for j, rt := range rm.Tasks {
			taskPath := fmt.Sprintf("%s.tasks[%d]", path, j)
			t, err := rt.toTask(taskPath)
			if err != nil {
				return nil, err
			}
			ms.Tasks = append(ms.Tasks, t)
		}
		b.Milestones = append(b.Milestones, ms)
	}
	return b, nil
}

func (rt rawTask) toTask(path string) (Task, error) {
	switch {
	case rt.ID == nil:
		return Task{}, missingField(path, "id")
	case rt.Title == nil:
		return Task{}, missingField(path, "title")
	case rt.Description == nil:
		return Task{}, missingField(path, "description")
	}

	t := Task{
		ID:                 *rt.ID,
		Title:              *rt.Title,
		Description:        *rt.Description,
		AcceptanceCriteria: rt.AcceptanceCriteria,
		Status:             StatusTodo,
	}
	if t.AcceptanceCriteria == nil {
		t.AcceptanceCriteria = []string{}
	}
	if rt.Status != nil {
		if !rt.Status.Valid() {
			return Task{}, &ValidationError{
				Path:   path,
				Reason: fmt.Sprintf("status must be one of todo, done, failed (got %q)", *rt.Status),
			}
		}
		t.Status = *rt.Status
	}
	if rt.Note != nil {
		t.Note = *rt.Note
	}
	if rt.Type != nil {
		t.Type = *rt.Type
	}
	return t, nil
}

func missingField(path, field string) error {
	return &ValidationError{Path: path, Reason: fmt.Sprintf("missing required field %q", field)}
}
