package prompt

import (
	"strings"
	"testing"

	"github.com/pablasso/wiggum/internal/board"
)

func testTask() *board.Task {
	return &board.Task{
		ID:                 "M1.2",
		Title:              "Set up development environment",
		Description:        "Install dependencies and configure tools",
		AcceptanceCriteria: []string{"Dependencies installed", "Development server runs"},
		Status:             board.StatusTodo,
	}
}

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(Options{
		ProjectName:     "Springfield",
		KanbanPath:      "/work/app/kanban.json",
		CommitAfterTask: true,
		CommitFormat:    "{task_id}: {task_title}",
		TechStack:       "  Go 1.25, cobra  ",
	})

	got := b.Build(testTask(), "")

	wantParts := []string{
		"You are an autonomous coding agent working on Springfield.",
		"1. Read kanban.json in the project root.",
		"5. CRITICAL: Update kanban.json",
		"6. Git commit with message: 'M1.2: Set up development environment'",
		"7. EXIT. One task per iteration.",
		"**ID**: M1.2",
		"1. Dependencies installed",
		"2. Development server runs",
		"## TECH STACK\nGo 1.25, cobra",
	}
	for _, part := range wantParts {
		if !strings.Contains(got, part) {
			t.Errorf("prompt missing %q\n---\n%s", part, got)
		}
	}

	for _, absent := range []string{"## CONVENTIONS", "HUMAN HINT", "/work/app"} {
		if strings.Contains(got, absent) {
			t.Errorf("prompt should not contain %q", absent)
		}
	}
}

func TestBuilder_NoCommit(t *testing.T) {
	b := NewBuilder(Options{ProjectName: "p", KanbanPath: "kanban.json", CommitAfterTask: false})
	got := b.Build(testTask(), "")
	if strings.Contains(got, "Git commit") {
		t.Error("expected no commit step")
	}
	if !strings.Contains(got, "6. EXIT. One task per iteration.") {
		t.Error("expected exit as step 6")
	}
}

func TestBuilder_Hint(t *testing.T) {
	b := NewBuilder(Options{ProjectName: "p", KanbanPath: "kanban.json", ExtraContext: "Monorepo; run make test."})

	got := b.Build(testTask(), "  use the existing HTTP client \n")
	if !strings.Contains(got, "## HUMAN HINT (read this carefully, it's from the project lead)\nuse the existing HTTP client") {
		t.Errorf("hint section missing:\n%s", got)
	}
	if !strings.HasSuffix(got, "use the existing HTTP client") {
		t.Error("expected hint to be the last section")
	}
	if !strings.Contains(got, "\nMonorepo; run make test.\n") {
		t.Error("expected extra context without heading")
	}

	if blank := b.Build(testTask(), "   "); strings.Contains(blank, "HUMAN HINT") {
		t.Error("blank hint should be omitted")
	}
}

func TestBuilder_CommitMessage(t *testing.T) {
	b := NewBuilder(Options{CommitFormat: "feat({task_id}): {task_title} [{task_id}]"})
	if got := b.CommitMessage(testTask()); got != "feat(M1.2): Set up development environment [M1.2]" {
		t.Errorf("CommitMessage() = %q", got)
	}
}
