// Package prompt renders the instructions handed to an agent for one task
// iteration.
package prompt

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pablasso/wiggum/internal/board"
)

// Options is the project context rendered into every prompt.
type Options struct {
	ProjectName     string
	KanbanPath      string
	CommitAfterTask bool
	CommitFormat    string
	TechStack       string
	Conventions     string
	ExtraContext    string
}

// Builder renders task prompts.
type Builder struct {
	opts Options
}

// NewBuilder returns a builder for the given project context.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

// CommitMessage expands {task_id} and {task_title} in the commit format.
func (b *Builder) CommitMessage(task *board.Task) string {
	return strings.NewReplacer(
		"{task_id}", task.ID,
		"{task_title}", task.Title,
	).Replace(b.opts.CommitFormat)
}

// Build renders the prompt for task. A blank hint is omitted.
func (b *Builder) Build(task *board.Task, hint string) string {
	kanban := filepath.Base(b.opts.KanbanPath)
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are an autonomous coding agent working on %s.\n\n", b.opts.ProjectName)

	sb.WriteString("## INSTRUCTIONS\n")
	fmt.Fprintf(&sb, "1. Read %s in the project root.\n", kanban)
	sb.WriteString("2. Find the first task with status 'todo' whose milestone is not blocked.\n")
	sb.WriteString("3. Implement the task. Write code, create files, install packages as needed.\n")
	sb.WriteString("4. Verify your work against the acceptance criteria.\n")
	fmt.Fprintf(&sb, "5. CRITICAL: Update %s: set the task's status to 'done' (or 'failed' with a note). ", kanban)
	sb.WriteString("This step is MANDATORY. If you skip it, the task will be re-run. ")
	sb.WriteString("Edit the JSON file directly to change \"status\": \"todo\" to \"status\": \"done\".\n")
	if b.opts.CommitAfterTask {
		fmt.Fprintf(&sb, "6. Git commit with message: '%s'\n", b.CommitMessage(task))
		sb.WriteString("7. EXIT. One task per iteration.\n")
	} else {
		sb.WriteString("6. EXIT. One task per iteration.\n")
	}

	sb.WriteString("\n## CURRENT TASK\n")
	fmt.Fprintf(&sb, "**ID**: %s\n", task.ID)
	fmt.Fprintf(&sb, "**Title**: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&sb, "**Description**: %s\n", task.Description)
	}
	if len(task.AcceptanceCriteria) > 0 {
		sb.WriteString("**Acceptance Criteria**:\n")
		for i, criterion := range task.AcceptanceCriteria {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, criterion)
		}
	}

	writeSection(&sb, "## TECH STACK", b.opts.TechStack)
	writeSection(&sb, "## CONVENTIONS", b.opts.Conventions)
	writeSection(&sb, "", b.opts.ExtraContext)
	writeSection(&sb, "## HUMAN HINT (read this carefully, it's from the project lead)", hint)

	return strings.TrimRight(sb.String(), "\n")
}

func writeSection(sb *strings.Builder, heading, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	sb.WriteString("\n")
	if heading != "" {
		sb.WriteString(heading)
		sb.WriteString("\n")
	}
	sb.WriteString(body)
	sb.WriteString("\n")
}
