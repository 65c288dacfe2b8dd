package board

// Template returns the starter board written by `wiggum init`.
func Template() *Board {
	return &Board{
		Milestones: []Milestone{
			{
				ID:        "M1",
				Name:      "Project Setup",
				BlockedBy: []string{},
				Tasks: []Task{
					{
						ID:          "M1.1",
						Title:       "Initialize project structure",
						Description: "Create basic project files and folders",
						AcceptanceCriteria: []string{
							"Project directory exists",
							"Basic files created",
						},
						Status: StatusTodo,
					},
					{
						ID:          "M1.2",
						Title:       "Set up development environment",
						Description: "Install dependencies and configure tools",
						AcceptanceCriteria: []string{
							"Dependencies installed",
							"Development server runs",
						},
						Status: StatusTodo,
					},
				},
			},
			{
				ID:        "M2",
				Name:      "Core Implementation",
				BlockedBy: []string{"M1"},
				Tasks: []Task{
					{
						ID:                 "M2.1",
						Title:              "Implement core feature",
						Description:        "Build the main functionality",
						AcceptanceCriteria: []string{"Feature works as expected", "Tests pass"},
						Status:             StatusTodo,
					},
				},
			},
		},
	}
}
