package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pablasso/wiggum/internal/board"
	"github.com/pablasso/wiggum/internal/config"
)

func newInitCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create wiggum.yaml and a template kanban.json",
		Long:  "Writes the default configuration and a two-milestone sample board next to it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts.configPath, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func runInit(cmd *cobra.Command, configPath string, force bool) error {
	cfg := config.Default()
	kanbanPath := filepath.Join(filepath.Dir(configPath), cfg.Project.Kanban)

	if !force {
		for _, p := range []string{configPath, kanbanPath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s already exists. Use --force to overwrite", p)
			}
		}
	}

	out := cmd.OutOrStdout()
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	fmt.Fprintln(out, "Created", configPath)

	if err := board.NewManager(kanbanPath).Save(board.Template()); err != nil {
		return err
	}
	fmt.Fprintln(out, "Created", kanbanPath)

	fmt.Fprintln(out, "\nProject initialized! Edit the config and board to customize.")
	fmt.Fprintln(out, "Run 'wiggum run' to start the loop.")
	return nil
}
