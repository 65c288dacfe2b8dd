// Package cli implements the wiggum command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/pablasso/wiggum/internal/version"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "wiggum",
		Short: "Unattended agent loop over a kanban board",
		Long: `Wiggum hands the next eligible kanban task to a coding agent, checks that
the agent recorded a result on the board, and repeats until the board is done
or the iteration budget runs out. Pause, hints and budget changes take effect
between iterations.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", DefaultConfigFile, "Path to the config file")

	cmd.AddCommand(
		newInitCmd(opts),
		newRunCmd(opts),
		newDashCmd(opts),
		newStatusCmd(opts),
		newBlobCmd(opts),
		newWatchCmd(opts),
		newPauseCmd(opts),
		newResumeCmd(opts),
		newHintCmd(opts),
		newAddIterationsCmd(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
