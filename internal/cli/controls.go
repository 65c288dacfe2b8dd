package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pablasso/wiggum/internal/control"
)

// withControls loads the config and runs fn against the control store.
func withControls(cmd *cobra.Command, opts *options, fn func(ctx context.Context, c *control.Controls) error) error {
	cfg, err := requireConfig(opts.configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	controls, closeControls, err := openControls(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeControls()
	return fn(ctx, controls)
}

func newPauseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the runner before its next iteration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withControls(cmd, opts, func(ctx context.Context, c *control.Controls) error {
				if err := c.Pause(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Runner paused")
				return nil
			})
		},
	}
}

func newResumeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused runner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withControls(cmd, opts, func(ctx context.Context, c *control.Controls) error {
				if err := c.Resume(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Runner resumed")
				return nil
			})
		},
	}
}

func newHintCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "hint <text>",
		Short: "Leave a hint for the next iteration's prompt",
		Long:  "The hint is included in the next prompt only and then archived.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("hint text is empty")
			}
			return withControls(cmd, opts, func(ctx context.Context, c *control.Controls) error {
				if err := c.SetHint(ctx, text); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Hint sent to runner")
				return nil
			})
		},
	}
}

func newAddIterationsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add-iterations <n>",
		Short: "Increase the iteration budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("n must be an integer, got %q", args[0])
			}
			return withControls(cmd, opts, func(ctx context.Context, c *control.Controls) error {
				newMax, err := c.AddIterations(ctx, n)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Max iterations increased to %d\n", newMax)
				return nil
			})
		},
	}
}
