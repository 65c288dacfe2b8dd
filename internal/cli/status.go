package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pablasso/wiggum/internal/status"
	"github.com/pablasso/wiggum/internal/tui"
	"github.com/pablasso/wiggum/internal/tui/components"
	"github.com/pablasso/wiggum/internal/tui/styles"
)

// openCollector loads the config, checks the board and opens the controls
// behind a status collector.
func openCollector(cmd *cobra.Command, opts *options) (*status.Collector, func() error, error) {
	cfg, err := requireConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := checkBoard(cfg); err != nil {
		return nil, nil, err
	}
	controls, closeControls, err := openControls(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return status.NewCollector(cfg, controls), closeControls, nil
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			collector, closeControls, err := openCollector(cmd, opts)
			if err != nil {
				return err
			}
			defer closeControls()

			snap, err := collector.WithoutGit().Collect(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func printStatus(w io.Writer, s *status.Snapshot) {
	fmt.Fprintln(w, styles.TitleStyle.Render("Project: "+s.ProjectName))
	fmt.Fprintf(w, "Status: %s\n", styles.Label(s.Label()))
	fmt.Fprintf(w, "Paused: %t\n", s.Paused)
	if s.MaxIterations != nil {
		fmt.Fprintf(w, "Max iterations: %d\n", *s.MaxIterations)
	} else {
		fmt.Fprintln(w, "Max iterations: not set")
	}
	fmt.Fprintf(w, "Iterations used: %d\n", s.IterationsUsed)

	k := s.Kanban
	fmt.Fprintln(w, "\nKanban status:")
	fmt.Fprintf(w, "  Total: %d\n", k.Total)
	fmt.Fprintf(w, "  Todo: %d\n", k.Todo)
	fmt.Fprintf(w, "  Done: %d\n", k.Done)
	fmt.Fprintf(w, "  Failed: %d\n", k.Failed)
	fmt.Fprintf(w, "  Progress: %.1f%%\n", k.ProgressPercent)
	if bar := components.NewProgress(k.Done, k.Failed, k.Total, 30).View(); bar != "" {
		fmt.Fprintf(w, "  %s\n", bar)
	}

	if s.Velocity.AvgMinutes > 0 {
		fmt.Fprintf(w, "\nVelocity: %.1f min/task (recent %.1f)\n", s.Velocity.AvgMinutes, s.Velocity.RecentMinutes)
	}
	if s.PredictedETA != nil {
		fmt.Fprintf(w, "ETA: %s (%s)\n", s.PredictedETA.Format("2006-01-02 15:04"),
			humanize.RelTime(*s.PredictedETA, s.Timestamp, "ago", "from now"))
	}
	if s.DriftMinutes != nil {
		fmt.Fprintf(w, "Drift: %+.0f min against baseline\n", *s.DriftMinutes)
	}
	if ct := s.CurrentTask; ct != nil {
		elapsed := time.Duration(ct.DurationSeconds * float64(time.Second)).Round(time.Second)
		fmt.Fprintf(w, "Current task: %s (attempt %d) for %s\n", ct.ID, max(ct.Attempt, 1), elapsed)
	}
}

func newBlobCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "blob",
		Short: "Print a compact status to paste into a chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			collector, closeControls, err := openCollector(cmd, opts)
			if err != nil {
				return err
			}
			defer closeControls()

			blob, err := collector.Blob(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), blob)
			return nil
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live status view with pause and budget controls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(opts.configPath)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			controls, closeControls, err := openControls(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeControls()

			// A missing board is shown inside the view, so it is not checked here.
			return tui.Run(ctx, status.NewCollector(cfg, controls), cfg.RefreshInterval())
		},
	}
}
