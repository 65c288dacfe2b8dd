package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pablasso/wiggum/internal/config"
	"github.com/pablasso/wiggum/internal/dashboard"
	"github.com/pablasso/wiggum/internal/runner"
	"github.com/pablasso/wiggum/internal/status"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		overrides config.Overrides
		dash      bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the runner loop",
		Long: `Runs iterations until every eligible task has a result, the iteration budget
is used up, or the process is interrupted. With --dash the dashboard is served
for as long as the loop runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd, opts.configPath, overrides, dash)
		},
	}
	cmd.Flags().IntVar(&overrides.MaxIterations, "max-iterations", 0, "Override the default iteration budget")
	cmd.Flags().StringVar(&overrides.Agent, "agent", "", "Override the agent backend (opencode, claude_code, api, human)")
	cmd.Flags().StringVar(&overrides.Model, "model", "", "Override the agent model")
	cmd.Flags().BoolVar(&dash, "dash", false, "Also serve the dashboard")
	return cmd
}

func runLoop(cmd *cobra.Command, configPath string, overrides config.Overrides, dash bool) error {
	cfg, err := requireConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyOverrides(overrides); err != nil {
		return err
	}
	if err := checkBoard(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		// The running agent finishes its iteration; a second signal gets the default behavior.
		<-ctx.Done()
		cancel()
	}()

	if cfg.Runner.CommitAfterTask {
		if err := checkGitRepo(ctx, cfg.WorkDir()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n\n", err)
		}
	}

	logger, closeLog, err := runner.NewLogger(cfg.Log.Level, cfg.LogPath())
	if err != nil {
		return err
	}
	defer closeLog()

	controls, closeControls, err := openControls(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeControls()

	r := runner.New(cfg, controls).WithLogger(logger)

	g, gctx := errgroup.WithContext(ctx)
	dashCtx, stopDash := context.WithCancel(gctx)
	defer stopDash()

	var summary *runner.Summary
	g.Go(func() error {
		defer stopDash()
		s, err := r.Run(gctx)
		summary = s
		return err
	})
	if dash {
		srv := dashboard.New(status.NewCollector(cfg, controls), logger, cfg.RefreshInterval())
		g.Go(func() error {
			return srv.Run(dashCtx, cfg.Dashboard.Addr())
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s finished after %d iterations: %d tasks resolved (%s)\n",
		summary.RunID, summary.Iterations, summary.Resolved, summary.Reason)
	return nil
}
