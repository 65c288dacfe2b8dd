package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pablasso/wiggum/internal/config"
	"github.com/pablasso/wiggum/internal/dashboard"
	"github.com/pablasso/wiggum/internal/runner"
	"github.com/pablasso/wiggum/internal/status"
)

func newDashCmd(opts *options) *cobra.Command {
	var overrides config.Overrides
	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Serve the dashboard",
		Long:  "Serves the status page, the JSON API and the live status websocket until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig(opts.configPath)
			if err != nil {
				return err
			}
			if err := cfg.ApplyOverrides(overrides); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// The runner owns the log file; the dashboard only logs to stderr.
			logger, closeLog, err := runner.NewLogger(cfg.Log.Level, "")
			if err != nil {
				return err
			}
			defer closeLog()

			controls, closeControls, err := openControls(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeControls()

			fmt.Fprintf(cmd.OutOrStdout(), "Starting dashboard on %s\n", cfg.Dashboard.Addr())
			srv := dashboard.New(status.NewCollector(cfg, controls), logger, cfg.RefreshInterval())
			return srv.Run(ctx, cfg.Dashboard.Addr())
		},
	}
	cmd.Flags().IntVar(&overrides.Port, "port", 0, "Override the dashboard port")
	cmd.Flags().StringVar(&overrides.Host, "host", "", "Override the dashboard host")
	return cmd
}
