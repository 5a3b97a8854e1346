package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/welldanyogia/webrana-cms-backend/internal/database"
)

func newSweepCommand(rt *runtime) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention sweep and exit",
		Long: `Run one retention sweep: expire unclaimed temporary uploads, recover
attachments stuck mid-move and remove orphaned files from the temp tree.
Suitable for cron when the in-process scheduler is disabled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate {
				if err := database.Migrate(a.db); err != nil {
					return err
				}
			}

			report, err := a.scheduler.RunOnce(ctx)
			rt.logger.Info("retention sweep finished",
				slog.Int("expired", report.Expired),
				slog.Int("skipped", report.Skipped),
				slog.Int("failed", report.Failed),
				slog.Int("recovered", report.Recovered),
				slog.Int("orphans_removed", report.OrphansRemoved),
				slog.Int("orphans_failed", report.OrphansFailed),
				slog.Duration("duration", report.Duration))
			return err
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run database migrations before sweeping")
	return cmd
}
