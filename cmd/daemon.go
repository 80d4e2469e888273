package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adsync/internal/model"
	"github.com/sells-group/adsync/internal/rollup"
	"github.com/sells-group/adsync/internal/store"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run both syncs and the rollup sweep on cron schedules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("daemon"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		crmSync := initCRMSyncer(st)
		adSync := initProviderSyncer(st)
		agg := initAggregator(st)

		c := cron.New()

		if _, err := c.AddFunc(cfg.Daemon.CRMSchedule, func() {
			if summary, err := crmSync.Run(ctx); err != nil {
				zap.L().Error("scheduled crm sync failed", zap.Error(err))
			} else {
				zap.L().Info("scheduled crm sync complete",
					zap.String("run_id", summary.ID),
					zap.Int("processed", summary.Stats.Processed),
					zap.Int("errors", summary.Stats.Errors),
				)
			}
		}); err != nil {
			return eris.Wrap(err, "daemon: schedule crm sync")
		}

		if _, err := c.AddFunc(cfg.Daemon.AdsSchedule, func() {
			if summary, err := adSync.Run(ctx); err != nil {
				zap.L().Error("scheduled ad sync failed", zap.Error(err))
			} else {
				zap.L().Info("scheduled ad sync complete",
					zap.String("run_id", summary.ID),
					zap.Bool("rate_limited", summary.RateLimited),
				)
			}
		}); err != nil {
			return eris.Wrap(err, "daemon: schedule ad sync")
		}

		if _, err := c.AddFunc(cfg.Daemon.RollupSchedule, func() {
			runRollupSweep(ctx, st, agg)
		}); err != nil {
			return eris.Wrap(err, "daemon: schedule rollup sweep")
		}

		zap.L().Info("daemon started",
			zap.String("crm_schedule", cfg.Daemon.CRMSchedule),
			zap.String("ads_schedule", cfg.Daemon.AdsSchedule),
			zap.String("rollup_schedule", cfg.Daemon.RollupSchedule),
		)
		c.Start()

		<-ctx.Done()
		zap.L().Info("daemon stopping")

		// Let in-flight jobs finish.
		<-c.Stop().Done()
		return nil
	},
}

// runRollupSweep runs a full recompute and persists its summary, absorbing
// failures so one bad sweep never kills the daemon.
func runRollupSweep(ctx context.Context, st store.Store, agg *rollup.Aggregator) {
	started := time.Now().UTC()
	stats, err := agg.RecomputeAll(ctx)
	if err != nil {
		zap.L().Error("scheduled rollup sweep failed", zap.Error(err))
		return
	}
	if _, err := st.CreateRunSummary(ctx, model.RunSummary{
		Kind:       model.RunRollupSweep,
		Stats:      stats,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}); err != nil {
		zap.L().Error("rollup sweep summary write failed", zap.Error(err))
		return
	}
	zap.L().Info("scheduled rollup sweep complete",
		zap.Int("scopes", stats.Processed),
		zap.Int("errors", stats.Errors),
	)
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
