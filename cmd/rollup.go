package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adsync/internal/model"
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Roll-up aggregation",
}

var rollupSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Recompute every ad set and campaign rollup from leaf facts",
	Long:  "Full self-healing sweep. Rollups are fully regenerable, so this repairs any drift left by partial runs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("rollup"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		started := time.Now().UTC()
		stats, err := initAggregator(st).RecomputeAll(ctx)
		if err != nil {
			return err
		}

		summary := model.RunSummary{
			Kind:       model.RunRollupSweep,
			Stats:      stats,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		}
		id, err := st.CreateRunSummary(ctx, summary)
		if err != nil {
			return eris.Wrap(err, "rollup: persist run summary")
		}
		summary.ID = id

		zap.L().Info("rollup sweep complete",
			zap.Int("scopes", stats.Processed),
			zap.Int("errors", stats.Errors),
		)
		printSummary(&summary)
		return nil
	},
}

var rollupShowCmd = &cobra.Command{
	Use:   "show <level> <scope-id>",
	Short: "Show one rollup document (level is adset or campaign)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("rollup"); err != nil {
			return err
		}
		ctx := cmd.Context()

		level := model.RollupLevel(args[0])
		if level != model.RollupAdSet && level != model.RollupCampaign {
			return eris.Errorf("rollup: level must be adset or campaign, got %q", args[0])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		r, err := st.GetRollup(ctx, level, args[1])
		if err != nil {
			return err
		}
		if r == nil {
			return eris.Errorf("rollup: no %s rollup for %s", level, args[1])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	},
}

func init() {
	rollupCmd.AddCommand(rollupSweepCmd)
	rollupCmd.AddCommand(rollupShowCmd)
	rootCmd.AddCommand(rollupCmd)
}
