package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var adsCmd = &cobra.Command{
	Use:   "ads",
	Short: "Ad provider sync",
}

var adsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync ads and weekly delivery metrics from the provider",
	Long:  "Walks every campaign and ad, upserting first-seen ads and writing weekly insight snapshots. Resumes from the stored checkpoint and halts before the provider's rate budget is exhausted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("ads"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summary, err := initProviderSyncer(st).Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("ad sync complete",
			zap.String("run_id", summary.ID),
			zap.Bool("rate_limited", summary.RateLimited),
			zap.Int("processed", summary.Stats.Processed),
			zap.Int("errors", summary.Stats.Errors),
		)
		printSummary(summary)
		return nil
	},
}

var adsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current sync checkpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("runs"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cp, err := st.GetCheckpoint(ctx)
		if err != nil {
			return err
		}
		if cp == nil {
			fmt.Fprintln(os.Stderr, "No checkpoint: the last sync completed cleanly.")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cp)
	},
}

func init() {
	adsCmd.AddCommand(adsSyncCmd)
	adsCmd.AddCommand(adsStatusCmd)
	rootCmd.AddCommand(adsCmd)
}
