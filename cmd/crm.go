package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adsync/internal/model"
)

var crmCmd = &cobra.Command{
	Use:   "crm",
	Short: "CRM opportunity sync",
}

var crmSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync CRM opportunities into weekly funnel buckets",
	Long:  "Fetches every opportunity in the configured pipelines, resolves each to an ad, and applies lead and stage counters with at-most-once semantics.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("crm"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summary, err := initCRMSyncer(st).Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("crm sync complete",
			zap.String("run_id", summary.ID),
			zap.Int("processed", summary.Stats.Processed),
			zap.Int("succeeded", summary.Stats.Succeeded),
			zap.Int("skipped", summary.Stats.Skipped),
			zap.Int("errors", summary.Stats.Errors),
		)
		printSummary(summary)
		return nil
	},
}

func printSummary(s *model.RunSummary) {
	fmt.Fprintf(os.Stdout, "%s run %s: processed=%d succeeded=%d skipped=%d errors=%d",
		s.Kind, truncateID(s.ID), s.Stats.Processed, s.Stats.Succeeded, s.Stats.Skipped, s.Stats.Errors)
	if s.RateLimited {
		fmt.Fprint(os.Stdout, " (rate limited)")
	}
	fmt.Fprintln(os.Stdout)
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	crmCmd.AddCommand(crmSyncCmd)
	rootCmd.AddCommand(crmCmd)
}
