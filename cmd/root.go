package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "adsync",
	Short: "Ad spend and CRM funnel aggregation pipeline",
	Long:  "Syncs ad delivery metrics and CRM opportunities into weekly per-ad buckets, resolves opportunities to ads, and maintains campaign and ad set rollups.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
