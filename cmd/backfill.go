package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adsync/internal/model"
	"github.com/sells-group/adsync/internal/timeweek"
)

var (
	backfillSince string
	backfillUntil string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Pre-create empty weekly buckets for a historical range",
	Long:  "Creates an empty bucket for every known ad and every week in the range, so downstream time series have no gaps before the syncs fill them in.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("backfill"); err != nil {
			return err
		}
		ctx := cmd.Context()

		since, err := time.ParseInLocation("2006-01-02", backfillSince, time.UTC)
		if err != nil {
			return eris.Wrapf(err, "backfill: parse --since %q", backfillSince)
		}
		until := time.Now().UTC()
		if backfillUntil != "" {
			until, err = time.ParseInLocation("2006-01-02", backfillUntil, time.UTC)
			if err != nil {
				return eris.Wrapf(err, "backfill: parse --until %q", backfillUntil)
			}
		}

		weeks := timeweek.WeeksBetween(since, until)
		if len(weeks) == 0 {
			return eris.New("backfill: range contains no weeks")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		started := time.Now().UTC()
		var stats model.RunStats

		campaignIDs, err := st.ListCampaignIDs(ctx)
		if err != nil {
			return err
		}
		for _, campaignID := range campaignIDs {
			ads, err := st.ListAdsByCampaign(ctx, campaignID)
			if err != nil {
				stats.Errors++
				zap.L().Warn("backfill: list ads failed",
					zap.String("campaign_id", campaignID),
					zap.Error(err),
				)
				continue
			}
			for _, ad := range ads {
				for _, week := range weeks {
					stats.Processed++
					if err := st.EnsureBucket(ctx, ad.ID, week.ID, week.Start, week.End); err != nil {
						stats.Errors++
						zap.L().Warn("backfill: ensure bucket failed",
							zap.String("ad_id", ad.ID),
							zap.String("week_id", week.ID),
							zap.Error(err),
						)
						continue
					}
					stats.Succeeded++
				}
			}
		}

		summary := model.RunSummary{
			Kind:       model.RunBackfill,
			Stats:      stats,
			Message:    "weeks " + weeks[0].ID + " through " + weeks[len(weeks)-1].ID,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		}
		id, err := st.CreateRunSummary(ctx, summary)
		if err != nil {
			return eris.Wrap(err, "backfill: persist run summary")
		}
		summary.ID = id

		printSummary(&summary)
		return nil
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillSince, "since", "", "range start date (YYYY-MM-DD, required)")
	backfillCmd.Flags().StringVar(&backfillUntil, "until", "", "range end date (YYYY-MM-DD, defaults to today)")
	_ = backfillCmd.MarkFlagRequired("since")
	rootCmd.AddCommand(backfillCmd)
}
