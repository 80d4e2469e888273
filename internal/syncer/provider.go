package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adsync/internal/model"
	"github.com/sells-group/adsync/internal/store"
	"github.com/sells-group/adsync/internal/timeweek"
	"github.com/sells-group/adsync/pkg/fbads"
)

// AdsClient is the subset of the provider API the ad sync uses.
type AdsClient interface {
	ListCampaigns(ctx context.Context) ([]fbads.Campaign, fbads.Usage, error)
	ListAds(ctx context.Context, campaignID string) ([]fbads.Ad, fbads.Usage, error)
	WeeklyInsights(ctx context.Context, adID string, since, until time.Time) ([]fbads.Insight, fbads.Usage, error)
}

// ProviderConfig controls one provider sync run.
type ProviderConfig struct {
	// Since and Until bound the insight fetch window.
	Since time.Time
	Until time.Time

	// WarnUsagePercent logs a warning once the provider's reported budget
	// usage reaches it. Default 80.
	WarnUsagePercent float64

	// HaltUsagePercent stops the traversal and checkpoints once reached.
	// Default 95.
	HaltUsagePercent float64
}

// ProviderSyncer drives one ad provider sync run: the campaign > ads >
// weekly-insights traversal with budget-aware halting and a resumable
// checkpoint advanced after every fully-processed (campaign, ad) pair.
type ProviderSyncer struct {
	client AdsClient
	store  store.Store
	cfg    ProviderConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewProviderSyncer wires a provider sync run driver.
func NewProviderSyncer(client AdsClient, st store.Store, cfg ProviderConfig) *ProviderSyncer {
	if cfg.WarnUsagePercent <= 0 {
		cfg.WarnUsagePercent = 80
	}
	if cfg.HaltUsagePercent <= 0 {
		cfg.HaltUsagePercent = 95
	}
	return &ProviderSyncer{
		client: client,
		store:  st,
		cfg:    cfg,
		log:    zap.L().Named("adsync"),
		now:    time.Now,
	}
}

// run tracks the mutable state of one traversal.
type run struct {
	stats     model.RunStats
	lastDone  *model.SyncCheckpoint // last fully-processed pair, nil until one completes
	totalAds  int
	campaigns int
}

// Run executes one provider sync. When the provider's usage budget crosses
// the halt threshold the traversal stops mid-flight with RateLimited set and
// a checkpoint pointing at the last completed pair; the next run resumes one
// ad past it. A clean completion deletes the checkpoint.
func (s *ProviderSyncer) Run(ctx context.Context) (*model.RunSummary, error) {
	started := s.now().UTC()

	cp, err := s.resumePoint(ctx)
	if err != nil {
		return nil, err
	}

	campaigns, usage, err := s.client.ListCampaigns(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "adsync: list campaigns")
	}

	startCampaign, startAd := 0, 0
	r := &run{campaigns: len(campaigns)}
	if cp != nil {
		startCampaign, startAd = cp.LastCampaignIndex, cp.LastAdIndex+1
		// Carry the cumulative ad count so a later checkpoint keeps
		// counting across resumed runs.
		r.totalAds = cp.TotalAdsProcessed
		r.lastDone = &model.SyncCheckpoint{
			LastCampaignIndex: startCampaign,
			LastAdIndex:       startAd - 1,
			TotalCampaigns:    len(campaigns),
			TotalAdsProcessed: r.totalAds,
		}
		if startCampaign >= len(campaigns) {
			// The campaign list shrank since the checkpoint was written.
			startCampaign, startAd = 0, 0
			r.lastDone = nil
			r.totalAds = 0
		}
	}

	if halted := s.checkUsage(ctx, usage, "list campaigns", r); halted {
		return s.finish(ctx, started, r, true, usage.Percent)
	}

	for i := startCampaign; i < len(campaigns); i++ {
		campaign := campaigns[i]
		ads, usage, err := s.client.ListAds(ctx, campaign.ID)
		if err != nil {
			r.stats.Errors++
			s.log.Warn("list ads failed",
				zap.String("campaign_id", campaign.ID),
				zap.Error(err),
			)
			continue
		}
		if halted := s.checkUsage(ctx, usage, fmt.Sprintf("list ads of campaign %s", campaign.ID), r); halted {
			return s.finish(ctx, started, r, true, usage.Percent)
		}

		j := 0
		if i == startCampaign {
			j = startAd
		}
		for ; j < len(ads); j++ {
			r.stats.Processed++
			usagePct, err := s.processAd(ctx, ads[j])
			if err != nil {
				r.stats.Errors++
				s.log.Warn("ad failed",
					zap.String("ad_id", ads[j].ID),
					zap.Error(err),
				)
				continue
			}

			// The pair is fully processed; advance the cursor before any
			// halt decision so a resume never repeats it.
			r.stats.Succeeded++
			r.totalAds++
			r.lastDone = &model.SyncCheckpoint{
				LastCampaignIndex: i,
				LastAdIndex:       j,
				TotalCampaigns:    len(campaigns),
				TotalAdsProcessed: r.totalAds,
			}
			if err := s.putCheckpoint(ctx, r, false, ""); err != nil {
				return nil, err
			}

			if usagePct >= s.cfg.HaltUsagePercent {
				s.log.Warn("halting on provider usage budget",
					zap.Float64("usage_percent", usagePct),
					zap.String("ad_id", ads[j].ID),
				)
				if err := s.putCheckpoint(ctx, r, true, fmt.Sprintf("usage %.0f%% after ad %s", usagePct, ads[j].ID)); err != nil {
					return nil, err
				}
				return s.finish(ctx, started, r, true, usagePct)
			}
			if usagePct >= s.cfg.WarnUsagePercent {
				s.log.Warn("provider usage budget high",
					zap.Float64("usage_percent", usagePct),
				)
			}
		}
	}

	// Clean completion: the cursor has nothing left to resume.
	if err := s.store.DeleteCheckpoint(ctx); err != nil {
		return nil, eris.Wrap(err, "adsync: delete checkpoint")
	}
	return s.finish(ctx, started, r, false, 0)
}

// resumePoint loads the stored checkpoint, nil when no run was interrupted.
// The traversal starts one ad past the pair it names.
func (s *ProviderSyncer) resumePoint(ctx context.Context) (*model.SyncCheckpoint, error) {
	cp, err := s.store.GetCheckpoint(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "adsync: load checkpoint")
	}
	if cp == nil {
		return nil, nil
	}
	s.log.Info("resuming from checkpoint",
		zap.Int("campaign_index", cp.LastCampaignIndex),
		zap.Int("ad_index", cp.LastAdIndex),
		zap.Int("total_ads_processed", cp.TotalAdsProcessed),
		zap.Bool("rate_limit_hit", cp.RateLimitHit),
		zap.Time("written_at", cp.Timestamp),
	)
	return cp, nil
}

// processAd upserts the ad (first sight only) and writes any insight weeks
// the store does not have yet. Returns the worst usage percentage the
// provider reported during the pair.
func (s *ProviderSyncer) processAd(ctx context.Context, pad fbads.Ad) (float64, error) {
	ad := model.Ad{
		ID:           pad.ID,
		Name:         pad.Name,
		AdSetID:      pad.AdSet.ID,
		AdSetName:    pad.AdSet.Name,
		CampaignID:   pad.Campaign.ID,
		CampaignName: pad.Campaign.Name,
	}
	created, err := s.store.EnsureAd(ctx, ad)
	if err != nil {
		return 0, eris.Wrapf(err, "adsync: ensure ad %s", pad.ID)
	}
	if created {
		s.log.Debug("discovered ad",
			zap.String("ad_id", pad.ID),
			zap.String("campaign_id", pad.Campaign.ID),
		)
	}

	rows, usage, err := s.client.WeeklyInsights(ctx, pad.ID, s.cfg.Since, s.cfg.Until)
	if err != nil {
		return usage.Percent, eris.Wrapf(err, "adsync: insights for ad %s", pad.ID)
	}

	for _, row := range rows {
		if err := s.recordInsight(ctx, pad.ID, row); err != nil {
			return usage.Percent, err
		}
	}
	return usage.Percent, nil
}

// recordInsight writes one weekly insight row unless the bucket already has
// provider facts. Historical weeks are fixed snapshots, so refetching a
// known week is pure waste and skipped.
func (s *ProviderSyncer) recordInsight(ctx context.Context, adID string, row fbads.Insight) error {
	day, err := time.ParseInLocation("2006-01-02", row.DateStart, time.UTC)
	if err != nil {
		return eris.Wrapf(err, "adsync: bad insight date %q for ad %s", row.DateStart, adID)
	}
	weekID := timeweek.WeekIDOf(day)
	weekStart, weekEnd := timeweek.WeekRangeOf(day)

	exists, err := s.store.HasInsight(ctx, adID, weekID)
	if err != nil {
		return eris.Wrapf(err, "adsync: check insight %s %s", adID, weekID)
	}
	if exists {
		return nil
	}

	ins := model.Insight{
		WeekID:      weekID,
		Spend:       row.Spend,
		Impressions: row.Impressions,
		Clicks:      row.Clicks,
		Reach:       row.Reach,
		CPM:         row.CPM,
		CPC:         row.CPC,
		CTR:         row.CTR,
	}
	if err := s.store.RecordInsight(ctx, adID, weekID, weekStart, weekEnd, ins); err != nil {
		return eris.Wrapf(err, "adsync: record insight %s %s", adID, weekID)
	}
	return nil
}

// checkUsage handles usage reported by calls that sit outside a (campaign,
// ad) pair. On halt it checkpoints the last completed pair if there is one.
func (s *ProviderSyncer) checkUsage(ctx context.Context, usage fbads.Usage, phase string, r *run) bool {
	if usage.Percent >= s.cfg.HaltUsagePercent {
		s.log.Warn("halting on provider usage budget",
			zap.Float64("usage_percent", usage.Percent),
			zap.String("phase", phase),
		)
		if err := s.putCheckpoint(ctx, r, true, fmt.Sprintf("usage %.0f%% during %s", usage.Percent, phase)); err != nil {
			s.log.Error("checkpoint write failed during halt", zap.Error(err))
		}
		return true
	}
	if usage.Percent >= s.cfg.WarnUsagePercent {
		s.log.Warn("provider usage budget high",
			zap.Float64("usage_percent", usage.Percent),
			zap.String("phase", phase),
		)
	}
	return false
}

// putCheckpoint persists the resume cursor at the last fully-processed pair.
// A run that halts before completing any pair leaves the stored checkpoint
// untouched so the existing resume point survives.
func (s *ProviderSyncer) putCheckpoint(ctx context.Context, r *run, rateLimited bool, message string) error {
	if r.lastDone == nil {
		return nil
	}
	cp := *r.lastDone
	cp.TotalCampaigns = r.campaigns
	cp.RateLimitHit = rateLimited
	cp.RateLimitMessage = message
	cp.Timestamp = s.now().UTC()
	if err := s.store.PutCheckpoint(ctx, cp); err != nil {
		return eris.Wrap(err, "adsync: write checkpoint")
	}
	return nil
}

// finish persists the run summary as the run's final action.
func (s *ProviderSyncer) finish(ctx context.Context, started time.Time, r *run, rateLimited bool, usagePct float64) (*model.RunSummary, error) {
	message := fmt.Sprintf("processed %d ads across %d campaigns", r.totalAds, r.campaigns)
	if rateLimited {
		message = fmt.Sprintf("halted at usage %.0f%% after %d ads", usagePct, r.totalAds)
	}
	summary := &model.RunSummary{
		Kind:        model.RunProviderSync,
		Stats:       r.stats,
		RateLimited: rateLimited,
		Message:     message,
		StartedAt:   started,
		FinishedAt:  s.now().UTC(),
	}
	id, err := s.store.CreateRunSummary(ctx, *summary)
	if err != nil {
		return nil, eris.Wrap(err, "adsync: persist run summary")
	}
	summary.ID = id
	return summary, nil
}
