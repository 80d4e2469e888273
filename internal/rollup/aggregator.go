// Package rollup recomputes the materialized ad-set and campaign documents
// from leaf facts. Recomputation is a full, idempotent merge-replace, run
// both reactively after leaf mutations and as a periodic self-healing sweep.
package rollup

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adsync/internal/model"
)

// Source is the subset of the store the aggregator reads and writes.
// Derived documents are regenerated wholesale from ads and buckets and are
// never read back into leaf-fact computation, which breaks any dependency
// cycle by construction.
type Source interface {
	ListAdsByCampaign(ctx context.Context, campaignID string) ([]model.Ad, error)
	ListAdsByAdSet(ctx context.Context, adSetID string) ([]model.Ad, error)
	ListCampaignIDs(ctx context.Context) ([]string, error)
	ListAdSetIDs(ctx context.Context) ([]string, error)
	ListBucketsByAd(ctx context.Context, adID string) ([]model.WeeklyBucket, error)
	PutRollup(ctx context.Context, r model.Rollup) error
	AppendRollupSnapshot(ctx context.Context, r model.Rollup) error
}

// Config controls aggregation behavior.
type Config struct {
	// KeepHistory additionally appends a timestamped snapshot row on each
	// recompute. Injected explicitly rather than read from the environment
	// inside business logic.
	KeepHistory bool
}

// Aggregator materializes ad-set and campaign roll-ups.
type Aggregator struct {
	src Source
	cfg Config
	log *zap.Logger
	now func() time.Time
}

// New creates an Aggregator over the given source.
func New(src Source, cfg Config) *Aggregator {
	return &Aggregator{
		src: src,
		cfg: cfg,
		log: zap.L().Named("rollup"),
		now: time.Now,
	}
}

// Recompute rebuilds the roll-up for one scope. Scopes with zero child ads
// skip the write entirely: a zeroed document would visually mask data loss.
func (a *Aggregator) Recompute(ctx context.Context, scopeID string, level model.RollupLevel) error {
	if scopeID == "" {
		return eris.New("rollup: scope id is required")
	}

	var (
		ads []model.Ad
		err error
	)
	switch level {
	case model.RollupAdSet:
		ads, err = a.src.ListAdsByAdSet(ctx, scopeID)
	case model.RollupCampaign:
		ads, err = a.src.ListAdsByCampaign(ctx, scopeID)
	default:
		return eris.Errorf("rollup: unknown level %q", level)
	}
	if err != nil {
		return eris.Wrapf(err, "rollup: list ads for %s %s", level, scopeID)
	}
	if len(ads) == 0 {
		a.log.Debug("no child ads, skipping rollup",
			zap.String("level", string(level)), zap.String("scope_id", scopeID))
		return nil
	}

	r := model.Rollup{
		ScopeID: scopeID,
		Level:   level,
		AdCount: len(ads),
	}
	scopeName := func(ad model.Ad) string {
		if level == model.RollupAdSet {
			return ad.AdSetName
		}
		return ad.CampaignName
	}

	weeks := map[string]bool{}
	for _, ad := range ads {
		if r.Name == "" {
			r.Name = scopeName(ad)
		}

		buckets, err := a.src.ListBucketsByAd(ctx, ad.ID)
		if err != nil {
			return eris.Wrapf(err, "rollup: list buckets for ad %s", ad.ID)
		}
		for _, b := range buckets {
			weeks[b.WeekID] = true
			if r.FirstWeekID == "" || b.WeekID < r.FirstWeekID {
				r.FirstWeekID = b.WeekID
			}
			if b.WeekID > r.LastWeekID {
				r.LastWeekID = b.WeekID
			}

			r.Spend += b.Spend
			r.Impressions += b.Impressions
			r.Clicks += b.Clicks
			r.Reach += b.Reach
			r.Leads += b.Leads
			r.Bookings += b.Bookings
			r.Calls += b.Calls
			r.Deposits += b.Deposits
			r.CashCollected += b.CashCollected
			r.CashAmount += b.CashAmount
		}
	}
	r.WeekCount = len(weeks)

	derive(&r)
	r.UpdatedAt = a.now().UTC()

	if err := a.src.PutRollup(ctx, r); err != nil {
		return eris.Wrapf(err, "rollup: put %s %s", level, scopeID)
	}
	if a.cfg.KeepHistory {
		if err := a.src.AppendRollupSnapshot(ctx, r); err != nil {
			return eris.Wrapf(err, "rollup: snapshot %s %s", level, scopeID)
		}
	}
	return nil
}

// RecomputeAll sweeps every known ad set and campaign. Per-scope failures
// are counted and logged, never escalated: one bad scope must not halt the
// self-healing pass.
func (a *Aggregator) RecomputeAll(ctx context.Context) (model.RunStats, error) {
	var stats model.RunStats

	adSets, err := a.src.ListAdSetIDs(ctx)
	if err != nil {
		return stats, eris.Wrap(err, "rollup: list ad sets")
	}
	campaigns, err := a.src.ListCampaignIDs(ctx)
	if err != nil {
		return stats, eris.Wrap(err, "rollup: list campaigns")
	}

	sweep := func(id string, level model.RollupLevel) {
		stats.Processed++
		if err := a.Recompute(ctx, id, level); err != nil {
			stats.Errors++
			a.log.Warn("rollup recompute failed",
				zap.String("level", string(level)),
				zap.String("scope_id", id),
				zap.Error(err))
			return
		}
		stats.Succeeded++
	}

	for _, id := range adSets {
		sweep(id, model.RollupAdSet)
	}
	for _, id := range campaigns {
		sweep(id, model.RollupCampaign)
	}

	a.log.Info("rollup sweep complete",
		zap.Int("processed", stats.Processed),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

// derive fills the ratio fields from totals. Averages come from summed
// totals rather than averaging per-ad averages, which would skew scopes
// with uneven delivery volume.
func derive(r *model.Rollup) {
	r.Profit = r.CashAmount - r.Spend

	r.CPL = safeDiv(r.Spend, float64(r.Leads))
	r.CPB = safeDiv(r.Spend, float64(r.Bookings))
	r.CPA = safeDiv(r.Spend, float64(r.Deposits))

	if r.Spend > 0 {
		r.ROI = (r.CashAmount - r.Spend) / r.Spend * 100
	}

	r.LeadToBookingRate = safeDiv(float64(r.Bookings), float64(r.Leads))
	r.BookingToDepositRate = safeDiv(float64(r.Deposits), float64(r.Bookings))
	r.DepositToCashRate = safeDiv(float64(r.CashCollected), float64(r.Deposits))

	if r.Impressions > 0 {
		r.CPM = r.Spend / float64(r.Impressions) * 1000
		r.CTR = float64(r.Clicks) / float64(r.Impressions) * 100
	}
	r.CPC = safeDiv(r.Spend, float64(r.Clicks))
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
