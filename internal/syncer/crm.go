// Package syncer contains the two run drivers: the CRM opportunity sync and
// the ad provider sync. Both absorb per-item failures into run stats and
// persist a structured summary as the last action of every run.
package syncer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/adsync/internal/funnel"
	"github.com/sells-group/adsync/internal/model"
	"github.com/sells-group/adsync/internal/resolve"
	"github.com/sells-group/adsync/internal/rollup"
	"github.com/sells-group/adsync/internal/store"
	"github.com/sells-group/adsync/internal/timeweek"
	"github.com/sells-group/adsync/pkg/ghl"
)

// maxPipelineConcurrency limits parallel page fetches across pipelines.
// Store writes stay serialized regardless.
const maxPipelineConcurrency = 4

// CRMClient is the subset of the CRM API the sync needs.
type CRMClient interface {
	ListPipelines(ctx context.Context) ([]ghl.Pipeline, error)
	SearchOpportunities(ctx context.Context, req ghl.SearchRequest) (*ghl.SearchResponse, error)
}

// CRMConfig controls one CRM sync run.
type CRMConfig struct {
	// LocationID scopes every search. Required.
	LocationID string

	// PipelineIDs restricts the sync to the named pipelines. Empty means
	// every pipeline the location has.
	PipelineIDs []string

	// PageSize is the search page size. Defaults to 100.
	PageSize int

	// DefaultDepositValue and DefaultCashValue stand in for the monetary
	// value when the CRM record carries none.
	DefaultDepositValue float64
	DefaultCashValue    float64
}

// CRMSyncer drives one CRM sync run: paginated opportunity search, stage
// classification, identity resolution, and funnel counting with at-most-once
// semantics per (opportunity, category).
type CRMSyncer struct {
	client   CRMClient
	store    store.Store
	resolver *resolve.Resolver
	agg      *rollup.Aggregator
	cfg      CRMConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewCRMSyncer wires a CRM sync run driver.
func NewCRMSyncer(client CRMClient, st store.Store, resolver *resolve.Resolver, agg *rollup.Aggregator, cfg CRMConfig) *CRMSyncer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &CRMSyncer{
		client:   client,
		store:    st,
		resolver: resolver,
		agg:      agg,
		cfg:      cfg,
		log:      zap.L().Named("crmsync"),
		now:      time.Now,
	}
}

// Run executes one full CRM sync. Individual opportunity failures are
// counted, never escalated; the returned summary is also persisted before
// Run returns.
func (s *CRMSyncer) Run(ctx context.Context) (*model.RunSummary, error) {
	if s.cfg.LocationID == "" {
		return nil, eris.New("crmsync: location id is required")
	}

	started := s.now().UTC()

	pipelines, err := s.client.ListPipelines(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "crmsync: list pipelines")
	}
	stageNames, pipelineIDs := s.indexPipelines(pipelines)
	if len(pipelineIDs) == 0 {
		return nil, eris.New("crmsync: no pipelines matched the configuration")
	}

	opps, err := s.fetchAll(ctx, pipelineIDs)
	if err != nil {
		return nil, err
	}
	s.log.Info("fetched opportunities",
		zap.Int("count", len(opps)),
		zap.Int("pipelines", len(pipelineIDs)),
	)

	var stats model.RunStats
	touched := newScopeSet()
	for _, opp := range opps {
		stats.Processed++
		switch outcome, err := s.processOne(ctx, opp, stageNames, touched); {
		case err != nil:
			stats.Errors++
			s.log.Warn("opportunity failed",
				zap.String("opportunity_id", opp.ID),
				zap.Error(err),
			)
		case outcome == outcomeSkipped:
			stats.Skipped++
		default:
			stats.Succeeded++
		}
	}

	s.recomputeTouched(ctx, touched, &stats)

	summary := &model.RunSummary{
		Kind:       model.RunCRMSync,
		Stats:      stats,
		Message:    fmt.Sprintf("synced %d opportunities across %d pipelines", len(opps), len(pipelineIDs)),
		StartedAt:  started,
		FinishedAt: s.now().UTC(),
	}
	id, err := s.store.CreateRunSummary(ctx, *summary)
	if err != nil {
		return nil, eris.Wrap(err, "crmsync: persist run summary")
	}
	summary.ID = id
	return summary, nil
}

// indexPipelines builds the stage-id to stage-name index and selects the
// pipeline ids to sync.
func (s *CRMSyncer) indexPipelines(pipelines []ghl.Pipeline) (map[string]string, []string) {
	wanted := map[string]bool{}
	for _, id := range s.cfg.PipelineIDs {
		wanted[id] = true
	}

	stageNames := map[string]string{}
	var ids []string
	for _, p := range pipelines {
		if len(wanted) > 0 && !wanted[p.ID] {
			continue
		}
		ids = append(ids, p.ID)
		for _, st := range p.Stages {
			stageNames[st.ID] = st.Name
		}
	}
	return stageNames, ids
}

// fetchAll pulls every page of every selected pipeline. Pipelines fetch in
// parallel; the collected slice is ordered by pipeline then page so runs are
// reproducible.
func (s *CRMSyncer) fetchAll(ctx context.Context, pipelineIDs []string) ([]ghl.Opportunity, error) {
	var mu sync.Mutex
	byPipeline := make(map[string][]ghl.Opportunity, len(pipelineIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPipelineConcurrency)
	for _, pipelineID := range pipelineIDs {
		g.Go(func() error {
			var all []ghl.Opportunity
			for page := 1; page > 0; {
				resp, err := s.client.SearchOpportunities(gctx, ghl.SearchRequest{
					LocationID: s.cfg.LocationID,
					PipelineID: pipelineID,
					Page:       page,
					Limit:      s.cfg.PageSize,
				})
				if err != nil {
					return eris.Wrapf(err, "crmsync: search pipeline %s page %d", pipelineID, page)
				}
				all = append(all, resp.Opportunities...)
				page = resp.Meta.NextPage
			}
			mu.Lock()
			byPipeline[pipelineID] = all
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var opps []ghl.Opportunity
	for _, pipelineID := range pipelineIDs {
		opps = append(opps, byPipeline[pipelineID]...)
	}
	return opps, nil
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeSkipped
)

// processOne handles a single opportunity: classify its stage, resolve its
// ad identity, and apply whatever funnel increments have not been counted
// yet. A new mapping also counts the lead, exactly once ever.
func (s *CRMSyncer) processOne(ctx context.Context, opp ghl.Opportunity, stageNames map[string]string, touched *scopeSet) (outcome, error) {
	if opp.ID == "" {
		return 0, eris.New("crmsync: opportunity without id")
	}

	signals := attributionSignals(opp)

	// Distinguish first sight from repeat observation before resolving, so
	// the lead counter fires only on mapping creation.
	existing, err := s.store.GetMapping(ctx, opp.ID)
	if err != nil {
		return 0, eris.Wrapf(err, "crmsync: lookup mapping %s", opp.ID)
	}

	mapping, err := s.resolver.Resolve(ctx, opp.ID, signals)
	if err != nil {
		return 0, err
	}
	if mapping == nil {
		// No tier succeeded. Nothing is persisted, so a later run retries
		// once better attribution shows up.
		return outcomeSkipped, nil
	}
	created := existing == nil

	ad, err := s.store.GetAd(ctx, mapping.AdID)
	if err != nil {
		return 0, eris.Wrapf(err, "crmsync: lookup ad %s", mapping.AdID)
	}
	if ad == nil {
		return 0, eris.Errorf("crmsync: mapping %s references unknown ad %s", opp.ID, mapping.AdID)
	}

	category := funnel.Classify(stageNames[opp.PipelineStageID])
	eventTime := opp.UpdatedAt
	if eventTime.IsZero() {
		eventTime = s.now()
	}

	if err := s.applyIncrements(ctx, opp, mapping, category, created, eventTime); err != nil {
		return 0, err
	}

	touched.add(ad.AdSetID, mapping.CampaignID)
	return outcomeSucceeded, nil
}

// applyIncrements writes the lead and category counters this observation
// newly earns, then records them on the mapping so the next observation
// finds them already counted. Both counters land in the week of the
// observation itself, so a single atomic write covers them.
func (s *CRMSyncer) applyIncrements(ctx context.Context, opp ghl.Opportunity, mapping *model.OpportunityAdMapping, category funnel.Category, created bool, eventTime time.Time) error {
	weekStart, weekEnd := timeweek.WeekRangeOf(eventTime.UTC())
	weekID := timeweek.WeekIDOf(eventTime.UTC())

	countCategory := category != funnel.Other &&
		category != funnel.NoShow &&
		!mapping.Counted(string(category))

	var inc model.FunnelIncrement
	if created {
		inc.Leads = 1
	}
	if countCategory {
		switch category {
		case funnel.BookedAppointment:
			inc.Bookings = 1
		case funnel.CallCompleted:
			inc.Calls = 1
		case funnel.Deposit:
			inc.Deposits = 1
		case funnel.CashCollected:
			inc.CashCollected = 1
		}
		if category.Monetizable() {
			inc.CashAmount = s.monetaryValue(opp, category)
		}
	}

	if inc != (model.FunnelIncrement{}) {
		if err := s.store.RecordFunnelEvent(ctx, mapping.AdID, weekID, weekStart, weekEnd, inc); err != nil {
			return eris.Wrapf(err, "crmsync: record funnel event %s", opp.ID)
		}
	}

	if !created && !countCategory {
		return nil
	}

	counted := mapping.CountedCategories
	if countCategory {
		counted = append(counted, string(category))
	}
	recordedLeadWeek := mapping.LeadWeekID
	if recordedLeadWeek == "" {
		recordedLeadWeek = weekID
	}
	if err := s.store.UpdateMappingCounters(ctx, opp.ID, counted, recordedLeadWeek); err != nil {
		return eris.Wrapf(err, "crmsync: update mapping counters %s", opp.ID)
	}
	return nil
}

// monetaryValue returns the opportunity's own value when it carries one,
// else the configured default for the category.
func (s *CRMSyncer) monetaryValue(opp ghl.Opportunity, category funnel.Category) float64 {
	if opp.MonetaryValue > 0 {
		return opp.MonetaryValue
	}
	if category == funnel.Deposit {
		return s.cfg.DefaultDepositValue
	}
	return s.cfg.DefaultCashValue
}

// recomputeTouched refreshes the rollups of every ad set and campaign the
// run wrote to. Recompute failures count as run errors, nothing more; the
// periodic full sweep repairs anything missed here.
func (s *CRMSyncer) recomputeTouched(ctx context.Context, touched *scopeSet, stats *model.RunStats) {
	for _, adSetID := range touched.sorted(touched.adSets) {
		if err := s.agg.Recompute(ctx, adSetID, model.RollupAdSet); err != nil {
			stats.Errors++
			s.log.Warn("ad set rollup failed", zap.String("adset_id", adSetID), zap.Error(err))
		}
	}
	for _, campaignID := range touched.sorted(touched.campaigns) {
		if err := s.agg.Recompute(ctx, campaignID, model.RollupCampaign); err != nil {
			stats.Errors++
			s.log.Warn("campaign rollup failed", zap.String("campaign_id", campaignID), zap.Error(err))
		}
	}
}

// attributionSignals converts the opportunity's primary CRM attribution into
// resolver signals.
func attributionSignals(opp ghl.Opportunity) model.Attribution {
	a := ghl.PrimaryAttribution(opp)
	if a == nil {
		return model.Attribution{}
	}
	return model.Attribution{
		AdID:         a.AdID,
		AdName:       a.AdName,
		AdSetID:      a.AdSetID,
		AdSetName:    a.AdSetName,
		CampaignID:   a.CampaignID,
		CampaignName: a.CampaignName,
		UTMSource:    a.UTMSource,
		UTMMedium:    a.UTMMedium,
		UTMContent:   a.UTMContent,
		IsLatest:     a.IsLatest,
	}
}

// scopeSet accumulates the distinct rollup scopes a run touches.
type scopeSet struct {
	adSets    map[string]bool
	campaigns map[string]bool
}

func newScopeSet() *scopeSet {
	return &scopeSet{adSets: map[string]bool{}, campaigns: map[string]bool{}}
}

func (ss *scopeSet) add(adSetID, campaignID string) {
	if adSetID != "" {
		ss.adSets[adSetID] = true
	}
	if campaignID != "" {
		ss.campaigns[campaignID] = true
	}
}

func (ss *scopeSet) sorted(m map[string]bool) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
