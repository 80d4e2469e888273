package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adsync/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "adsync_test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testWeek() (string, time.Time, time.Time) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7).Add(-time.Millisecond)
	return "2025-01-06_2025-01-12", start, end
}

func TestSQLite_EnsureAd_FirstSeenOnly(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	created, err := s.EnsureAd(ctx, model.Ad{ID: "A1", Name: "Hook v1", AdSetID: "AS1", CampaignID: "C1"})
	require.NoError(t, err)
	assert.True(t, created)

	// Second sight with a drifted name must not overwrite the record.
	created, err = s.EnsureAd(ctx, model.Ad{ID: "A1", Name: "Hook v1 RENAMED", AdSetID: "AS1", CampaignID: "C1"})
	require.NoError(t, err)
	assert.False(t, created)

	ad, err := s.GetAd(ctx, "A1")
	require.NoError(t, err)
	require.NotNil(t, ad)
	assert.Equal(t, "Hook v1", ad.Name)
}

func TestSQLite_GetAd_Missing(t *testing.T) {
	s := newTestSQLite(t)
	ad, err := s.GetAd(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, ad)
}

func TestSQLite_ListAdsByCampaign_Ordered(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	// Same created_at granularity is possible; id breaks the tie.
	for _, id := range []string{"A1", "A2", "A3"} {
		_, err := s.EnsureAd(ctx, model.Ad{ID: id, CampaignID: "C1", AdSetID: "AS1"})
		require.NoError(t, err)
	}
	_, err := s.EnsureAd(ctx, model.Ad{ID: "B1", CampaignID: "C2", AdSetID: "AS9"})
	require.NoError(t, err)

	ads, err := s.ListAdsByCampaign(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, ads, 3)
	assert.Equal(t, "A1", ads[0].ID)

	ids, err := s.ListCampaignIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2"}, ids)

	setIDs, err := s.ListAdSetIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AS1", "AS9"}, setIDs)
}

func TestSQLite_RecordFunnelEvent_Increments(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	weekID, start, end := testWeek()

	require.NoError(t, s.RecordFunnelEvent(ctx, "A1", weekID, start, end, model.FunnelIncrement{Leads: 1, Deposits: 1, CashAmount: 1500}))
	require.NoError(t, s.RecordFunnelEvent(ctx, "A1", weekID, start, end, model.FunnelIncrement{Leads: 1, Bookings: 1}))

	buckets, err := s.ListBucketsByAd(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	b := buckets[0]
	assert.Equal(t, int64(2), b.Leads)
	assert.Equal(t, int64(1), b.Deposits)
	assert.Equal(t, int64(1), b.Bookings)
	assert.Equal(t, 1500.0, b.CashAmount)
}

func TestSQLite_RecordInsight_OverwritesProviderFactsOnly(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	weekID, start, end := testWeek()

	// Funnel facts land first (CRM driver), then provider facts, then a
	// refetch with corrected numbers.
	require.NoError(t, s.RecordFunnelEvent(ctx, "A1", weekID, start, end, model.FunnelIncrement{Leads: 3}))
	require.NoError(t, s.RecordInsight(ctx, "A1", weekID, start, end, model.Insight{Spend: 100, Impressions: 5000}))
	require.NoError(t, s.RecordInsight(ctx, "A1", weekID, start, end, model.Insight{Spend: 120, Impressions: 5500}))

	buckets, err := s.ListBucketsByAd(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	b := buckets[0]
	assert.Equal(t, 120.0, b.Spend)
	assert.Equal(t, int64(5500), b.Impressions)
	assert.Equal(t, int64(3), b.Leads) // untouched by insight writes
	assert.True(t, b.HasInsight)
}

func TestSQLite_HasInsight(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	weekID, start, end := testWeek()

	has, err := s.HasInsight(ctx, "A1", weekID)
	require.NoError(t, err)
	assert.False(t, has)

	// A funnel-only bucket does not count as having insight.
	require.NoError(t, s.RecordFunnelEvent(ctx, "A1", weekID, start, end, model.FunnelIncrement{Leads: 1}))
	has, err = s.HasInsight(ctx, "A1", weekID)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.RecordInsight(ctx, "A1", weekID, start, end, model.Insight{Spend: 1}))
	has, err = s.HasInsight(ctx, "A1", weekID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSQLite_CreateMapping_InsertOnce(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := &model.OpportunityAdMapping{
		OpportunityID: "O1", AdID: "A1", CampaignID: "C1",
		Method: model.ResolveDirectID, Confidence: 100,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateMapping(ctx, first))

	// A later, lower-confidence resolution must not replace the record.
	second := &model.OpportunityAdMapping{
		OpportunityID: "O1", AdID: "A9", CampaignID: "C1",
		Method: model.ResolveCampaignOnly, Confidence: 60,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateMapping(ctx, second))

	m, err := s.GetMapping(ctx, "O1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "A1", m.AdID)
	assert.Equal(t, model.ResolveDirectID, m.Method)
	assert.Empty(t, m.CountedCategories)
}

func TestSQLite_UpdateMappingCounters(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateMapping(ctx, &model.OpportunityAdMapping{
		OpportunityID: "O1", AdID: "A1", Method: model.ResolveDirectID, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.UpdateMappingCounters(ctx, "O1", []string{"deposit"}, "2025-01-06_2025-01-12"))

	m, err := s.GetMapping(ctx, "O1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, []string{"deposit"}, m.CountedCategories)
	assert.Equal(t, "2025-01-06_2025-01-12", m.LeadWeekID)
}

func TestSQLite_UpdateMappingCounters_Missing(t *testing.T) {
	s := newTestSQLite(t)
	err := s.UpdateMappingCounters(context.Background(), "ghost", []string{"deposit"}, "w")
	assert.Error(t, err)
}

func TestSQLite_Rollup_MergeReplace(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.PutRollup(ctx, model.Rollup{Level: model.RollupCampaign, ScopeID: "C1", Leads: 5, Spend: 100}))
	require.NoError(t, s.PutRollup(ctx, model.Rollup{Level: model.RollupCampaign, ScopeID: "C1", Leads: 7, Spend: 140}))

	r, err := s.GetRollup(ctx, model.RollupCampaign, "C1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, int64(7), r.Leads)
	assert.Equal(t, 140.0, r.Spend)

	missing, err := s.GetRollup(ctx, model.RollupAdSet, "C1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_Checkpoint_Lifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	cp, err := s.GetCheckpoint(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)

	require.NoError(t, s.PutCheckpoint(ctx, model.SyncCheckpoint{
		LastCampaignIndex: 2, LastAdIndex: 5, TotalCampaigns: 4, TotalAdsProcessed: 31,
		RateLimitHit: true, RateLimitMessage: "stopped while fetching insights",
		Timestamp: time.Now().UTC(),
	}))

	cp, err = s.GetCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 2, cp.LastCampaignIndex)
	assert.Equal(t, 5, cp.LastAdIndex)
	assert.True(t, cp.RateLimitHit)

	// Overwrite keeps the single-row shape.
	require.NoError(t, s.PutCheckpoint(ctx, model.SyncCheckpoint{LastCampaignIndex: 3, Timestamp: time.Now().UTC()}))
	cp, err = s.GetCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 3, cp.LastCampaignIndex)
	assert.False(t, cp.RateLimitHit)

	require.NoError(t, s.DeleteCheckpoint(ctx))
	cp, err = s.GetCheckpoint(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestSQLite_RunSummaries(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	id, err := s.CreateRunSummary(ctx, model.RunSummary{
		Kind:      model.RunCRMSync,
		Stats:     model.RunStats{Processed: 10, Succeeded: 8, Skipped: 1, Errors: 1},
		StartedAt: now.Add(-time.Minute), FinishedAt: now,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sums, err := s.ListRunSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, model.RunCRMSync, sums[0].Kind)
	assert.Equal(t, 8, sums[0].Stats.Succeeded)
}
