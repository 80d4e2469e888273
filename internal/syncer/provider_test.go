package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adsync/internal/model"
	"github.com/sells-group/adsync/internal/store"
	"github.com/sells-group/adsync/pkg/fbads"
)

// fakeAds serves a scripted campaign/ad hierarchy with one insight week per
// ad, and lets tests schedule a usage percentage per insight call.
type fakeAds struct {
	campaigns []fbads.Campaign
	ads       map[string][]fbads.Ad // by campaign id
	insights  map[string][]fbads.Insight

	// usageByAd overrides the usage reported by WeeklyInsights per ad.
	usageByAd map[string]float64

	insightCalls []string // ad ids in call order
}

func (f *fakeAds) ListCampaigns(ctx context.Context) ([]fbads.Campaign, fbads.Usage, error) {
	return f.campaigns, fbads.Usage{Percent: 10}, nil
}

func (f *fakeAds) ListAds(ctx context.Context, campaignID string) ([]fbads.Ad, fbads.Usage, error) {
	return f.ads[campaignID], fbads.Usage{Percent: 10}, nil
}

func (f *fakeAds) WeeklyInsights(ctx context.Context, adID string, since, until time.Time) ([]fbads.Insight, fbads.Usage, error) {
	f.insightCalls = append(f.insightCalls, adID)
	pct := 10.0
	if v, ok := f.usageByAd[adID]; ok {
		pct = v
	}
	return f.insights[adID], fbads.Usage{Percent: pct}, nil
}

func testAd(id, campaignID string) fbads.Ad {
	ad := fbads.Ad{ID: id, Name: "creative " + id}
	ad.AdSet.ID = "as-" + campaignID
	ad.AdSet.Name = "set " + campaignID
	ad.Campaign.ID = campaignID
	ad.Campaign.Name = "campaign " + campaignID
	return ad
}

func testInsight(spend float64) []fbads.Insight {
	return []fbads.Insight{{
		DateStart:   "2025-01-06",
		DateStop:    "2025-01-12",
		Spend:       spend,
		Impressions: 1000,
		Clicks:      50,
	}}
}

// newFakeAds builds two campaigns with two ads each.
func newFakeAds() *fakeAds {
	return &fakeAds{
		campaigns: []fbads.Campaign{{ID: "c1", Name: "campaign c1"}, {ID: "c2", Name: "campaign c2"}},
		ads: map[string][]fbads.Ad{
			"c1": {testAd("a1", "c1"), testAd("a2", "c1")},
			"c2": {testAd("b1", "c2"), testAd("b2", "c2")},
		},
		insights: map[string][]fbads.Insight{
			"a1": testInsight(10), "a2": testInsight(20),
			"b1": testInsight(30), "b2": testInsight(40),
		},
		usageByAd: map[string]float64{},
	}
}

func newProviderSyncer(client AdsClient, st store.Store) *ProviderSyncer {
	s := NewProviderSyncer(client, st, ProviderConfig{
		Since: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
	})
	s.now = func() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestProviderRun_CleanCompletion(t *testing.T) {
	st := store.NewMemory()
	ads := newFakeAds()
	s := newProviderSyncer(ads, st)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunProviderSync, summary.Kind)
	assert.False(t, summary.RateLimited)
	assert.Equal(t, 4, summary.Stats.Processed)
	assert.Equal(t, 4, summary.Stats.Succeeded)

	// All four ads landed with their insight week.
	for _, adID := range []string{"a1", "a2", "b1", "b2"} {
		ad, err := st.GetAd(context.Background(), adID)
		require.NoError(t, err)
		require.NotNil(t, ad, "missing ad %s", adID)

		has, err := st.HasInsight(context.Background(), adID, "2025-01-06_2025-01-12")
		require.NoError(t, err)
		assert.True(t, has, "missing insight for %s", adID)
	}

	cp, err := st.GetCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp, "clean completion must delete the checkpoint")
}

func TestProviderRun_HaltsOnUsageBudget(t *testing.T) {
	st := store.NewMemory()
	ads := newFakeAds()
	ads.usageByAd["a2"] = 96
	s := newProviderSyncer(ads, st)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.RateLimited)
	assert.Equal(t, 2, summary.Stats.Succeeded)
	assert.Equal(t, []string{"a1", "a2"}, ads.insightCalls, "traversal must stop after the halting pair")

	cp, err := st.GetCheckpoint(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.RateLimitHit)
	assert.NotEmpty(t, cp.RateLimitMessage)
	assert.Equal(t, 0, cp.LastCampaignIndex)
	assert.Equal(t, 1, cp.LastAdIndex, "the halting pair itself was fully processed")
}

func TestProviderRun_ResumesOnePastCheckpoint(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.PutCheckpoint(context.Background(), model.SyncCheckpoint{
		LastCampaignIndex: 1,
		LastAdIndex:       0,
		RateLimitHit:      true,
	}))

	ads := newFakeAds()
	s := newProviderSyncer(ads, st)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	// Campaign index 1, ad index 0 was the last completed pair: only b2
	// remains.
	assert.Equal(t, []string{"b2"}, ads.insightCalls)
	assert.Equal(t, 1, summary.Stats.Succeeded)
	assert.False(t, summary.RateLimited)

	cp, err := st.GetCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestProviderRun_HaltAfterResumeKeepsCumulativeAdCount(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.PutCheckpoint(context.Background(), model.SyncCheckpoint{
		LastCampaignIndex: 0,
		LastAdIndex:       1,
		TotalAdsProcessed: 2,
		RateLimitHit:      true,
	}))

	ads := newFakeAds()
	ads.usageByAd["b1"] = 96
	s := newProviderSyncer(ads, st)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.RateLimited)

	// b1 is the third ad overall: two from the interrupted run plus one now.
	cp, err := st.GetCheckpoint(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 1, cp.LastCampaignIndex)
	assert.Equal(t, 0, cp.LastAdIndex)
	assert.Equal(t, 3, cp.TotalAdsProcessed)
}

func TestProviderRun_StaleCheckpointRestartsFromTop(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.PutCheckpoint(context.Background(), model.SyncCheckpoint{
		LastCampaignIndex: 9,
		LastAdIndex:       3,
	}))

	ads := newFakeAds()
	s := newProviderSyncer(ads, st)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Stats.Succeeded)
}

func TestProviderRun_FirstSeenAdIsNotOverwritten(t *testing.T) {
	st := store.NewMemory()
	_, err := st.EnsureAd(context.Background(), model.Ad{
		ID: "a1", Name: "original name", AdSetID: "as-c1", CampaignID: "c1",
	})
	require.NoError(t, err)

	ads := newFakeAds()
	s := newProviderSyncer(ads, st)
	_, err = s.Run(context.Background())
	require.NoError(t, err)

	ad, err := st.GetAd(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, ad)
	assert.Equal(t, "original name", ad.Name)
}

func TestProviderRun_SkipsExistingInsightWeeks(t *testing.T) {
	st := store.NewMemory()
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7).Add(-time.Millisecond)
	require.NoError(t, st.RecordInsight(context.Background(), "a1", "2025-01-06_2025-01-12", start, end, model.Insight{
		WeekID: "2025-01-06_2025-01-12",
		Spend:  999,
	}))

	ads := newFakeAds()
	s := newProviderSyncer(ads, st)
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	buckets, err := st.ListBucketsByAd(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 999.0, buckets[0].Spend, "existing insight weeks are never refetched over")
}

func TestProviderRun_PerAdErrorsAreAbsorbed(t *testing.T) {
	st := store.NewMemory()
	ads := newFakeAds()
	// A malformed insight date makes one pair fail.
	ads.insights["a1"] = []fbads.Insight{{DateStart: "not-a-date"}}
	s := newProviderSyncer(ads, st)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stats.Errors)
	assert.Equal(t, 3, summary.Stats.Succeeded)

	// The run still completed cleanly past the failure.
	cp, err := st.GetCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp)
}
