package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/adsync/internal/model"
)

// MemoryStore is an in-memory Store used by unit tests and local dry runs.
// All operations take the single mutex, which gives the same effective
// atomicity the SQL backends get from single-statement upserts.
type MemoryStore struct {
	mu sync.Mutex

	ads        map[string]*model.Ad
	adOrder    []string
	buckets    map[string]*model.WeeklyBucket // key: adID + "|" + weekID
	mappings   map[string]*model.OpportunityAdMapping
	rollups    map[string]*model.Rollup // key: level + "|" + scopeID
	snapshots  []model.Rollup
	checkpoint *model.SyncCheckpoint
	runs       []model.RunSummary
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		ads:      map[string]*model.Ad{},
		buckets:  map[string]*model.WeeklyBucket{},
		mappings: map[string]*model.OpportunityAdMapping{},
		rollups:  map[string]*model.Rollup{},
	}
}

func bucketKey(adID, weekID string) string { return adID + "|" + weekID }

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                      { return nil }

func (s *MemoryStore) EnsureAd(ctx context.Context, ad model.Ad) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.ads[ad.ID]; ok {
		existing.LastSyncedAt = now
		return false, nil
	}
	ad.CreatedAt = now
	ad.LastSyncedAt = now
	s.ads[ad.ID] = &ad
	s.adOrder = append(s.adOrder, ad.ID)
	return true, nil
}

func (s *MemoryStore) GetAd(ctx context.Context, adID string) (*model.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad, ok := s.ads[adID]
	if !ok {
		return nil, nil
	}
	cp := *ad
	return &cp, nil
}

func (s *MemoryStore) ListAdsByCampaign(ctx context.Context, campaignID string) ([]model.Ad, error) {
	return s.listAds(func(ad *model.Ad) bool { return ad.CampaignID == campaignID })
}

func (s *MemoryStore) ListAdsByAdSet(ctx context.Context, adSetID string) ([]model.Ad, error) {
	return s.listAds(func(ad *model.Ad) bool { return ad.AdSetID == adSetID })
}

// listAds preserves insertion order so "first ad" is deterministic, matching
// the SQL backends' ORDER BY created_at, id.
func (s *MemoryStore) listAds(match func(*model.Ad) bool) ([]model.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ads []model.Ad
	for _, id := range s.adOrder {
		if ad := s.ads[id]; match(ad) {
			ads = append(ads, *ad)
		}
	}
	return ads, nil
}

func (s *MemoryStore) ListCampaignIDs(ctx context.Context) ([]string, error) {
	return s.listDistinct(func(ad *model.Ad) string { return ad.CampaignID })
}

func (s *MemoryStore) ListAdSetIDs(ctx context.Context) ([]string, error) {
	return s.listDistinct(func(ad *model.Ad) string { return ad.AdSetID })
}

func (s *MemoryStore) listDistinct(key func(*model.Ad) string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	var ids []string
	for _, ad := range s.ads {
		if k := key(ad); k != "" && !seen[k] {
			seen[k] = true
			ids = append(ids, k)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ensureBucketLocked(adID, weekID string, weekStart, weekEnd time.Time) *model.WeeklyBucket {
	key := bucketKey(adID, weekID)
	b, ok := s.buckets[key]
	if !ok {
		b = &model.WeeklyBucket{
			AdID:      adID,
			WeekID:    weekID,
			WeekStart: weekStart.UTC(),
			WeekEnd:   weekEnd.UTC(),
		}
		s.buckets[key] = b
	}
	return b
}

func (s *MemoryStore) EnsureBucket(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureBucketLocked(adID, weekID, weekStart, weekEnd)
	return nil
}

func (s *MemoryStore) RecordFunnelEvent(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time, inc model.FunnelIncrement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ensureBucketLocked(adID, weekID, weekStart, weekEnd)
	b.Leads += inc.Leads
	b.Bookings += inc.Bookings
	b.Calls += inc.Calls
	b.Deposits += inc.Deposits
	b.CashCollected += inc.CashCollected
	b.CashAmount += inc.CashAmount
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) RecordInsight(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time, ins model.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ensureBucketLocked(adID, weekID, weekStart, weekEnd)
	b.Spend = ins.Spend
	b.Impressions = ins.Impressions
	b.Clicks = ins.Clicks
	b.Reach = ins.Reach
	b.CPM = ins.CPM
	b.CPC = ins.CPC
	b.CTR = ins.CTR
	b.HasInsight = true
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) HasInsight(ctx context.Context, adID, weekID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[bucketKey(adID, weekID)]
	return ok && b.HasInsight, nil
}

func (s *MemoryStore) ListBucketsByAd(ctx context.Context, adID string) ([]model.WeeklyBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buckets []model.WeeklyBucket
	for _, b := range s.buckets {
		if b.AdID == adID {
			buckets = append(buckets, *b)
		}
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].WeekStart.Before(buckets[j].WeekStart) })
	return buckets, nil
}

func (s *MemoryStore) GetMapping(ctx context.Context, opportunityID string) (*model.OpportunityAdMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mappings[opportunityID]
	if !ok {
		return nil, nil
	}
	cp := *m
	cp.CountedCategories = append([]string(nil), m.CountedCategories...)
	return &cp, nil
}

func (s *MemoryStore) CreateMapping(ctx context.Context, m *model.OpportunityAdMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mappings[m.OpportunityID]; ok {
		return nil
	}
	cp := *m
	cp.CountedCategories = append([]string(nil), m.CountedCategories...)
	s.mappings[m.OpportunityID] = &cp
	return nil
}

func (s *MemoryStore) UpdateMappingCounters(ctx context.Context, opportunityID string, countedCategories []string, leadWeekID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mappings[opportunityID]
	if !ok {
		return eris.Errorf("mapping not found: %s", opportunityID)
	}
	m.CountedCategories = append([]string(nil), countedCategories...)
	m.LeadWeekID = leadWeekID
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) PutRollup(ctx context.Context, r model.Rollup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.rollups[string(r.Level)+"|"+r.ScopeID] = &cp
	return nil
}

func (s *MemoryStore) GetRollup(ctx context.Context, level model.RollupLevel, scopeID string) (*model.Rollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rollups[string(level)+"|"+scopeID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) AppendRollupSnapshot(ctx context.Context, r model.Rollup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, r)
	return nil
}

// RollupSnapshots returns the appended history rows, for test assertions.
func (s *MemoryStore) RollupSnapshots() []model.Rollup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Rollup(nil), s.snapshots...)
}

func (s *MemoryStore) GetCheckpoint(ctx context.Context) (*model.SyncCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checkpoint == nil {
		return nil, nil
	}
	cp := *s.checkpoint
	return &cp, nil
}

func (s *MemoryStore) PutCheckpoint(ctx context.Context, cp model.SyncCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = &cp
	return nil
}

func (s *MemoryStore) DeleteCheckpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = nil
	return nil
}

func (s *MemoryStore) CreateRunSummary(ctx context.Context, sum model.RunSummary) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sum.ID == "" {
		sum.ID = uuid.New().String()
	}
	s.runs = append(s.runs, sum)
	return sum.ID, nil
}

func (s *MemoryStore) ListRunSummaries(ctx context.Context, limit int) ([]model.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	out := make([]model.RunSummary, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}
