package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/adsync/internal/db"
	"github.com/sells-group/adsync/internal/model"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, maxConns, minConns)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool (used with pgxmock in tests).
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ads (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	adset_id       TEXT NOT NULL DEFAULT '',
	adset_name     TEXT NOT NULL DEFAULT '',
	campaign_id    TEXT NOT NULL DEFAULT '',
	campaign_name  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_synced_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS weekly_buckets (
	ad_id          TEXT NOT NULL,
	week_id        TEXT NOT NULL,
	week_start     TIMESTAMPTZ NOT NULL,
	week_end       TIMESTAMPTZ NOT NULL,
	spend          DOUBLE PRECISION NOT NULL DEFAULT 0,
	impressions    BIGINT NOT NULL DEFAULT 0,
	clicks         BIGINT NOT NULL DEFAULT 0,
	reach          BIGINT NOT NULL DEFAULT 0,
	cpm            DOUBLE PRECISION NOT NULL DEFAULT 0,
	cpc            DOUBLE PRECISION NOT NULL DEFAULT 0,
	ctr            DOUBLE PRECISION NOT NULL DEFAULT 0,
	has_insight    BOOLEAN NOT NULL DEFAULT FALSE,
	leads          BIGINT NOT NULL DEFAULT 0,
	bookings       BIGINT NOT NULL DEFAULT 0,
	calls          BIGINT NOT NULL DEFAULT 0,
	deposits       BIGINT NOT NULL DEFAULT 0,
	cash_collected BIGINT NOT NULL DEFAULT 0,
	cash_amount    DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ad_id, week_id)
);

CREATE TABLE IF NOT EXISTS opportunity_ad_mappings (
	opportunity_id     TEXT PRIMARY KEY,
	ad_id              TEXT NOT NULL,
	campaign_id        TEXT NOT NULL DEFAULT '',
	method             TEXT NOT NULL,
	confidence         DOUBLE PRECISION NOT NULL DEFAULT 0,
	counted_categories JSONB NOT NULL DEFAULT '[]',
	lead_week_id       TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rollups (
	level      TEXT NOT NULL,
	scope_id   TEXT NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (level, scope_id)
);

CREATE TABLE IF NOT EXISTS rollup_history (
	id         UUID PRIMARY KEY,
	level      TEXT NOT NULL,
	scope_id   TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_checkpoints (
	id                  INT PRIMARY KEY CHECK (id = 1),
	last_campaign_index INT NOT NULL,
	last_ad_index       INT NOT NULL,
	total_campaigns     INT NOT NULL,
	total_ads_processed INT NOT NULL,
	rate_limit_hit      BOOLEAN NOT NULL DEFAULT FALSE,
	rate_limit_message  TEXT NOT NULL DEFAULT '',
	ts                  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id           UUID PRIMARY KEY,
	kind         TEXT NOT NULL,
	processed    INT NOT NULL DEFAULT 0,
	succeeded    INT NOT NULL DEFAULT 0,
	skipped      INT NOT NULL DEFAULT 0,
	errors       INT NOT NULL DEFAULT 0,
	rate_limited BOOLEAN NOT NULL DEFAULT FALSE,
	message      TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ads_campaign ON ads(campaign_id);
CREATE INDEX IF NOT EXISTS idx_ads_adset ON ads(adset_id);
CREATE INDEX IF NOT EXISTS idx_buckets_week ON weekly_buckets(week_id);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON sync_runs(kind, started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) EnsureAd(ctx context.Context, ad model.Ad) (bool, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO ads (id, name, adset_id, adset_name, campaign_id, campaign_name, created_at, last_synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		ad.ID, ad.Name, ad.AdSetID, ad.AdSetName, ad.CampaignID, ad.CampaignName, now, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: ensure ad %s", ad.ID)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	_, err = s.pool.Exec(ctx, `UPDATE ads SET last_synced_at = $1 WHERE id = $2`, now, ad.ID)
	return false, eris.Wrapf(err, "postgres: touch ad %s", ad.ID)
}

func (s *PostgresStore) GetAd(ctx context.Context, adID string) (*model.Ad, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, adset_id, adset_name, campaign_id, campaign_name, created_at, last_synced_at
		 FROM ads WHERE id = $1`, adID)

	var ad model.Ad
	err := row.Scan(&ad.ID, &ad.Name, &ad.AdSetID, &ad.AdSetName, &ad.CampaignID, &ad.CampaignName, &ad.CreatedAt, &ad.LastSyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get ad %s", adID)
	}
	return &ad, nil
}

func (s *PostgresStore) ListAdsByCampaign(ctx context.Context, campaignID string) ([]model.Ad, error) {
	return s.listAds(ctx,
		`SELECT id, name, adset_id, adset_name, campaign_id, campaign_name, created_at, last_synced_at
		 FROM ads WHERE campaign_id = $1 ORDER BY created_at, id`, campaignID)
}

func (s *PostgresStore) ListAdsByAdSet(ctx context.Context, adSetID string) ([]model.Ad, error) {
	return s.listAds(ctx,
		`SELECT id, name, adset_id, adset_name, campaign_id, campaign_name, created_at, last_synced_at
		 FROM ads WHERE adset_id = $1 ORDER BY created_at, id`, adSetID)
}

func (s *PostgresStore) listAds(ctx context.Context, query string, arg any) ([]model.Ad, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ads")
	}
	defer rows.Close()

	var ads []model.Ad
	for rows.Next() {
		var ad model.Ad
		if err := rows.Scan(&ad.ID, &ad.Name, &ad.AdSetID, &ad.AdSetName, &ad.CampaignID, &ad.CampaignName, &ad.CreatedAt, &ad.LastSyncedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ad")
		}
		ads = append(ads, ad)
	}
	return ads, eris.Wrap(rows.Err(), "postgres: iterate ads")
}

func (s *PostgresStore) ListCampaignIDs(ctx context.Context) ([]string, error) {
	return s.listDistinct(ctx, `SELECT DISTINCT campaign_id FROM ads WHERE campaign_id != '' ORDER BY campaign_id`)
}

func (s *PostgresStore) ListAdSetIDs(ctx context.Context) ([]string, error) {
	return s.listDistinct(ctx, `SELECT DISTINCT adset_id FROM ads WHERE adset_id != '' ORDER BY adset_id`)
}

func (s *PostgresStore) listDistinct(ctx context.Context, query string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list distinct")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate ids")
}

func (s *PostgresStore) EnsureBucket(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO weekly_buckets (ad_id, week_id, week_start, week_end)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (ad_id, week_id) DO NOTHING`,
		adID, weekID, weekStart.UTC(), weekEnd.UTC(),
	)
	return eris.Wrapf(err, "postgres: ensure bucket (%s, %s)", adID, weekID)
}

func (s *PostgresStore) RecordFunnelEvent(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time, inc model.FunnelIncrement) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO weekly_buckets
		    (ad_id, week_id, week_start, week_end, leads, bookings, calls, deposits, cash_collected, cash_amount, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		 ON CONFLICT (ad_id, week_id) DO UPDATE SET
		    leads          = weekly_buckets.leads + EXCLUDED.leads,
		    bookings       = weekly_buckets.bookings + EXCLUDED.bookings,
		    calls          = weekly_buckets.calls + EXCLUDED.calls,
		    deposits       = weekly_buckets.deposits + EXCLUDED.deposits,
		    cash_collected = weekly_buckets.cash_collected + EXCLUDED.cash_collected,
		    cash_amount    = weekly_buckets.cash_amount + EXCLUDED.cash_amount,
		    updated_at     = now()`,
		adID, weekID, weekStart.UTC(), weekEnd.UTC(),
		inc.Leads, inc.Bookings, inc.Calls, inc.Deposits, inc.CashCollected, inc.CashAmount,
	)
	return eris.Wrapf(err, "postgres: record funnel event (%s, %s)", adID, weekID)
}

func (s *PostgresStore) RecordInsight(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time, ins model.Insight) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO weekly_buckets
		    (ad_id, week_id, week_start, week_end, spend, impressions, clicks, reach, cpm, cpc, ctr, has_insight, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE, now())
		 ON CONFLICT (ad_id, week_id) DO UPDATE SET
		    spend       = EXCLUDED.spend,
		    impressions = EXCLUDED.impressions,
		    clicks      = EXCLUDED.clicks,
		    reach       = EXCLUDED.reach,
		    cpm         = EXCLUDED.cpm,
		    cpc         = EXCLUDED.cpc,
		    ctr         = EXCLUDED.ctr,
		    has_insight = TRUE,
		    updated_at  = now()`,
		adID, weekID, weekStart.UTC(), weekEnd.UTC(),
		ins.Spend, ins.Impressions, ins.Clicks, ins.Reach, ins.CPM, ins.CPC, ins.CTR,
	)
	return eris.Wrapf(err, "postgres: record insight (%s, %s)", adID, weekID)
}

func (s *PostgresStore) HasInsight(ctx context.Context, adID, weekID string) (bool, error) {
	var has bool
	err := s.pool.QueryRow(ctx,
		`SELECT has_insight FROM weekly_buckets WHERE ad_id = $1 AND week_id = $2`,
		adID, weekID,
	).Scan(&has)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: has insight (%s, %s)", adID, weekID)
	}
	return has, nil
}

func (s *PostgresStore) ListBucketsByAd(ctx context.Context, adID string) ([]model.WeeklyBucket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ad_id, week_id, week_start, week_end, spend, impressions, clicks, reach, cpm, cpc, ctr, has_insight,
		        leads, bookings, calls, deposits, cash_collected, cash_amount, updated_at
		 FROM weekly_buckets WHERE ad_id = $1 ORDER BY week_start`, adID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list buckets for ad %s", adID)
	}
	defer rows.Close()

	var buckets []model.WeeklyBucket
	for rows.Next() {
		var b model.WeeklyBucket
		if err := rows.Scan(&b.AdID, &b.WeekID, &b.WeekStart, &b.WeekEnd,
			&b.Spend, &b.Impressions, &b.Clicks, &b.Reach, &b.CPM, &b.CPC, &b.CTR, &b.HasInsight,
			&b.Leads, &b.Bookings, &b.Calls, &b.Deposits, &b.CashCollected, &b.CashAmount, &b.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bucket")
		}
		buckets = append(buckets, b)
	}
	return buckets, eris.Wrap(rows.Err(), "postgres: iterate buckets")
}

func (s *PostgresStore) GetMapping(ctx context.Context, opportunityID string) (*model.OpportunityAdMapping, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT opportunity_id, ad_id, campaign_id, method, confidence, counted_categories, lead_week_id, created_at, updated_at
		 FROM opportunity_ad_mappings WHERE opportunity_id = $1`, opportunityID)

	var m model.OpportunityAdMapping
	var counted []byte
	err := row.Scan(&m.OpportunityID, &m.AdID, &m.CampaignID, &m.Method, &m.Confidence, &counted, &m.LeadWeekID, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get mapping %s", opportunityID)
	}
	if err := json.Unmarshal(counted, &m.CountedCategories); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal counted categories %s", opportunityID)
	}
	return &m, nil
}

func (s *PostgresStore) CreateMapping(ctx context.Context, m *model.OpportunityAdMapping) error {
	counted, err := json.Marshal(m.CountedCategories)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal counted categories")
	}
	if m.CountedCategories == nil {
		counted = []byte("[]")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO opportunity_ad_mappings
		    (opportunity_id, ad_id, campaign_id, method, confidence, counted_categories, lead_week_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (opportunity_id) DO NOTHING`,
		m.OpportunityID, m.AdID, m.CampaignID, string(m.Method), m.Confidence, counted, m.LeadWeekID, m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: create mapping %s", m.OpportunityID)
}

func (s *PostgresStore) UpdateMappingCounters(ctx context.Context, opportunityID string, countedCategories []string, leadWeekID string) error {
	counted, err := json.Marshal(countedCategories)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal counted categories")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunity_ad_mappings
		 SET counted_categories = $1, lead_week_id = $2, updated_at = now()
		 WHERE opportunity_id = $3`,
		counted, leadWeekID, opportunityID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update mapping counters %s", opportunityID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("mapping not found: %s", opportunityID)
	}
	return nil
}

func (s *PostgresStore) PutRollup(ctx context.Context, r model.Rollup) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rollup")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rollups (level, scope_id, payload, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (level, scope_id) DO UPDATE SET
		    payload = EXCLUDED.payload, updated_at = now()`,
		string(r.Level), r.ScopeID, payload,
	)
	return eris.Wrapf(err, "postgres: put rollup (%s, %s)", r.Level, r.ScopeID)
}

func (s *PostgresStore) GetRollup(ctx context.Context, level model.RollupLevel, scopeID string) (*model.Rollup, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM rollups WHERE level = $1 AND scope_id = $2`,
		string(level), scopeID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get rollup (%s, %s)", level, scopeID)
	}

	var r model.Rollup
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal rollup")
	}
	return &r, nil
}

func (s *PostgresStore) AppendRollupSnapshot(ctx context.Context, r model.Rollup) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rollup snapshot")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rollup_history (id, level, scope_id, payload, created_at) VALUES ($1, $2, $3, $4, now())`,
		uuid.New().String(), string(r.Level), r.ScopeID, payload,
	)
	return eris.Wrapf(err, "postgres: append rollup snapshot (%s, %s)", r.Level, r.ScopeID)
}

func (s *PostgresStore) GetCheckpoint(ctx context.Context) (*model.SyncCheckpoint, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT last_campaign_index, last_ad_index, total_campaigns, total_ads_processed, rate_limit_hit, rate_limit_message, ts
		 FROM sync_checkpoints WHERE id = 1`)

	var cp model.SyncCheckpoint
	err := row.Scan(&cp.LastCampaignIndex, &cp.LastAdIndex, &cp.TotalCampaigns, &cp.TotalAdsProcessed, &cp.RateLimitHit, &cp.RateLimitMessage, &cp.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get checkpoint")
	}
	return &cp, nil
}

func (s *PostgresStore) PutCheckpoint(ctx context.Context, cp model.SyncCheckpoint) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_checkpoints
		    (id, last_campaign_index, last_ad_index, total_campaigns, total_ads_processed, rate_limit_hit, rate_limit_message, ts)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		    last_campaign_index = EXCLUDED.last_campaign_index,
		    last_ad_index       = EXCLUDED.last_ad_index,
		    total_campaigns     = EXCLUDED.total_campaigns,
		    total_ads_processed = EXCLUDED.total_ads_processed,
		    rate_limit_hit      = EXCLUDED.rate_limit_hit,
		    rate_limit_message  = EXCLUDED.rate_limit_message,
		    ts                  = EXCLUDED.ts`,
		cp.LastCampaignIndex, cp.LastAdIndex, cp.TotalCampaigns, cp.TotalAdsProcessed, cp.RateLimitHit, cp.RateLimitMessage, cp.Timestamp.UTC(),
	)
	return eris.Wrap(err, "postgres: put checkpoint")
}

func (s *PostgresStore) DeleteCheckpoint(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sync_checkpoints WHERE id = 1`)
	return eris.Wrap(err, "postgres: delete checkpoint")
}

func (s *PostgresStore) CreateRunSummary(ctx context.Context, sum model.RunSummary) (string, error) {
	id := sum.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_runs (id, kind, processed, succeeded, skipped, errors, rate_limited, message, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, string(sum.Kind), sum.Stats.Processed, sum.Stats.Succeeded, sum.Stats.Skipped, sum.Stats.Errors,
		sum.RateLimited, sum.Message, sum.StartedAt.UTC(), sum.FinishedAt.UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: create run summary")
	}
	return id, nil
}

func (s *PostgresStore) ListRunSummaries(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, processed, succeeded, skipped, errors, rate_limited, message, started_at, finished_at
		 FROM sync_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list run summaries")
	}
	defer rows.Close()

	var sums []model.RunSummary
	for rows.Next() {
		var sum model.RunSummary
		if err := rows.Scan(&sum.ID, &sum.Kind, &sum.Stats.Processed, &sum.Stats.Succeeded, &sum.Stats.Skipped,
			&sum.Stats.Errors, &sum.RateLimited, &sum.Message, &sum.StartedAt, &sum.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run summary")
		}
		sums = append(sums, sum)
	}
	return sums, eris.Wrap(rows.Err(), "postgres: iterate run summaries")
}
