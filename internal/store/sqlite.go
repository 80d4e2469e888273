package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/adsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ads (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	adset_id       TEXT NOT NULL DEFAULT '',
	adset_name     TEXT NOT NULL DEFAULT '',
	campaign_id    TEXT NOT NULL DEFAULT '',
	campaign_name  TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	last_synced_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS weekly_buckets (
	ad_id          TEXT NOT NULL,
	week_id        TEXT NOT NULL,
	week_start     DATETIME NOT NULL,
	week_end       DATETIME NOT NULL,
	spend          REAL NOT NULL DEFAULT 0,
	impressions    INTEGER NOT NULL DEFAULT 0,
	clicks         INTEGER NOT NULL DEFAULT 0,
	reach          INTEGER NOT NULL DEFAULT 0,
	cpm            REAL NOT NULL DEFAULT 0,
	cpc            REAL NOT NULL DEFAULT 0,
	ctr            REAL NOT NULL DEFAULT 0,
	has_insight    INTEGER NOT NULL DEFAULT 0,
	leads          INTEGER NOT NULL DEFAULT 0,
	bookings       INTEGER NOT NULL DEFAULT 0,
	calls          INTEGER NOT NULL DEFAULT 0,
	deposits       INTEGER NOT NULL DEFAULT 0,
	cash_collected INTEGER NOT NULL DEFAULT 0,
	cash_amount    REAL NOT NULL DEFAULT 0,
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (ad_id, week_id)
);

CREATE TABLE IF NOT EXISTS opportunity_ad_mappings (
	opportunity_id     TEXT PRIMARY KEY,
	ad_id              TEXT NOT NULL,
	campaign_id        TEXT NOT NULL DEFAULT '',
	method             TEXT NOT NULL,
	confidence         REAL NOT NULL DEFAULT 0,
	counted_categories TEXT NOT NULL DEFAULT '[]',
	lead_week_id       TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rollups (
	level      TEXT NOT NULL,
	scope_id   TEXT NOT NULL,
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (level, scope_id)
);

CREATE TABLE IF NOT EXISTS rollup_history (
	id         TEXT PRIMARY KEY,
	level      TEXT NOT NULL,
	scope_id   TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_checkpoints (
	id                  INTEGER PRIMARY KEY CHECK (id = 1),
	last_campaign_index INTEGER NOT NULL,
	last_ad_index       INTEGER NOT NULL,
	total_campaigns     INTEGER NOT NULL,
	total_ads_processed INTEGER NOT NULL,
	rate_limit_hit      INTEGER NOT NULL DEFAULT 0,
	rate_limit_message  TEXT NOT NULL DEFAULT '',
	ts                  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	processed    INTEGER NOT NULL DEFAULT 0,
	succeeded    INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	errors       INTEGER NOT NULL DEFAULT 0,
	rate_limited INTEGER NOT NULL DEFAULT 0,
	message      TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ads_campaign ON ads(campaign_id);
CREATE INDEX IF NOT EXISTS idx_ads_adset ON ads(adset_id);
CREATE INDEX IF NOT EXISTS idx_buckets_week ON weekly_buckets(week_id);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON sync_runs(kind, started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsureAd(ctx context.Context, ad model.Ad) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ads (id, name, adset_id, adset_name, campaign_id, campaign_name, created_at, last_synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		ad.ID, ad.Name, ad.AdSetID, ad.AdSetName, ad.CampaignID, ad.CampaignName, now, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: ensure ad %s", ad.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return true, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE ads SET last_synced_at = ? WHERE id = ?`, now, ad.ID)
	return false, eris.Wrapf(err, "sqlite: touch ad %s", ad.ID)
}

const adColumns = `id, name, adset_id, adset_name, campaign_id, campaign_name, created_at, last_synced_at`

func (s *SQLiteStore) GetAd(ctx context.Context, adID string) (*model.Ad, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+adColumns+` FROM ads WHERE id = ?`, adID)

	var ad model.Ad
	err := row.Scan(&ad.ID, &ad.Name, &ad.AdSetID, &ad.AdSetName, &ad.CampaignID, &ad.CampaignName, &ad.CreatedAt, &ad.LastSyncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get ad %s", adID)
	}
	return &ad, nil
}

func (s *SQLiteStore) ListAdsByCampaign(ctx context.Context, campaignID string) ([]model.Ad, error) {
	return s.listAds(ctx, `campaign_id`, campaignID)
}

func (s *SQLiteStore) ListAdsByAdSet(ctx context.Context, adSetID string) ([]model.Ad, error) {
	return s.listAds(ctx, `adset_id`, adSetID)
}

func (s *SQLiteStore) listAds(ctx context.Context, col, val string) ([]model.Ad, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+adColumns+` FROM ads WHERE `+col+` = ? ORDER BY created_at, id`, val)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list ads by %s", col)
	}
	defer rows.Close()

	var ads []model.Ad
	for rows.Next() {
		var ad model.Ad
		if err := rows.Scan(&ad.ID, &ad.Name, &ad.AdSetID, &ad.AdSetName, &ad.CampaignID, &ad.CampaignName, &ad.CreatedAt, &ad.LastSyncedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ad")
		}
		ads = append(ads, ad)
	}
	return ads, eris.Wrap(rows.Err(), "sqlite: iterate ads")
}

func (s *SQLiteStore) ListCampaignIDs(ctx context.Context) ([]string, error) {
	return s.listDistinct(ctx, `campaign_id`)
}

func (s *SQLiteStore) ListAdSetIDs(ctx context.Context) ([]string, error) {
	return s.listDistinct(ctx, `adset_id`)
}

func (s *SQLiteStore) listDistinct(ctx context.Context, col string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT `+col+` FROM ads WHERE `+col+` != '' ORDER BY `+col)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list distinct %s", col)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate ids")
}

func (s *SQLiteStore) EnsureBucket(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO weekly_buckets (ad_id, week_id, week_start, week_end, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(ad_id, week_id) DO NOTHING`,
		adID, weekID, weekStart.UTC(), weekEnd.UTC(), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: ensure bucket (%s, %s)", adID, weekID)
}

func (s *SQLiteStore) RecordFunnelEvent(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time, inc model.FunnelIncrement) error {
	// Single upsert with increment-typed updates so concurrent events
	// landing in the same bucket never race-overwrite each other.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO weekly_buckets
		    (ad_id, week_id, week_start, week_end, leads, bookings, calls, deposits, cash_collected, cash_amount, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ad_id, week_id) DO UPDATE SET
		    leads          = leads + excluded.leads,
		    bookings       = bookings + excluded.bookings,
		    calls          = calls + excluded.calls,
		    deposits       = deposits + excluded.deposits,
		    cash_collected = cash_collected + excluded.cash_collected,
		    cash_amount    = cash_amount + excluded.cash_amount,
		    updated_at     = excluded.updated_at`,
		adID, weekID, weekStart.UTC(), weekEnd.UTC(),
		inc.Leads, inc.Bookings, inc.Calls, inc.Deposits, inc.CashCollected, inc.CashAmount,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: record funnel event (%s, %s)", adID, weekID)
}

func (s *SQLiteStore) RecordInsight(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time, ins model.Insight) error {
	// Overwrite semantics for provider facts only; funnel columns are left
	// alone so the two drivers can touch the same row concurrently.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO weekly_buckets
		    (ad_id, week_id, week_start, week_end, spend, impressions, clicks, reach, cpm, cpc, ctr, has_insight, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		 ON CONFLICT(ad_id, week_id) DO UPDATE SET
		    spend       = excluded.spend,
		    impressions = excluded.impressions,
		    clicks      = excluded.clicks,
		    reach       = excluded.reach,
		    cpm         = excluded.cpm,
		    cpc         = excluded.cpc,
		    ctr         = excluded.ctr,
		    has_insight = 1,
		    updated_at  = excluded.updated_at`,
		adID, weekID, weekStart.UTC(), weekEnd.UTC(),
		ins.Spend, ins.Impressions, ins.Clicks, ins.Reach, ins.CPM, ins.CPC, ins.CTR,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: record insight (%s, %s)", adID, weekID)
}

func (s *SQLiteStore) HasInsight(ctx context.Context, adID, weekID string) (bool, error) {
	var has int
	err := s.db.QueryRowContext(ctx,
		`SELECT has_insight FROM weekly_buckets WHERE ad_id = ? AND week_id = ?`,
		adID, weekID,
	).Scan(&has)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: has insight (%s, %s)", adID, weekID)
	}
	return has != 0, nil
}

const bucketColumns = `ad_id, week_id, week_start, week_end, spend, impressions, clicks, reach, cpm, cpc, ctr, has_insight, leads, bookings, calls, deposits, cash_collected, cash_amount, updated_at`

func (s *SQLiteStore) ListBucketsByAd(ctx context.Context, adID string) ([]model.WeeklyBucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bucketColumns+` FROM weekly_buckets WHERE ad_id = ? ORDER BY week_start`, adID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list buckets for ad %s", adID)
	}
	defer rows.Close()

	var buckets []model.WeeklyBucket
	for rows.Next() {
		var b model.WeeklyBucket
		var hasInsight int
		if err := rows.Scan(&b.AdID, &b.WeekID, &b.WeekStart, &b.WeekEnd,
			&b.Spend, &b.Impressions, &b.Clicks, &b.Reach, &b.CPM, &b.CPC, &b.CTR, &hasInsight,
			&b.Leads, &b.Bookings, &b.Calls, &b.Deposits, &b.CashCollected, &b.CashAmount, &b.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bucket")
		}
		b.HasInsight = hasInsight != 0
		buckets = append(buckets, b)
	}
	return buckets, eris.Wrap(rows.Err(), "sqlite: iterate buckets")
}

func (s *SQLiteStore) GetMapping(ctx context.Context, opportunityID string) (*model.OpportunityAdMapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT opportunity_id, ad_id, campaign_id, method, confidence, counted_categories, lead_week_id, created_at, updated_at
		 FROM opportunity_ad_mappings WHERE opportunity_id = ?`,
		opportunityID,
	)

	var m model.OpportunityAdMapping
	var counted string
	err := row.Scan(&m.OpportunityID, &m.AdID, &m.CampaignID, &m.Method, &m.Confidence, &counted, &m.LeadWeekID, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get mapping %s", opportunityID)
	}
	if err := json.Unmarshal([]byte(counted), &m.CountedCategories); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal counted categories %s", opportunityID)
	}
	return &m, nil
}

func (s *SQLiteStore) CreateMapping(ctx context.Context, m *model.OpportunityAdMapping) error {
	counted, err := json.Marshal(m.CountedCategories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal counted categories")
	}
	if m.CountedCategories == nil {
		counted = []byte("[]")
	}

	// Insert-once: an existing mapping is the durable decision record and
	// is never replaced.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO opportunity_ad_mappings
		    (opportunity_id, ad_id, campaign_id, method, confidence, counted_categories, lead_week_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(opportunity_id) DO NOTHING`,
		m.OpportunityID, m.AdID, m.CampaignID, string(m.Method), m.Confidence, string(counted), m.LeadWeekID, m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: create mapping %s", m.OpportunityID)
}

func (s *SQLiteStore) UpdateMappingCounters(ctx context.Context, opportunityID string, countedCategories []string, leadWeekID string) error {
	counted, err := json.Marshal(countedCategories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal counted categories")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunity_ad_mappings
		 SET counted_categories = ?, lead_week_id = ?, updated_at = ?
		 WHERE opportunity_id = ?`,
		string(counted), leadWeekID, time.Now().UTC(), opportunityID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update mapping counters %s", opportunityID)
	}
	return checkRowsAffected(res, "mapping", opportunityID)
}

func (s *SQLiteStore) PutRollup(ctx context.Context, r model.Rollup) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rollup")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rollups (level, scope_id, payload, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(level, scope_id) DO UPDATE SET
		    payload = excluded.payload, updated_at = excluded.updated_at`,
		string(r.Level), r.ScopeID, string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put rollup (%s, %s)", r.Level, r.ScopeID)
}

func (s *SQLiteStore) GetRollup(ctx context.Context, level model.RollupLevel, scopeID string) (*model.Rollup, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM rollups WHERE level = ? AND scope_id = ?`,
		string(level), scopeID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get rollup (%s, %s)", level, scopeID)
	}

	var r model.Rollup
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal rollup")
	}
	return &r, nil
}

func (s *SQLiteStore) AppendRollupSnapshot(ctx context.Context, r model.Rollup) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rollup snapshot")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rollup_history (id, level, scope_id, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), string(r.Level), r.ScopeID, string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: append rollup snapshot (%s, %s)", r.Level, r.ScopeID)
}

func (s *SQLiteStore) GetCheckpoint(ctx context.Context) (*model.SyncCheckpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT last_campaign_index, last_ad_index, total_campaigns, total_ads_processed, rate_limit_hit, rate_limit_message, ts
		 FROM sync_checkpoints WHERE id = 1`,
	)

	var cp model.SyncCheckpoint
	var hit int
	err := row.Scan(&cp.LastCampaignIndex, &cp.LastAdIndex, &cp.TotalCampaigns, &cp.TotalAdsProcessed, &hit, &cp.RateLimitMessage, &cp.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get checkpoint")
	}
	cp.RateLimitHit = hit != 0
	return &cp, nil
}

func (s *SQLiteStore) PutCheckpoint(ctx context.Context, cp model.SyncCheckpoint) error {
	hit := 0
	if cp.RateLimitHit {
		hit = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_checkpoints
		    (id, last_campaign_index, last_ad_index, total_campaigns, total_ads_processed, rate_limit_hit, rate_limit_message, ts)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		    last_campaign_index = excluded.last_campaign_index,
		    last_ad_index       = excluded.last_ad_index,
		    total_campaigns     = excluded.total_campaigns,
		    total_ads_processed = excluded.total_ads_processed,
		    rate_limit_hit      = excluded.rate_limit_hit,
		    rate_limit_message  = excluded.rate_limit_message,
		    ts                  = excluded.ts`,
		cp.LastCampaignIndex, cp.LastAdIndex, cp.TotalCampaigns, cp.TotalAdsProcessed, hit, cp.RateLimitMessage, cp.Timestamp.UTC(),
	)
	return eris.Wrap(err, "sqlite: put checkpoint")
}

func (s *SQLiteStore) DeleteCheckpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_checkpoints WHERE id = 1`)
	return eris.Wrap(err, "sqlite: delete checkpoint")
}

func (s *SQLiteStore) CreateRunSummary(ctx context.Context, sum model.RunSummary) (string, error) {
	id := sum.ID
	if id == "" {
		id = uuid.New().String()
	}
	rateLimited := 0
	if sum.RateLimited {
		rateLimited = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, kind, processed, succeeded, skipped, errors, rate_limited, message, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(sum.Kind), sum.Stats.Processed, sum.Stats.Succeeded, sum.Stats.Skipped, sum.Stats.Errors,
		rateLimited, sum.Message, sum.StartedAt.UTC(), sum.FinishedAt.UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: create run summary")
	}
	return id, nil
}

func (s *SQLiteStore) ListRunSummaries(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, processed, succeeded, skipped, errors, rate_limited, message, started_at, finished_at
		 FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list run summaries")
	}
	defer rows.Close()

	var sums []model.RunSummary
	for rows.Next() {
		var sum model.RunSummary
		var rateLimited int
		if err := rows.Scan(&sum.ID, &sum.Kind, &sum.Stats.Processed, &sum.Stats.Succeeded, &sum.Stats.Skipped,
			&sum.Stats.Errors, &rateLimited, &sum.Message, &sum.StartedAt, &sum.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run summary")
		}
		sum.RateLimited = rateLimited != 0
		sums = append(sums, sum)
	}
	return sums, eris.Wrap(rows.Err(), "sqlite: iterate run summaries")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
