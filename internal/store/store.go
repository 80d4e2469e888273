// Package store persists ads, weekly fact buckets, opportunity-ad mappings,
// materialized roll-ups, and sync bookkeeping. Three implementations share
// the Store interface: Postgres (pgx), SQLite (modernc), and an in-memory
// fake for tests.
//
// Mutations to buckets and roll-ups are expressed as single atomic upsert
// statements, never as read-then-write round trips, because the CRM driver
// and the provider driver touch overlapping rows concurrently.
package store

import (
	"context"
	"time"

	"github.com/sells-group/adsync/internal/model"
)

// Store is the persistence interface for the attribution pipeline.
type Store interface {
	// Ads. EnsureAd creates the ad on first sight and reports created=true;
	// an existing ad only gets its last-synced timestamp bumped, never its
	// locally-accumulated facts overwritten. Ad listings are ordered by
	// creation time then id so "first ad in campaign" is deterministic.
	EnsureAd(ctx context.Context, ad model.Ad) (created bool, err error)
	GetAd(ctx context.Context, adID string) (*model.Ad, error)
	ListAdsByCampaign(ctx context.Context, campaignID string) ([]model.Ad, error)
	ListAdsByAdSet(ctx context.Context, adSetID string) ([]model.Ad, error)
	ListCampaignIDs(ctx context.Context) ([]string, error)
	ListAdSetIDs(ctx context.Context) ([]string, error)

	// Weekly buckets. RecordFunnelEvent applies increment-typed updates in
	// one statement; RecordInsight merge-overwrites the provider fact family
	// only, leaving funnel facts untouched.
	EnsureBucket(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time) error
	RecordFunnelEvent(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time, inc model.FunnelIncrement) error
	RecordInsight(ctx context.Context, adID, weekID string, weekStart, weekEnd time.Time, ins model.Insight) error
	HasInsight(ctx context.Context, adID, weekID string) (bool, error)
	ListBucketsByAd(ctx context.Context, adID string) ([]model.WeeklyBucket, error)

	// Opportunity-ad mappings. CreateMapping is insert-once: a concurrent or
	// repeated create for the same opportunity id leaves the first record
	// in place. GetMapping returns (nil, nil) when absent.
	GetMapping(ctx context.Context, opportunityID string) (*model.OpportunityAdMapping, error)
	CreateMapping(ctx context.Context, m *model.OpportunityAdMapping) error
	UpdateMappingCounters(ctx context.Context, opportunityID string, countedCategories []string, leadWeekID string) error

	// Materialized roll-ups. PutRollup is a full merge-replace;
	// AppendRollupSnapshot adds a timestamped history row when the rollup
	// history flag is enabled.
	PutRollup(ctx context.Context, r model.Rollup) error
	GetRollup(ctx context.Context, level model.RollupLevel, scopeID string) (*model.Rollup, error)
	AppendRollupSnapshot(ctx context.Context, r model.Rollup) error

	// Provider sync checkpoint (single row). GetCheckpoint returns
	// (nil, nil) when no checkpoint exists.
	GetCheckpoint(ctx context.Context) (*model.SyncCheckpoint, error)
	PutCheckpoint(ctx context.Context, cp model.SyncCheckpoint) error
	DeleteCheckpoint(ctx context.Context) error

	// Run summaries, persisted as the last action of every run.
	CreateRunSummary(ctx context.Context, s model.RunSummary) (string, error)
	ListRunSummaries(ctx context.Context, limit int) ([]model.RunSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
