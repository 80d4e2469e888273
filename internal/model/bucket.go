package model

import "time"

// WeeklyBucket holds the facts for one (ad, week) pair. Two fact families
// share the row: provider facts (spend, impressions, ...) written as
// idempotent snapshots by the ad sync, and funnel facts (leads, deposits,
// ...) written as atomic increments by the CRM sync. The week ID is the
// canonical "YYYY-MM-DD_YYYY-MM-DD" Monday-Sunday range string.
type WeeklyBucket struct {
	AdID      string    `json:"ad_id"`
	WeekID    string    `json:"week_id"`
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`

	// Provider facts (overwrite-on-refetch).
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Reach       int64   `json:"reach"`
	CPM         float64 `json:"cpm"`
	CPC         float64 `json:"cpc"`
	CTR         float64 `json:"ctr"`
	HasInsight  bool    `json:"has_insight"`

	// Funnel facts (increment-on-observe).
	Leads         int64   `json:"leads"`
	Bookings      int64   `json:"bookings"`
	Calls         int64   `json:"calls"`
	Deposits      int64   `json:"deposits"`
	CashCollected int64   `json:"cash_collected"`
	CashAmount    float64 `json:"cash_amount"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Insight is one week of provider-reported delivery metrics for an ad.
// Refetches of a fixed historical week are idempotent snapshots, so these
// fields are merged with overwrite semantics rather than incremented.
type Insight struct {
	WeekID      string  `json:"week_id"`
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Reach       int64   `json:"reach"`
	CPM         float64 `json:"cpm"`
	CPC         float64 `json:"cpc"`
	CTR         float64 `json:"ctr"`
}

// FunnelIncrement describes one atomic funnel mutation against a bucket.
// Fields are deltas, applied in a single increment-typed write.
type FunnelIncrement struct {
	Leads         int64
	Bookings      int64
	Calls         int64
	Deposits      int64
	CashCollected int64
	CashAmount    float64
}
