// Package model defines the domain types shared across the sync pipeline.
package model

import "time"

// Ad is a single advertising creative as reported by the ad provider.
// The ID is provider-assigned and immutable; descriptive fields may drift
// between syncs. CRM-derived facts never live here; they live in the
// per-week buckets keyed by this ad's ID.
type Ad struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AdSetID      string    `json:"adset_id"`
	AdSetName    string    `json:"adset_name"`
	CampaignID   string    `json:"campaign_id"`
	CampaignName string    `json:"campaign_name"`
	CreatedAt    time.Time `json:"created_at"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// RollupLevel identifies which tier of the creative hierarchy a rollup
// document materializes.
type RollupLevel string

const (
	RollupAdSet    RollupLevel = "adset"
	RollupCampaign RollupLevel = "campaign"
)

// Rollup is a materialized view of all facts summed across the child ads of
// an ad set or campaign. It is fully regenerable from leaf facts and is
// never read back into leaf-fact computation.
type Rollup struct {
	ScopeID   string      `json:"scope_id"`
	Level     RollupLevel `json:"level"`
	Name      string      `json:"name"`
	AdCount   int         `json:"ad_count"`
	WeekCount int         `json:"week_count"`

	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Reach       int64   `json:"reach"`

	Leads        int64   `json:"leads"`
	Bookings     int64   `json:"bookings"`
	Calls        int64   `json:"calls"`
	Deposits     int64   `json:"deposits"`
	CashCollected int64  `json:"cash_collected"`
	CashAmount   float64 `json:"cash_amount"`

	Profit float64 `json:"profit"`
	CPL    float64 `json:"cpl"`
	CPB    float64 `json:"cpb"`
	CPA    float64 `json:"cpa"`
	ROI    float64 `json:"roi"`

	// Successive-stage conversion rates; each is 0 when its denominator is 0.
	LeadToBookingRate    float64 `json:"lead_to_booking_rate"`
	BookingToDepositRate float64 `json:"booking_to_deposit_rate"`
	DepositToCashRate    float64 `json:"deposit_to_cash_rate"`

	// Averages derived from totals, not from averaging per-ad averages.
	CPM float64 `json:"cpm"`
	CPC float64 `json:"cpc"`
	CTR float64 `json:"ctr"`

	FirstWeekID string    `json:"first_week_id,omitempty"`
	LastWeekID  string    `json:"last_week_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
