package model

import "time"

// SyncCheckpoint is the resumable cursor for the provider sync traversal.
// It records the last fully-processed (campaign, ad) pair; its presence on
// startup means "resume here" and its absence means "start from the top".
type SyncCheckpoint struct {
	LastCampaignIndex int       `json:"last_campaign_index"`
	LastAdIndex       int       `json:"last_ad_index"`
	TotalCampaigns    int       `json:"total_campaigns"`
	TotalAdsProcessed int       `json:"total_ads_processed"`
	RateLimitHit      bool      `json:"rate_limit_hit"`
	RateLimitMessage  string    `json:"rate_limit_message,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// RunKind distinguishes which driver produced a run summary.
type RunKind string

const (
	RunCRMSync      RunKind = "crm_sync"
	RunProviderSync RunKind = "provider_sync"
	RunRollupSweep  RunKind = "rollup_sweep"
	RunBackfill     RunKind = "backfill"
)

// RunStats is the structured outcome of one sync run. Partial failures are
// absorbed into Errors rather than escalated, so a run that "completed"
// carries these counts as the source of truth for operators.
type RunStats struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// RunSummary is persisted as the last action of every run.
type RunSummary struct {
	ID          string    `json:"id"`
	Kind        RunKind   `json:"kind"`
	Stats       RunStats  `json:"stats"`
	RateLimited bool      `json:"rate_limited"`
	Message     string    `json:"message,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
