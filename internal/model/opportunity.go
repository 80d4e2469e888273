package model

import "time"

// Attribution is one CRM-recorded marketing touch credited with producing an
// opportunity. Any of the identity fields may be empty; the resolver decides
// which signal to trust.
type Attribution struct {
	AdID         string `json:"ad_id,omitempty"`
	AdName       string `json:"ad_name,omitempty"`
	AdSetID      string `json:"adset_id,omitempty"`
	AdSetName    string `json:"adset_name,omitempty"`
	CampaignID   string `json:"campaign_id,omitempty"`
	CampaignName string `json:"campaign_name,omitempty"`
	UTMSource    string `json:"utm_source,omitempty"`
	UTMMedium    string `json:"utm_medium,omitempty"`
	UTMContent   string `json:"utm_content,omitempty"`
	IsLatest     bool   `json:"is_latest,omitempty"`
}

// ResolutionMethod records which matching tier produced a mapping.
type ResolutionMethod string

const (
	ResolveDirectID        ResolutionMethod = "direct_ad_id"
	ResolveCampaignAndName ResolutionMethod = "campaign_and_name"
	ResolveCampaignOnly    ResolutionMethod = "campaign_only"
)

// OpportunityAdMapping is the durable decision record binding an opportunity
// to a single ad. Created at most once per opportunity and never overwritten
// by a lower-confidence resolution; every later observation of the same
// opportunity short-circuits to this record, which is what makes funnel
// counting at-most-once.
type OpportunityAdMapping struct {
	OpportunityID string           `json:"opportunity_id"`
	AdID          string           `json:"ad_id"`
	CampaignID    string           `json:"campaign_id"`
	Method        ResolutionMethod `json:"method"`
	Confidence    float64          `json:"confidence"`

	// CountedCategories lists funnel categories already applied to a bucket
	// for this opportunity, enforcing at-most-once per (opportunity, category).
	CountedCategories []string `json:"counted_categories"`

	LeadWeekID string    `json:"lead_week_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Counted reports whether the given category was already applied.
func (m *OpportunityAdMapping) Counted(category string) bool {
	for _, c := range m.CountedCategories {
		if c == category {
			return true
		}
	}
	return false
}
