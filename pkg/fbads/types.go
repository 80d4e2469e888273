package fbads

// Campaign is one advertising campaign in the account.
type Campaign struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// AdSet is one ad set (targeting group) under a campaign.
type AdSet struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CampaignID string `json:"campaign_id"`
}

// Ad is one creative, flattened with its parent names so callers never need
// a second lookup to label the hierarchy.
type Ad struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	AdSet struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"adset"`
	Campaign struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"campaign"`
	CreatedTime string `json:"created_time"`
}

// Insight is one reporting row of delivery metrics. The provider serializes
// every numeric field as a JSON string.
type Insight struct {
	DateStart   string  `json:"date_start"`
	DateStop    string  `json:"date_stop"`
	Spend       float64 `json:"spend,string"`
	Impressions int64   `json:"impressions,string"`
	Clicks      int64   `json:"clicks,string"`
	Reach       int64   `json:"reach,string"`
	CPM         float64 `json:"cpm,string"`
	CPC         float64 `json:"cpc,string"`
	CTR         float64 `json:"ctr,string"`
}

// Usage is the provider's rate-limit budget state, distilled from the
// response headers to the single worst percentage across all dimensions.
type Usage struct {
	// Percent is the max of call count, total time and CPU time usage across
	// the app-level and account-level budgets. 0 when no header was present.
	Percent float64
}

// paging is the Graph-style cursor envelope.
type paging struct {
	Cursors struct {
		After string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next"`
}

type listEnvelope[T any] struct {
	Data   []T    `json:"data"`
	Paging paging `json:"paging"`
}
