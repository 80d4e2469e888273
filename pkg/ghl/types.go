package ghl

import "time"

// Attribution is one marketing touch the CRM credits with producing an
// opportunity. Identity fields are whatever the tracking pixel captured;
// any of them may be empty.
type Attribution struct {
	CampaignID   string `json:"campaignId,omitempty"`
	CampaignName string `json:"utmCampaign,omitempty"`
	AdID         string `json:"adId,omitempty"`
	AdName       string `json:"adName,omitempty"`
	AdSetID      string `json:"adGroupId,omitempty"`
	AdSetName    string `json:"adGroupName,omitempty"`
	UTMSource    string `json:"utmSource,omitempty"`
	UTMMedium    string `json:"utmMedium,omitempty"`
	UTMContent   string `json:"utmContent,omitempty"`
	IsLatest     bool   `json:"isLatest,omitempty"`
}

// Opportunity is a CRM pipeline record as returned by the search endpoint.
type Opportunity struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	PipelineID      string        `json:"pipelineId"`
	PipelineStageID string        `json:"pipelineStageId"`
	Status          string        `json:"status"`
	MonetaryValue   float64       `json:"monetaryValue"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	Attributions    []Attribution `json:"attributions"`
}

// PipelineStage is one stage of a CRM pipeline. Stage names are the
// human-entered labels downstream classification keys off.
type PipelineStage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Pipeline is a CRM sales pipeline with its ordered stages.
type Pipeline struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Stages []PipelineStage `json:"stages"`
}

// SearchRequest is one page of an opportunity search.
type SearchRequest struct {
	LocationID string `json:"location_id"`
	PipelineID string `json:"pipeline_id,omitempty"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

// SearchMeta carries pagination state for a search response. NextPage is 0
// when the returned page is the last one.
type SearchMeta struct {
	Total       int `json:"total"`
	CurrentPage int `json:"currentPage"`
	NextPage    int `json:"nextPage"`
}

// SearchResponse is one page of opportunity search results.
type SearchResponse struct {
	Opportunities []Opportunity `json:"opportunities"`
	Meta          SearchMeta    `json:"meta"`
}

// PrimaryAttribution picks the single attribution record the resolver should
// trust: the one flagged as latest, else the last record in CRM order.
// Returns nil when the opportunity has no attributions at all.
func PrimaryAttribution(opp Opportunity) *Attribution {
	if len(opp.Attributions) == 0 {
		return nil
	}
	for i := range opp.Attributions {
		if opp.Attributions[i].IsLatest {
			return &opp.Attributions[i]
		}
	}
	return &opp.Attributions[len(opp.Attributions)-1]
}
