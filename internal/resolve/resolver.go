// Package resolve assigns a single stable ad identity to each CRM
// opportunity from its inconsistent attribution signals, using tiered
// matching with descending confidence.
package resolve

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adsync/internal/model"
)

// Confidence levels per matching tier. Tier 2 scales with the similarity
// score and is capped at its tier ceiling.
const (
	confidenceDirectID     = 100
	confidenceNameCeiling  = 80
	confidenceCampaignOnly = 60

	// DefaultSimilarityThreshold is the minimum character-overlap score a
	// fuzzy name match must reach to be accepted.
	DefaultSimilarityThreshold = 0.7
)

// Directory is the subset of the store the resolver needs: the durable
// mapping record plus ad lookups for the matching tiers.
type Directory interface {
	GetMapping(ctx context.Context, opportunityID string) (*model.OpportunityAdMapping, error)
	CreateMapping(ctx context.Context, m *model.OpportunityAdMapping) error
	GetAd(ctx context.Context, adID string) (*model.Ad, error)
	ListAdsByCampaign(ctx context.Context, campaignID string) ([]model.Ad, error)
}

// Resolver resolves opportunities to ads and persists each decision exactly
// once, so every later observation of the same opportunity short-circuits to
// the stored mapping.
type Resolver struct {
	dir       Directory
	threshold float64
	log       *zap.Logger
	now       func() time.Time
}

// NewResolver creates a Resolver. A threshold <= 0 uses the default.
func NewResolver(dir Directory, threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Resolver{
		dir:       dir,
		threshold: threshold,
		log:       zap.L().Named("resolve"),
		now:       time.Now,
	}
}

// Resolve returns the mapping for opportunityID, creating it on first sight.
// A (nil, nil) return means no tier succeeded: the caller must not create
// funnel side effects and no mapping is persisted, so resolution is retried
// once more identity information becomes available.
//
// An empty opportunityID is caller misuse and fails immediately.
func (r *Resolver) Resolve(ctx context.Context, opportunityID string, signals model.Attribution) (*model.OpportunityAdMapping, error) {
	if opportunityID == "" {
		return nil, eris.New("resolve: opportunity id is required")
	}

	// Existing mappings are never re-derived, whatever the new signals say.
	existing, err := r.dir.GetMapping(ctx, opportunityID)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: lookup mapping %s", opportunityID)
	}
	if existing != nil {
		return existing, nil
	}

	mapping, err := r.match(ctx, opportunityID, signals)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		r.log.Debug("opportunity not resolved",
			zap.String("opportunity_id", opportunityID),
			zap.String("campaign_id", signals.CampaignID),
			zap.String("ad_name", signals.AdName),
		)
		return nil, nil
	}

	if err := r.dir.CreateMapping(ctx, mapping); err != nil {
		return nil, eris.Wrapf(err, "resolve: persist mapping %s", opportunityID)
	}

	r.log.Info("opportunity resolved",
		zap.String("opportunity_id", opportunityID),
		zap.String("ad_id", mapping.AdID),
		zap.String("method", string(mapping.Method)),
		zap.Float64("confidence", mapping.Confidence),
	)
	return mapping, nil
}

// match runs the three tiers in strict priority order, stopping at the first
// success.
func (r *Resolver) match(ctx context.Context, opportunityID string, signals model.Attribution) (*model.OpportunityAdMapping, error) {
	now := r.now().UTC()

	// Tier 1: provider-native ad id. The only tier immune to name drift.
	if signals.AdID != "" {
		ad, err := r.dir.GetAd(ctx, signals.AdID)
		if err != nil {
			return nil, eris.Wrapf(err, "resolve: lookup ad %s", signals.AdID)
		}
		if ad != nil {
			return &model.OpportunityAdMapping{
				OpportunityID: opportunityID,
				AdID:          ad.ID,
				CampaignID:    ad.CampaignID,
				Method:        model.ResolveDirectID,
				Confidence:    confidenceDirectID,
				CreatedAt:     now,
				UpdatedAt:     now,
			}, nil
		}
	}

	if signals.CampaignID == "" {
		return nil, nil
	}

	candidates, err := r.dir.ListAdsByCampaign(ctx, signals.CampaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: list ads for campaign %s", signals.CampaignID)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Tier 2: creative-name match within the campaign.
	if signals.AdName != "" {
		if ad, score := r.bestNameMatch(signals.AdName, candidates); ad != nil {
			confidence := score * confidenceNameCeiling
			if confidence > confidenceNameCeiling {
				confidence = confidenceNameCeiling
			}
			return &model.OpportunityAdMapping{
				OpportunityID: opportunityID,
				AdID:          ad.ID,
				CampaignID:    ad.CampaignID,
				Method:        model.ResolveCampaignAndName,
				Confidence:    confidence,
				CreatedAt:     now,
				UpdatedAt:     now,
			}, nil
		}
	}

	// Tier 3: campaign-only fallback. Ad-level precision is lost but the
	// lead still contributes to the right campaign total.
	first := candidates[0]
	return &model.OpportunityAdMapping{
		OpportunityID: opportunityID,
		AdID:          first.ID,
		CampaignID:    first.CampaignID,
		Method:        model.ResolveCampaignOnly,
		Confidence:    confidenceCampaignOnly,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// bestNameMatch prefers an exact normalized name match, then the best
// similarity score above the threshold. Returns (nil, 0) when nothing
// qualifies.
func (r *Resolver) bestNameMatch(name string, candidates []model.Ad) (*model.Ad, float64) {
	target := NormalizeName(name)
	if target == "" {
		return nil, 0
	}

	for i := range candidates {
		if NormalizeName(candidates[i].Name) == target {
			return &candidates[i], 1
		}
	}

	var best *model.Ad
	bestScore := 0.0
	for i := range candidates {
		score := Similarity(target, NormalizeName(candidates[i].Name))
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	if best == nil || bestScore <= r.threshold {
		return nil, 0
	}
	return best, bestScore
}
