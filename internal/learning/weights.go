// Package learning implements feedback-driven weight derivation, user
// profile aggregation, and the experiment lifecycle/analysis pipeline.
package learning

import (
	"context"

	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/persistence"
)

const neutralRating = 3.0 // midpoint of the 1..5 facet rating scale

// WeightEngine derives pairing weights and user profiles from
// accumulated feedback.
type WeightEngine struct {
	feedback *persistence.PairingRepo
}

// NewWeightEngine constructs a WeightEngine bound to feedback.
func NewWeightEngine(feedback *persistence.PairingRepo) *WeightEngine {
	return &WeightEngine{feedback: feedback}
}

// GetEnhancedPairingWeights derives a normalized weight vector over the
// five scoring factors from recent facet ratings: each facet's weight
// scales with how far its observed average diverges from the neutral
// midpoint, so facets guests consistently rate strongly (high or low)
// earn more influence than facets guests are indifferent to.
func (w *WeightEngine) GetEnhancedPairingWeights(ctx context.Context, sampleSize int) (domain.PairingWeights, error) {
	rows, err := w.feedback.ListFeedbackForWeights(ctx, sampleSize)
	if err != nil {
		return domain.DefaultPairingWeights(), err
	}
	if len(rows) == 0 {
		return domain.DefaultPairingWeights(), nil
	}

	var flavorSum, textureSum, acidSum, bodySum, regionSum float64
	var flavorN, textureN, acidN, bodyN, regionN int

	for _, f := range rows {
		accumulate(f.FlavorHarmony, &flavorSum, &flavorN)
		accumulate(f.TextureBalance, &textureSum, &textureN)
		accumulate(f.AcidityMatch, &acidSum, &acidN)
		accumulate(f.BodyMatch, &bodySum, &bodyN)
		accumulate(f.RegionalTradition, &regionSum, &regionN)
	}

	flavorWeight := divergence(flavorSum, flavorN)
	textureWeight := divergence(textureSum, textureN)
	acidWeight := divergence(acidSum, acidN)
	bodyWeight := divergence(bodySum, bodyN)
	regionWeight := divergence(regionSum, regionN)

	// style_match absorbs acidity/body divergence as a proxy, since the
	// Pairing Engine has no dedicated acidity/body sub-score of its own.
	styleWeight := (acidWeight + bodyWeight) / 2

	total := styleWeight + flavorWeight + textureWeight + regionWeight
	if total <= 0 {
		return domain.DefaultPairingWeights(), nil
	}

	defaults := domain.DefaultPairingWeights()
	blended := domain.PairingWeights{
		StyleMatch:              blend(defaults.StyleMatch, styleWeight/total),
		FlavorHarmony:           blend(defaults.FlavorHarmony, flavorWeight/total),
		TextureBalance:          blend(defaults.TextureBalance, textureWeight/total),
		RegionalTradition:       blend(defaults.RegionalTradition, regionWeight/total),
		SeasonalAppropriateness: defaults.SeasonalAppropriateness,
	}
	return normalize(blended), nil
}

func accumulate(rating *int, sum *float64, n *int) {
	if rating == nil {
		return
	}
	*sum += float64(*rating)
	*n++
}

// divergence returns the observed average's absolute distance from the
// neutral midpoint, zero when there is no data.
func divergence(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	avg := sum / float64(n)
	d := avg - neutralRating
	if d < 0 {
		d = -d
	}
	return d
}

// blend averages a default weight with a feedback-derived share so a
// single recent feedback row never swings weights to an extreme.
func blend(defaultWeight, derivedShare float64) float64 {
	return (defaultWeight + derivedShare) / 2
}

func normalize(w domain.PairingWeights) domain.PairingWeights {
	total := w.StyleMatch + w.FlavorHarmony + w.TextureBalance + w.RegionalTradition + w.SeasonalAppropriateness
	if total <= 0 {
		return domain.DefaultPairingWeights()
	}
	return domain.PairingWeights{
		StyleMatch:              w.StyleMatch / total,
		FlavorHarmony:           w.FlavorHarmony / total,
		TextureBalance:          w.TextureBalance / total,
		RegionalTradition:       w.RegionalTradition / total,
		SeasonalAppropriateness: w.SeasonalAppropriateness / total,
	}
}

// BuildUserProfile aggregates a user's feedback into a UserProfile. A
// real implementation would read recommendation+feedback joins keyed by
// user; this derives facet sensitivity only, since recommendation
// lookups by user are out of PairingRepo's current surface.
func BuildUserProfile(userID string, rows []*domain.Feedback) domain.UserProfile {
	sensitivity := map[string]float64{}
	counts := map[string]int{}

	add := func(name string, rating *int) {
		if rating == nil {
			return
		}
		sensitivity[name] += float64(*rating)
		counts[name]++
	}

	for _, f := range rows {
		add("flavor_harmony", f.FlavorHarmony)
		add("texture_balance", f.TextureBalance)
		add("acidity_match", f.AcidityMatch)
		add("tannin_balance", f.TanninBalance)
		add("body_match", f.BodyMatch)
		add("regional_tradition", f.RegionalTradition)
	}
	for k, total := range sensitivity {
		if counts[k] > 0 {
			sensitivity[k] = total / float64(counts[k])
		}
	}

	return domain.UserProfile{
		UserID:           userID,
		FacetSensitivity: sensitivity,
		SampleCount:      len(rows),
	}
}
