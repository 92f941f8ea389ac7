// Package pairing implements the Pairing Engine: deterministic multi-factor
// scoring of candidate wines against a dish, optional LLM augmentation, a
// fingerprint-keyed response cache, and an explainability record.
package pairing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cellarworks/cellar-intel/infrastructure/logging"
	"github.com/cellarworks/cellar-intel/internal/ai"
	"github.com/cellarworks/cellar-intel/internal/cachefabric"
	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/learning"
	"github.com/cellarworks/cellar-intel/internal/persistence"
)

const (
	fullCandidatePoolSize  = 50
	quickCandidatePoolSize = 15
	aiTopN                 = 5
	defaultMaxRecs         = 5
)

// Request is one GeneratePairings/QuickPairing call's inputs.
type Request struct {
	Dish             json.RawMessage
	Context          domain.PairingContext
	GuestPreferences domain.GuestPreferences
	Options          domain.PairingOptions
	UserID           string
}

// Result is the output of a pairing generation, cached and returned verbatim
// on a subsequent cache hit.
type Result struct {
	Recommendations []*domain.PairingRecommendation `json:"recommendations"`
	Explanation     *domain.Explanation              `json:"explanation"`
	Cached          bool                             `json:"cached"`
	GeneratedAt     time.Time                        `json:"generated_at"`
}

// Engine implements the Pairing Engine algorithm.
type Engine struct {
	store               *persistence.Store
	wines               *persistence.WineRepo
	pairing             *persistence.PairingRepo
	cache               *cachefabric.Fabric
	weights             *learning.WeightEngine
	aiProvider          ai.Provider
	disableExternalCalls bool
	logger              *logging.Logger
}

// NewEngine constructs an Engine. aiProvider may be nil, meaning AI
// augmentation is never attempted (forceAI requests fail AINotConfigured).
func NewEngine(store *persistence.Store, wines *persistence.WineRepo, pairingRepo *persistence.PairingRepo,
	cache *cachefabric.Fabric, weights *learning.WeightEngine, aiProvider ai.Provider, disableExternalCalls bool) *Engine {
	return &Engine{
		store:               store,
		wines:               wines,
		pairing:             pairingRepo,
		cache:               cache,
		weights:             weights,
		aiProvider:          aiProvider,
		disableExternalCalls: disableExternalCalls,
		logger:              logging.NewFromEnv("pairing-engine"),
	}
}

// GeneratePairings runs the full algorithm: traditional scoring, optional AI
// augmentation, session/recommendation/explanation persistence, and caching.
func (e *Engine) GeneratePairings(ctx context.Context, req Request) (*Result, error) {
	return e.run(ctx, req, false)
}

// QuickPairing is GeneratePairings without AI augmentation and over a
// smaller candidate pool; its cache key carries a quick=true tag.
func (e *Engine) QuickPairing(ctx context.Context, req Request) (*Result, error) {
	req.Options.Quick = true
	return e.run(ctx, req, true)
}

func (e *Engine) run(ctx context.Context, req Request, quick bool) (*Result, error) {
	dish, err := ParseDish(req.Dish)
	if err != nil || strings.TrimSpace(dish.Name) == "" {
		return nil, domain.ErrDishRequired
	}

	cacheKey := buildCacheKey(dish, req.Context, req.GuestPreferences, req.Options, quick)
	if e.cache != nil {
		var cached Result
		if hit, cacheErr := e.cache.Get(cacheKey, &cached); cacheErr == nil && hit {
			cached.Cached = true
			return &cached, nil
		}
	}

	poolSize := fullCandidatePoolSize
	if quick {
		poolSize = quickCandidatePoolSize
	}

	region := ""
	if len(req.GuestPreferences.PreferredRegions) == 1 {
		region = req.GuestPreferences.PreferredRegions[0]
	}
	var wineType domain.WineType
	if len(req.GuestPreferences.PreferredTypes) == 1 {
		wineType = req.GuestPreferences.PreferredTypes[0]
	}

	wines, err := e.wines.ListAvailableWines(ctx, region, wineType)
	if err != nil {
		return nil, fmt.Errorf("list available wines: %w", err)
	}

	candidates := make([]candidate, 0, len(wines))
	for _, w := range wines {
		if !passesPreferenceFilters(w, req.GuestPreferences) {
			continue
		}
		vintage, err := e.wines.GetLatestVintage(ctx, w.ID)
		if err != nil {
			vintage = &domain.Vintage{WineID: w.ID}
		}
		candidates = append(candidates, candidate{wine: w, vintage: vintage})
		if len(candidates) >= poolSize {
			break
		}
	}

	weights := domain.DefaultPairingWeights()
	if e.weights != nil {
		if derived, err := e.weights.GetEnhancedPairingWeights(ctx, 200); err == nil {
			weights = derived
		}
	}

	scored := make([]*domain.PairingRecommendation, 0, len(candidates))
	for _, c := range candidates {
		sub := computeSubScores(dish, c)
		rec := &domain.PairingRecommendation{
			WineID:     c.wine.ID,
			VintageID:  c.vintage.ID,
			SubScores:  sub,
			Total:      weightedTotal(sub, weights),
			Confidence: confidence(sub),
		}
		scored = append(scored, rec)
	}

	aiEnhanced := false
	if !quick {
		var err error
		aiEnhanced, err = e.applyAIAugmentation(ctx, dish, candidates, scored)
		if err != nil {
			if req.Options.ForceAI {
				return nil, err
			}
			e.logger.WithError(err).Warn("ai augmentation degraded to traditional scoring")
		}
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Total > scored[j].Total })

	threshold := req.Options.ConfidenceThreshold
	maxRecs := req.Options.MaxRecommendations
	if maxRecs <= 0 {
		maxRecs = defaultMaxRecs
	}

	var final []*domain.PairingRecommendation
	for _, rec := range scored {
		if rec.Confidence < threshold {
			continue
		}
		rec.AIEnhanced = aiEnhanced
		final = append(final, rec)
		if len(final) >= maxRecs {
			break
		}
	}

	explanation := buildExplanation(dish, final)
	now := time.Now().UTC()

	if err := e.persist(ctx, req, dish, quick, final, explanation); err != nil {
		return nil, fmt.Errorf("persist pairing: %w", err)
	}

	result := &Result{
		Recommendations: final,
		Explanation:      explanation,
		Cached:            false,
		GeneratedAt:       now,
	}

	if e.cache != nil {
		ttl := cacheTTL(req.Context, req.GuestPreferences, aiEnhanced)
		if err := e.cache.Set(cacheKey, result, ttl); err != nil {
			e.logger.WithError(err).Warn("pairing cache set failed")
		}
	}
	return result, nil
}

func (e *Engine) applyAIAugmentation(ctx context.Context, dish domain.Dish, candidates []candidate, scored []*domain.PairingRecommendation) (bool, error) {
	if e.disableExternalCalls {
		return false, nil
	}
	if e.aiProvider == nil {
		return false, domain.ErrAINotConfigured
	}

	n := aiTopN
	if n > len(candidates) {
		n = len(candidates)
	}
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, candidates[i].wine.Name)
	}
	if len(names) == 0 {
		return false, nil
	}

	prompt := ai.BuildPrompt(dish.Name, names)
	aiCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	scores, err := e.aiProvider.Score(aiCtx, prompt)
	if err != nil {
		return false, domain.ErrAIUnavailable
	}

	byWine := map[string]float64{}
	for i, name := range names {
		byWine[candidates[i].wine.ID] = name2score(scores, name)
	}

	for _, rec := range scored {
		aiScore, ok := byWine[rec.WineID]
		if !ok {
			continue
		}
		rec.SubScores.AIScore = &aiScore
		rec.Total = (rec.Total + aiScore) / 2
	}
	return true, nil
}

func name2score(scores *ai.Scores, name string) float64 {
	if scores == nil {
		return 0
	}
	return scores.ScoresByWine[name]
}

func buildExplanation(dish domain.Dish, recs []*domain.PairingRecommendation) *domain.Explanation {
	factors := topFactors(recs)
	summary := fmt.Sprintf("Paired %q against %d candidate wine(s); leading factors: %s.",
		dish.Name, len(recs), strings.Join(factors, ", "))
	return &domain.Explanation{
		EntityType: domain.ExplanationEntityPairingRecommendation,
		Summary:    summary,
		Factors:    factors,
	}
}

func topFactors(recs []*domain.PairingRecommendation) []string {
	if len(recs) == 0 {
		return nil
	}
	totals := map[string]float64{}
	for _, r := range recs {
		totals["style_match"] += r.SubScores.StyleMatch
		totals["flavor_harmony"] += r.SubScores.FlavorHarmony
		totals["texture_balance"] += r.SubScores.TextureBalance
		totals["regional_tradition"] += r.SubScores.RegionalTradition
		totals["seasonal_appropriateness"] += r.SubScores.SeasonalAppropriateness
	}
	type kv struct {
		k string
		v float64
	}
	var ranked []kv
	for k, v := range totals {
		ranked = append(ranked, kv{k, v})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].v != ranked[j].v {
			return ranked[i].v > ranked[j].v
		}
		return ranked[i].k < ranked[j].k
	})

	var out []string
	for i, r := range ranked {
		if i >= 3 {
			break
		}
		out = append(out, r.k)
	}
	return out
}

// persist writes the session, each recommendation, and each recommendation's
// explanation row atomically.
func (e *Engine) persist(ctx context.Context, req Request, dish domain.Dish, quick bool, recs []*domain.PairingRecommendation, explanation *domain.Explanation) error {
	return e.store.WithTransaction(ctx, func(ctx context.Context) error {
		session := &domain.PairingSession{
			UserID:   req.UserID,
			DishName: dish.Name,
			Quick:    quick,
			Cached:   false,
		}
		if err := e.pairing.CreateSession(ctx, session); err != nil {
			return err
		}
		for i, rec := range recs {
			rec.SessionID = session.ID
			rec.Ordinal = i + 1
			if req.Options.IncludeReasoning {
				rec.Reasoning = explanation.Summary
			}
			if err := e.pairing.CreateRecommendation(ctx, rec); err != nil {
				return err
			}
			row := *explanation
			row.EntityID = rec.ID
			if err := e.pairing.CreateExplanation(ctx, &row); err != nil {
				return err
			}
		}
		return nil
	})
}

// buildCacheKey canonicalizes the request into a stable fingerprint.
func buildCacheKey(dish domain.Dish, ctxFields domain.PairingContext, prefs domain.GuestPreferences, opts domain.PairingOptions, quick bool) string {
	sortedPrefRegions := append([]string{}, prefs.PreferredRegions...)
	sort.Strings(sortedPrefRegions)
	sortedDietary := append([]string{}, prefs.DietaryRestrictions...)
	sort.Strings(sortedDietary)
	sortedPreferredTypes := typesToStrings(prefs.PreferredTypes)
	sort.Strings(sortedPreferredTypes)
	sortedAvoidedTypes := typesToStrings(prefs.AvoidedTypes)
	sort.Strings(sortedAvoidedTypes)

	fields := []string{
		strings.ToLower(strings.TrimSpace(dish.Name)),
		strings.ToLower(dish.Cuisine),
		strings.ToLower(dish.Intensity),
		strings.ToLower(dish.Texture),
		strings.ToLower(dish.Season),
		strings.Join(dish.DominantFlavors, ","),
		strings.ToLower(ctxFields.Occasion),
		strconv.FormatBool(ctxFields.SpecialOccasion),
		strings.ToLower(ctxFields.Season),
		strings.Join(sortedPreferredTypes, ","),
		strings.Join(sortedAvoidedTypes, ","),
		strings.Join(sortedPrefRegions, ","),
		strings.Join(sortedDietary, ","),
		strconv.Itoa(opts.MaxRecommendations),
		strconv.FormatBool(quick),
	}
	return cachefabric.Fingerprint(fields...)
}

func typesToStrings(types []domain.WineType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// cacheTTL applies §4.2's TTL policy: rule reductions compound by minimum.
func cacheTTL(ctxFields domain.PairingContext, prefs domain.GuestPreferences, aiEnhanced bool) time.Duration {
	ttl := 24 * time.Hour
	if aiEnhanced {
		ttl = min(ttl, 12*time.Hour)
	}
	if ctxFields.SpecialOccasion {
		ttl = min(ttl, 6*time.Hour)
	}
	if len(prefs.DietaryRestrictions) >= 3 {
		ttl = min(ttl, 4*time.Hour)
	}
	if ctxFields.Season != "" {
		ttl = min(ttl, 8*time.Hour)
	}
	return ttl
}

func min(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
