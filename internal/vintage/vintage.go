// Package vintage implements Vintage Intelligence: weather-adjusted
// quality scoring, template summaries, and procurement recommendations
// for a single wine vintage.
package vintage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cellarworks/cellar-intel/infrastructure/logging"
	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/persistence"
	"github.com/cellarworks/cellar-intel/internal/weather"
)

// Engine enriches a wine's latest vintage with weather analysis,
// quality scoring, and procurement advice.
type Engine struct {
	fetcher *weather.Fetcher
	wines   *persistence.WineRepo
	logger  *logging.Logger

	mu                sync.Mutex
	processedVintages map[string]*domain.EnrichmentResult
}

// NewEngine constructs a vintage intelligence Engine.
func NewEngine(fetcher *weather.Fetcher, wines *persistence.WineRepo) *Engine {
	return &Engine{
		fetcher:           fetcher,
		wines:             wines,
		logger:            logging.NewFromEnv("vintage-intelligence"),
		processedVintages: make(map[string]*domain.EnrichmentResult),
	}
}

// EnrichWineData runs the 7-step enrichment contract for one vintage of
// wine, memoizing by (normalizedRegion, year) for idempotence within the
// process lifetime.
func (e *Engine) EnrichWineData(ctx context.Context, wine *domain.Wine, vintage *domain.Vintage) (*domain.EnrichmentResult, error) {
	region := weatherRegion(wine.Region)
	memoKey := fmt.Sprintf("%s_%d", region, vintage.Year)

	e.mu.Lock()
	if cached, ok := e.processedVintages[memoKey]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	analysis, _, err := e.fetcher.Analyze(ctx, region, "", vintage.Year)
	if err != nil {
		return nil, err
	}

	var base float64 = 75
	if vintage.CriticScore != nil {
		base = *vintage.CriticScore
	} else if vintage.QualityScore != nil {
		base = *vintage.QualityScore
	}

	quality := base
	var summary string
	var procurement *domain.ProcurementRecommendation

	if analysis != nil {
		quality = adjustQuality(base, analysis)
		summary = templateSummary(analysis, wine.Producer, vintage.Year)
		procurement = recommendProcurement(analysis)
	} else {
		summary = fmt.Sprintf("%s %d: no weather data available; quality reflects prior scoring only.", wine.Producer, vintage.Year)
	}

	result := &domain.EnrichmentResult{
		WeatherAnalysis: analysis,
		VintageSummary:  summary,
		QualityScore:    quality,
		ProcurementRec:  procurement,
		EnrichedAt:      time.Now().UTC(),
	}

	e.mu.Lock()
	e.processedVintages[memoKey] = result
	e.mu.Unlock()

	e.persist(vintage.ID, result)
	return result, nil
}

// persist is best-effort: a failure here must never surface to the
// caller of EnrichWineData, since enrichment rides atop receive().
func (e *Engine) persist(vintageID string, result *domain.EnrichmentResult) {
	var weatherJSON, procurementJSON string
	if result.WeatherAnalysis != nil {
		if b, err := json.Marshal(result.WeatherAnalysis); err == nil {
			weatherJSON = string(b)
		}
	}
	if result.ProcurementRec != nil {
		if b, err := json.Marshal(result.ProcurementRec); err == nil {
			procurementJSON = string(b)
		}
	}
	weatherScore := 0.0
	if result.WeatherAnalysis != nil {
		weatherScore = result.WeatherAnalysis.OverallScore
	}
	if err := e.wines.UpdateVintageEnrichment(context.Background(), vintageID, result.QualityScore, weatherScore, weatherJSON, procurementJSON); err != nil {
		e.logger.WithError(err).Warn("persist vintage enrichment")
	}
}

func weatherRegion(region string) string {
	return weather.NormalizeRegion(region)
}

// adjustQuality applies the weather-adjusted quality bonus/penalty rules.
func adjustQuality(base float64, a *domain.WeatherAnalysis) float64 {
	adjusted := base
	switch {
	case a.OverallScore >= 85 && a.Ripeness >= 4.5 && a.Acidity >= 4.5:
		adjusted += 10
	case a.OverallScore <= 60 || a.Ripeness <= 2.5 || a.Acidity <= 2.5 || a.DiseasePressure <= 2.5:
		adjusted -= 10
	}
	if a.Acidity >= 4.5 {
		adjusted += 2
	}
	if a.Ripeness >= 4.5 {
		adjusted += 2
	}
	if adjusted < 50 {
		adjusted = 50
	}
	if adjusted > 100 {
		adjusted = 100
	}
	return adjusted
}

func templateSummary(a *domain.WeatherAnalysis, producer string, year int) string {
	var conditions string
	switch {
	case a.GDD < 1200:
		conditions = "a cooler growing season"
	case a.GDD <= 1600:
		conditions = "an ideal growing season"
	default:
		conditions = "a warm growing season"
	}

	var advice string
	switch {
	case a.OverallScore >= 85:
		advice = "rewards patient cellaring"
	case a.OverallScore >= 70:
		advice = "is in its drinking pleasure window"
	default:
		advice = "is best approached now"
	}

	return fmt.Sprintf("%s %d saw %s (GDD %.0f, diurnal range %.1f°C); overall rated %.0f/100, and %s.",
		producer, year, conditions, a.GDD, a.DiurnalRange, a.OverallScore, advice)
}

func recommendProcurement(a *domain.WeatherAnalysis) *domain.ProcurementRecommendation {
	var action domain.ProcurementAction
	var priority domain.ProcurementPriority
	var reasoning, qty string

	switch {
	case a.OverallScore >= 88 && a.Confidence == domain.ConfidenceHigh:
		action, priority, reasoning, qty = domain.ProcurementBuy, domain.ProcurementPriorityHigh,
			"Exceptional vintage conditions with high-confidence weather data.", "Increase"
	case a.OverallScore >= 75:
		action, priority, reasoning, qty = domain.ProcurementBuy, domain.ProcurementPriorityMedium,
			"Solid vintage conditions.", "Standard"
	case a.OverallScore >= 60:
		action, priority, reasoning, qty = domain.ProcurementHold, domain.ProcurementPriorityMedium,
			"Middling vintage; hold current allocation.", "Maintain"
	default:
		action, priority, reasoning, qty = domain.ProcurementAvoid, domain.ProcurementPriorityLow,
			"Poor vintage conditions.", "Decrease"
	}

	if a.Confidence == domain.ConfidenceLow {
		priority = demotePriority(priority)
	}

	var considerations []string
	if a.Ripeness < 3 {
		considerations = append(considerations, "underripe fruit reported")
	}
	if a.DiseasePressure < 2.5 {
		considerations = append(considerations, "elevated disease pressure")
	}
	if a.HeatwaveDays > 10 {
		considerations = append(considerations, "significant heat stress")
	}

	return &domain.ProcurementRecommendation{
		Action:            action,
		Priority:          priority,
		Reasoning:         reasoning,
		SuggestedQuantity: qty,
		Considerations:    considerations,
	}
}

func demotePriority(p domain.ProcurementPriority) domain.ProcurementPriority {
	switch p {
	case domain.ProcurementPriorityHigh:
		return domain.ProcurementPriorityMedium
	case domain.ProcurementPriorityMedium:
		return domain.ProcurementPriorityLow
	default:
		return domain.ProcurementPriorityLow
	}
}

// GenerateWeatherPairingInsight produces a short textual insight combining
// the strongest applicable weather factor for a dish context, or "" if
// none applies.
func GenerateWeatherPairingInsight(a *domain.WeatherAnalysis, dishIsRich, dishIsBold bool) string {
	if a == nil {
		return ""
	}
	switch {
	case a.Acidity >= 4 && dishIsRich:
		return fmt.Sprintf("This vintage's bright acidity (%.1f/5) cuts cleanly through rich dishes.", a.Acidity)
	case a.Ripeness >= 4.5 && dishIsBold:
		return fmt.Sprintf("Ripe fruit character (%.1f/5) stands up well to bold, assertive flavors.", a.Ripeness)
	case a.DiurnalRange > 12:
		return fmt.Sprintf("A wide diurnal range (%.1f°C) gave this wine unusually pronounced aromatics.", a.DiurnalRange)
	case a.OverallScore >= 88:
		return "An exceptional vintage across the board; let the wine lead the pairing."
	default:
		return ""
	}
}
