package domain

import "time"

// ConfidenceLevel grades the completeness of a weather sample.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "Low"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceHigh   ConfidenceLevel = "High"
)

// WeatherAnalysis is the processed daily-series payload stored per
// (region, year[, alias]) in the Cache Fabric and WeatherCache table.
type WeatherAnalysis struct {
	Region          string          `json:"region"`
	Alias           string          `json:"alias,omitempty"`
	Year            int             `json:"year"`
	MeanTemp        float64         `json:"mean_temp"`
	MaxTemp         float64         `json:"max_temp"`
	MinTemp         float64         `json:"min_temp"`
	GDD             float64         `json:"gdd"`
	TotalRainfallMM float64         `json:"total_rainfall_mm"`
	HeatwaveDays    int             `json:"heatwave_days"`
	FrostDays       int             `json:"frost_days"`
	SunshineHours   float64         `json:"sunshine_hours"`
	DiurnalRange    float64         `json:"diurnal_range"`
	Ripeness        float64         `json:"ripeness"`
	Acidity         float64         `json:"acidity"`
	DiseasePressure float64         `json:"disease_pressure"`
	OverallScore    float64         `json:"overall_score"`
	Confidence      ConfidenceLevel `json:"confidence"`
	FetchedAt       time.Time       `json:"fetched_at"`
}

// WeatherCache is the persisted form of a WeatherAnalysis, keyed by
// normalized region token plus year plus optional vineyard alias.
type WeatherCache struct {
	ID        string    `json:"id"`
	Region    string    `json:"region"`
	Alias     string    `json:"alias,omitempty"`
	Year      int       `json:"year"`
	Payload   string    `json:"payload"` // JSON-encoded WeatherAnalysis
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProcurementAction enumerates the Vintage Intelligence buy recommendation.
type ProcurementAction string

const (
	ProcurementBuy   ProcurementAction = "BUY"
	ProcurementHold  ProcurementAction = "HOLD"
	ProcurementAvoid ProcurementAction = "AVOID"
)

// ProcurementPriority grades urgency of a procurement recommendation.
type ProcurementPriority string

const (
	ProcurementPriorityHigh   ProcurementPriority = "High"
	ProcurementPriorityMedium ProcurementPriority = "Medium"
	ProcurementPriorityLow    ProcurementPriority = "Low"
)

// ProcurementRecommendation is produced by enrichWineData's final step.
type ProcurementRecommendation struct {
	Action             ProcurementAction   `json:"action"`
	Priority           ProcurementPriority `json:"priority"`
	Reasoning          string              `json:"reasoning"`
	SuggestedQuantity  string              `json:"suggested_quantity"`
	Considerations     []string            `json:"considerations,omitempty"`
}

// EnrichmentResult is the full return value of enrichWineData.
type EnrichmentResult struct {
	WeatherAnalysis *WeatherAnalysis           `json:"weather_analysis,omitempty"`
	VintageSummary  string                     `json:"vintage_summary"`
	QualityScore    float64                    `json:"quality_score"`
	ProcurementRec  *ProcurementRecommendation `json:"procurement_rec,omitempty"`
	EnrichedAt      time.Time                  `json:"enriched_at"`
}
