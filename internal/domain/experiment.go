package domain

import "time"

// ExperimentStatus is the lifecycle state of an Experiment.
type ExperimentStatus string

const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentPaused    ExperimentStatus = "paused"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentArchived  ExperimentStatus = "archived"
)

// AllocationUnit determines whether sticky assignment keys off a user or a session.
type AllocationUnit string

const (
	AllocationUnitUser    AllocationUnit = "user"
	AllocationUnitSession AllocationUnit = "session"
)

// ExperimentVariant is one arm of an Experiment.
type ExperimentVariant struct {
	ID           string  `json:"id"`
	ExperimentID string  `json:"experiment_id"`
	Name         string  `json:"name"`
	IsControl    bool    `json:"is_control"`
	AllocationPct float64 `json:"allocation_pct"`
}

// Experiment is an A/B test over Pairing Engine behavior.
type Experiment struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Status          ExperimentStatus    `json:"status"`
	TargetMetric    string              `json:"target_metric"`
	GuardrailMetrics []string           `json:"guardrail_metrics,omitempty"`
	AllocationUnit  AllocationUnit      `json:"allocation_unit"`
	StartDate       *time.Time          `json:"start_date,omitempty"`
	EndDate         *time.Time          `json:"end_date,omitempty"`
	Variants        []ExperimentVariant `json:"variants"`
	Winner          string              `json:"winner,omitempty"`
	Conclusion      string              `json:"conclusion,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// ExperimentAssignment is the sticky (allocation_unit_id, experiment) -> variant mapping.
type ExperimentAssignment struct {
	ID               string    `json:"id"`
	ExperimentID     string    `json:"experiment_id"`
	AllocationUnitID string    `json:"allocation_unit_id"`
	VariantID        string    `json:"variant_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// ExperimentEventType enumerates the recorded event kinds.
type ExperimentEventType string

const (
	ExperimentEventImpression ExperimentEventType = "impression"
	ExperimentEventClick      ExperimentEventType = "click"
	ExperimentEventConversion ExperimentEventType = "conversion"
	ExperimentEventRating     ExperimentEventType = "rating"
)

// ExperimentEvent is one behavioral datapoint attributed to a variant.
type ExperimentEvent struct {
	ID           string              `json:"id"`
	ExperimentID string              `json:"experiment_id"`
	VariantID    string              `json:"variant_id"`
	UserID       string              `json:"user_id,omitempty"`
	EventType    ExperimentEventType `json:"event_type"`
	Value        float64             `json:"value,omitempty"`
	Context      string              `json:"context,omitempty"`
	OccurredAt   time.Time           `json:"occurred_at"`
	IngestedAt   time.Time           `json:"ingested_at"`
}

// AnalysisType selects the statistical method used to evaluate an experiment.
type AnalysisType string

const (
	AnalysisFrequentist AnalysisType = "frequentist"
	AnalysisBayesian    AnalysisType = "bayesian"
	AnalysisBoth        AnalysisType = "both"
)

// AnalysisRecommendation is the experiment analysis's ship/hold verdict.
type AnalysisRecommendation string

const (
	RecommendationShip         AnalysisRecommendation = "ship"
	RecommendationRollback     AnalysisRecommendation = "rollback"
	RecommendationContinue     AnalysisRecommendation = "continue"
	RecommendationInconclusive AnalysisRecommendation = "inconclusive"
)

// GuardrailResult reports one guardrail metric's evaluation.
type GuardrailResult struct {
	Metric      string  `json:"metric"`
	ControlMean float64 `json:"control_mean"`
	TestMean    float64 `json:"test_mean"`
	IsViolated  bool    `json:"is_violated"`
}

// ExperimentAnalysis is the computed result of analyzing an experiment.
type ExperimentAnalysis struct {
	ID               string                  `json:"id"`
	ExperimentID     string                  `json:"experiment_id"`
	MetricName       string                  `json:"metric_name"`
	AnalysisType     AnalysisType            `json:"analysis_type"`
	ConfidenceLevel  float64                 `json:"confidence_level"`
	SampleSizeControl int                    `json:"sample_size_control"`
	SampleSizeTest   int                     `json:"sample_size_test"`
	PValue           *float64                `json:"p_value,omitempty"`
	EffectSize       *float64                `json:"effect_size,omitempty"`
	Significant      bool                    `json:"significant"`
	ProbTestBetter   *float64                `json:"prob_test_better,omitempty"`
	Guardrails       []GuardrailResult       `json:"guardrails,omitempty"`
	Recommendation   AnalysisRecommendation  `json:"recommendation"`
	ComputedAt       time.Time               `json:"computed_at"`
}

// PairingWeights is the normalized weight vector over scoring factors,
// derived from accumulated feedback. Weights are non-negative and sum to 1.
type PairingWeights struct {
	StyleMatch              float64 `json:"style_match"`
	FlavorHarmony           float64 `json:"flavor_harmony"`
	TextureBalance          float64 `json:"texture_balance"`
	RegionalTradition       float64 `json:"regional_tradition"`
	SeasonalAppropriateness float64 `json:"seasonal_appropriateness"`
}

// DefaultPairingWeights returns the engine's default factor weights, used
// whenever Learning has not yet derived a feedback-informed vector.
func DefaultPairingWeights() PairingWeights {
	return PairingWeights{
		StyleMatch:              0.30,
		FlavorHarmony:           0.30,
		TextureBalance:          0.15,
		RegionalTradition:       0.15,
		SeasonalAppropriateness: 0.10,
	}
}

// UserProfile aggregates a user's observed preferences for personalization.
type UserProfile struct {
	UserID          string             `json:"user_id"`
	ModalWineTypes  []WineType         `json:"modal_wine_types,omitempty"`
	ModalRegions    []string           `json:"modal_regions,omitempty"`
	FacetSensitivity map[string]float64 `json:"facet_sensitivity,omitempty"`
	SampleCount     int                `json:"sample_count"`
	UpdatedAt       time.Time          `json:"updated_at"`
}
