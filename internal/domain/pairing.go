package domain

import "time"

// Dish is the parsed, structured form of a pairing request's dish input,
// which may arrive as free text or as a pre-structured object. Parsing
// from either wire shape happens once, at the boundary.
type Dish struct {
	Name             string   `json:"name"`
	Cuisine          string   `json:"cuisine,omitempty"`
	Preparation      string   `json:"preparation,omitempty"`
	Intensity        string   `json:"intensity,omitempty"`
	DominantFlavors  []string `json:"dominant_flavors,omitempty"`
	Texture          string   `json:"texture,omitempty"`
	Season           string   `json:"season,omitempty"`
}

// PairingContext carries occasion and seasonal hints that affect both
// scoring and cache TTL.
type PairingContext struct {
	Occasion        string `json:"occasion,omitempty"`
	SpecialOccasion bool   `json:"special_occasion,omitempty"`
	Season          string `json:"season,omitempty"`
}

// GuestPreferences narrows the candidate pool and influences scoring.
type GuestPreferences struct {
	PreferredTypes      []WineType `json:"preferred_types,omitempty"`
	AvoidedTypes        []WineType `json:"avoided_types,omitempty"`
	PreferredRegions    []string   `json:"preferred_regions,omitempty"`
	DietaryRestrictions []string   `json:"dietary_restrictions,omitempty"`
}

// PairingOptions tunes the pairing algorithm's behavior.
type PairingOptions struct {
	MaxRecommendations  int     `json:"max_recommendations,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	ForceAI             bool    `json:"force_ai,omitempty"`
	IncludeReasoning    bool    `json:"include_reasoning,omitempty"`
	Quick               bool    `json:"-"`
}

// SubScores are the [0,1]-bounded factor scores computed per candidate.
type SubScores struct {
	StyleMatch              float64 `json:"style_match"`
	FlavorHarmony           float64 `json:"flavor_harmony"`
	TextureBalance          float64 `json:"texture_balance"`
	RegionalTradition       float64 `json:"regional_tradition"`
	SeasonalAppropriateness float64 `json:"seasonal_appropriateness"`
	AIScore                 *float64 `json:"ai_score,omitempty"`
}

// PairingRecommendation is one scored candidate produced by the Pairing Engine.
type PairingRecommendation struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Ordinal      int       `json:"ordinal"`
	WineID       string    `json:"wine_id"`
	VintageID    string    `json:"vintage_id,omitempty"`
	SubScores    SubScores `json:"sub_scores"`
	Total        float64   `json:"total"`
	Confidence   float64   `json:"confidence"`
	Reasoning    string    `json:"reasoning,omitempty"`
	AIEnhanced   bool      `json:"ai_enhanced"`
	CreatedAt    time.Time `json:"created_at"`
}

// PairingSession is the record of one generatePairings call.
type PairingSession struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	DishName    string    `json:"dish_name"`
	Quick       bool      `json:"quick"`
	Cached      bool      `json:"cached"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ExplanationEntityType enumerates the entities an Explanation attaches to.
type ExplanationEntityType string

const (
	ExplanationEntityPairingRecommendation ExplanationEntityType = "pairing_recommendation"
	ExplanationEntityProcurement           ExplanationEntityType = "procurement"
	ExplanationEntityWeather               ExplanationEntityType = "weather"
	ExplanationEntityVintageAdjustment     ExplanationEntityType = "vintage_adjustment"
)

// Explanation is an append-only explainability record.
type Explanation struct {
	ID         string                `json:"id"`
	EntityType ExplanationEntityType `json:"entity_type"`
	EntityID   string                `json:"entity_id"`
	Summary    string                `json:"summary"`
	Factors    []string              `json:"factors,omitempty"`
	ActorRole  string                `json:"actor_role,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Feedback is one submitted rating against a pairing recommendation.
type Feedback struct {
	ID                  string    `json:"id"`
	RecommendationID    string    `json:"recommendation_id"`
	UserID              string    `json:"user_id,omitempty"`
	OverallRating       int       `json:"overall_rating"`
	FlavorHarmony       *int      `json:"flavor_harmony,omitempty"`
	TextureBalance      *int      `json:"texture_balance,omitempty"`
	AcidityMatch        *int      `json:"acidity_match,omitempty"`
	TanninBalance       *int      `json:"tannin_balance,omitempty"`
	BodyMatch           *int      `json:"body_match,omitempty"`
	RegionalTradition   *int      `json:"regional_tradition,omitempty"`
	Selected            bool      `json:"selected"`
	BehavioralTimingsMS int64     `json:"behavioral_timings_ms,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}
