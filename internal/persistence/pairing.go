package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cellarworks/cellar-intel/internal/domain"
)

// PairingRepo owns pairing_sessions, pairing_recommendations, explanations,
// and feedback. A full pairing generation writes a session plus its
// recommendations plus their explanations atomically (spec.md §5).
type PairingRepo struct {
	store *Store
}

// NewPairingRepo constructs a PairingRepo bound to store.
func NewPairingRepo(store *Store) *PairingRepo {
	return &PairingRepo{store: store}
}

// CreateSession inserts a pairing_sessions row.
func (r *PairingRepo) CreateSession(ctx context.Context, s *domain.PairingSession) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = time.Now().UTC()
	}
	_, err := r.store.Run(ctx, `
		INSERT INTO pairing_sessions (id, user_id, dish_name, quick, cached, generated_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		[]any{s.ID, s.UserID, s.DishName, s.Quick, s.Cached, s.GeneratedAt})
	return err
}

// CreateRecommendation inserts a pairing_recommendations row.
func (r *PairingRepo) CreateRecommendation(ctx context.Context, rec *domain.PairingRecommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	subScores, err := json.Marshal(rec.SubScores)
	if err != nil {
		return err
	}
	_, err = r.store.Run(ctx, `
		INSERT INTO pairing_recommendations (id, session_id, ordinal, wine_id, vintage_id,
		                                      sub_scores_json, total, confidence, reasoning,
		                                      ai_enhanced, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		[]any{rec.ID, rec.SessionID, rec.Ordinal, rec.WineID, nullIfEmpty(rec.VintageID),
			string(subScores), rec.Total, rec.Confidence, rec.Reasoning, rec.AIEnhanced, rec.CreatedAt})
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateExplanation appends one explanation row.
func (r *PairingRepo) CreateExplanation(ctx context.Context, e *domain.Explanation) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.store.Run(ctx, `
		INSERT INTO explanations (id, entity_type, entity_id, summary, factors, actor_role, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		[]any{e.ID, e.EntityType, e.EntityID, e.Summary, pqStringArray(e.Factors), e.ActorRole, e.CreatedAt})
	return err
}

// CreateFeedback inserts a feedback row.
func (r *PairingRepo) CreateFeedback(ctx context.Context, f *domain.Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := r.store.Run(ctx, `
		INSERT INTO feedback (id, recommendation_id, user_id, overall_rating, flavor_harmony,
		                       texture_balance, acidity_match, tannin_balance, body_match,
		                       regional_tradition, selected, behavioral_timings_ms, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		[]any{f.ID, f.RecommendationID, f.UserID, f.OverallRating, f.FlavorHarmony,
			f.TextureBalance, f.AcidityMatch, f.TanninBalance, f.BodyMatch, f.RegionalTradition,
			f.Selected, f.BehavioralTimingsMS, f.Notes, f.CreatedAt})
	return err
}

// ListFeedbackForWeights returns recent feedback rows used to derive
// pairing weights, bounded by limit (most recent first).
func (r *PairingRepo) ListFeedbackForWeights(ctx context.Context, limit int) ([]*domain.Feedback, error) {
	var out []*domain.Feedback
	err := r.store.All(ctx, `
		SELECT id, recommendation_id, user_id, overall_rating, flavor_harmony, texture_balance,
		       acidity_match, tannin_balance, body_match, regional_tradition, selected,
		       behavioral_timings_ms, notes, created_at
		FROM feedback ORDER BY created_at DESC LIMIT $1`, []any{limit}, func(rows *sql.Rows) error {
		var f domain.Feedback
		if err := rows.Scan(&f.ID, &f.RecommendationID, &f.UserID, &f.OverallRating,
			&f.FlavorHarmony, &f.TextureBalance, &f.AcidityMatch, &f.TanninBalance,
			&f.BodyMatch, &f.RegionalTradition, &f.Selected, &f.BehavioralTimingsMS,
			&f.Notes, &f.CreatedAt); err != nil {
			return err
		}
		out = append(out, &f)
		return nil
	})
	return out, err
}
