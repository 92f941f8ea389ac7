package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cellarworks/cellar-intel/internal/domain"
)

// ExperimentRepo owns experiments, experiment_variants,
// experiment_assignments, experiment_events, and experiment_analyses.
type ExperimentRepo struct {
	store *Store
}

// NewExperimentRepo constructs an ExperimentRepo bound to store.
func NewExperimentRepo(store *Store) *ExperimentRepo {
	return &ExperimentRepo{store: store}
}

// CreateExperiment inserts an experiment and its variants transactionally.
func (r *ExperimentRepo) CreateExperiment(ctx context.Context, e *domain.Experiment) error {
	return r.store.WithTransaction(ctx, func(ctx context.Context) error {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		e.CreatedAt, e.UpdatedAt = now, now
		if e.Status == "" {
			e.Status = domain.ExperimentDraft
		}

		_, err := r.store.Run(ctx, `
			INSERT INTO experiments (id, name, status, target_metric, guardrail_metrics,
			                          allocation_unit, start_date, end_date, winner, conclusion,
			                          created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			[]any{e.ID, e.Name, e.Status, e.TargetMetric, pqStringArray(e.GuardrailMetrics),
				e.AllocationUnit, e.StartDate, e.EndDate, e.Winner, e.Conclusion, e.CreatedAt, e.UpdatedAt})
		if err != nil {
			return err
		}

		for i := range e.Variants {
			v := &e.Variants[i]
			if v.ID == "" {
				v.ID = uuid.NewString()
			}
			v.ExperimentID = e.ID
			if _, err := r.store.Run(ctx, `
				INSERT INTO experiment_variants (id, experiment_id, name, is_control, allocation_pct)
				VALUES ($1,$2,$3,$4,$5)`,
				[]any{v.ID, v.ExperimentID, v.Name, v.IsControl, v.AllocationPct}); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanExperiment(row interface{ Scan(...any) error }) (*domain.Experiment, error) {
	var e domain.Experiment
	var guardrails pq.StringArray
	var start, end sql.NullTime
	if err := row.Scan(&e.ID, &e.Name, &e.Status, &e.TargetMetric, &guardrails,
		&e.AllocationUnit, &start, &end, &e.Winner, &e.Conclusion, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.GuardrailMetrics = []string(guardrails)
	if start.Valid {
		e.StartDate = &start.Time
	}
	if end.Valid {
		e.EndDate = &end.Time
	}
	return &e, nil
}

const experimentColumns = `id, name, status, target_metric, guardrail_metrics, allocation_unit,
	       start_date, end_date, winner, conclusion, created_at, updated_at`

// GetExperiment fetches an experiment (without variants) by id.
func (r *ExperimentRepo) GetExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	var e *domain.Experiment
	var scanErr error
	err := r.store.Get(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE id = $1`,
		[]any{id}, func(row *sql.Row) error {
			e, scanErr = scanExperiment(row)
			return scanErr
		})
	if err == sql.ErrNoRows || scanErr == sql.ErrNoRows {
		return nil, domain.ErrExperimentNotFound
	}
	if err != nil {
		return nil, err
	}
	variants, err := r.ListVariants(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Variants = variants
	return e, nil
}

// ListVariants returns the variants for an experiment.
func (r *ExperimentRepo) ListVariants(ctx context.Context, experimentID string) ([]domain.ExperimentVariant, error) {
	var out []domain.ExperimentVariant
	err := r.store.All(ctx, `
		SELECT id, experiment_id, name, is_control, allocation_pct
		FROM experiment_variants WHERE experiment_id = $1 ORDER BY name`,
		[]any{experimentID}, func(rows *sql.Rows) error {
			var v domain.ExperimentVariant
			if err := rows.Scan(&v.ID, &v.ExperimentID, &v.Name, &v.IsControl, &v.AllocationPct); err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
	return out, err
}

// UpdateExperimentStatus transitions an experiment's lifecycle status.
func (r *ExperimentRepo) UpdateExperimentStatus(ctx context.Context, id string, status domain.ExperimentStatus, winner, conclusion string) error {
	now := time.Now().UTC()
	var startDate, endDate any
	if status == domain.ExperimentRunning {
		startDate = now
	}
	if status == domain.ExperimentCompleted {
		endDate = now
	}
	_, err := r.store.Run(ctx, `
		UPDATE experiments
		SET status = $2, winner = COALESCE(NULLIF($3,''), winner),
		    conclusion = COALESCE(NULLIF($4,''), conclusion),
		    start_date = COALESCE(start_date, $5),
		    end_date = COALESCE(end_date, $6),
		    updated_at = $7
		WHERE id = $1`,
		[]any{id, status, winner, conclusion, startDate, endDate, now})
	return err
}

// GetAssignment returns the sticky variant assignment for
// (experimentID, allocationUnitID), or nil if none exists yet.
func (r *ExperimentRepo) GetAssignment(ctx context.Context, experimentID, allocationUnitID string) (*domain.ExperimentAssignment, error) {
	var a *domain.ExperimentAssignment
	var scanErr error
	err := r.store.Get(ctx, `
		SELECT id, experiment_id, allocation_unit_id, variant_id, created_at
		FROM experiment_assignments WHERE experiment_id = $1 AND allocation_unit_id = $2`,
		[]any{experimentID, allocationUnitID}, func(row *sql.Row) error {
			var v domain.ExperimentAssignment
			if scanErr = row.Scan(&v.ID, &v.ExperimentID, &v.AllocationUnitID, &v.VariantID, &v.CreatedAt); scanErr != nil {
				return scanErr
			}
			a = &v
			return nil
		})
	if err == sql.ErrNoRows || scanErr == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAssignmentIfAbsent inserts the assignment, tolerating a race where
// a concurrent caller wins first: on conflict it re-reads and returns the
// row that actually won, guaranteeing stickiness under concurrency.
func (r *ExperimentRepo) CreateAssignmentIfAbsent(ctx context.Context, a *domain.ExperimentAssignment) (*domain.ExperimentAssignment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.store.Run(ctx, `
		INSERT INTO experiment_assignments (id, experiment_id, allocation_unit_id, variant_id, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (experiment_id, allocation_unit_id) DO NOTHING`,
		[]any{a.ID, a.ExperimentID, a.AllocationUnitID, a.VariantID, a.CreatedAt})
	if err != nil {
		return nil, err
	}
	return r.GetAssignment(ctx, a.ExperimentID, a.AllocationUnitID)
}

// InsertEvents ingests a batch of experiment events (<=100 per spec.md
// §4.8), deduplicating by (experiment, user, event_type, occurred_at)
// when the caller supplies a timestamp.
func (r *ExperimentRepo) InsertEvents(ctx context.Context, events []*domain.ExperimentEvent) (int, error) {
	inserted := 0
	err := r.store.WithTransaction(ctx, func(ctx context.Context) error {
		for _, e := range events {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if e.IngestedAt.IsZero() {
				e.IngestedAt = time.Now().UTC()
			}
			query := `
				INSERT INTO experiment_events (id, experiment_id, variant_id, user_id, event_type,
				                                value, context, occurred_at, ingested_at)
				SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9`
			if e.OccurredAt.IsZero() {
				// No caller timestamp: record ingestion time, no dedup.
				e.OccurredAt = e.IngestedAt
			} else {
				query += `
				WHERE NOT EXISTS (
					SELECT 1 FROM experiment_events
					WHERE experiment_id = $2 AND user_id = $4 AND event_type = $5 AND occurred_at = $8
				)`
			}
			result, err := r.store.Run(ctx, query,
				[]any{e.ID, e.ExperimentID, e.VariantID, e.UserID, e.EventType,
					e.Value, e.Context, e.OccurredAt, e.IngestedAt})
			if err != nil {
				return err
			}
			inserted += int(result.Changes)
		}
		return nil
	})
	return inserted, err
}

// ListEventsForAnalysis returns raw (variant_id, is_control, value) triples
// for a metric, used by the frequentist/bayesian analyzers.
func (r *ExperimentRepo) ListEventsForAnalysis(ctx context.Context, experimentID, eventType string) ([]AnalysisDatum, error) {
	var out []AnalysisDatum
	err := r.store.All(ctx, `
		SELECT ee.value, ev.is_control
		FROM experiment_events ee
		JOIN experiment_variants ev ON ev.id = ee.variant_id
		WHERE ee.experiment_id = $1 AND ee.event_type = $2`,
		[]any{experimentID, eventType}, func(rows *sql.Rows) error {
			var d AnalysisDatum
			if err := rows.Scan(&d.Value, &d.IsControl); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	return out, err
}

// AnalysisDatum is one event's value tagged with its variant's control status.
type AnalysisDatum struct {
	Value     float64
	IsControl bool
}

// SaveAnalysis persists a computed ExperimentAnalysis.
func (r *ExperimentRepo) SaveAnalysis(ctx context.Context, a *domain.ExperimentAnalysis) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.ComputedAt.IsZero() {
		a.ComputedAt = time.Now().UTC()
	}
	guardrails, err := json.Marshal(a.Guardrails)
	if err != nil {
		return err
	}
	_, err = r.store.Run(ctx, `
		INSERT INTO experiment_analyses (id, experiment_id, metric_name, analysis_type,
		                                  confidence_level, sample_size_control, sample_size_test,
		                                  p_value, effect_size, significant, prob_test_better,
		                                  guardrails_json, recommendation, computed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		[]any{a.ID, a.ExperimentID, a.MetricName, a.AnalysisType, a.ConfidenceLevel,
			a.SampleSizeControl, a.SampleSizeTest, a.PValue, a.EffectSize, a.Significant,
			a.ProbTestBetter, string(guardrails), a.Recommendation, a.ComputedAt})
	return err
}
