package learning

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/persistence"
)

// ExperimentService implements CRUD, the lifecycle state machine, and
// sticky variant assignment over persistence.ExperimentRepo.
type ExperimentService struct {
	repo *persistence.ExperimentRepo
}

// NewExperimentService constructs an ExperimentService bound to repo.
func NewExperimentService(repo *persistence.ExperimentRepo) *ExperimentService {
	return &ExperimentService{repo: repo}
}

// CreateExperiment validates and persists a new draft experiment.
func (s *ExperimentService) CreateExperiment(ctx context.Context, e *domain.Experiment) (*domain.Experiment, error) {
	if len(e.Variants) < 2 {
		return nil, domain.ErrInsufficientVariants
	}
	if err := validateVariants(e.Variants); err != nil {
		return nil, err
	}
	e.Status = domain.ExperimentDraft
	if err := s.repo.CreateExperiment(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func validateVariants(variants []domain.ExperimentVariant) error {
	controls := 0
	total := 0.0
	for _, v := range variants {
		if v.IsControl {
			controls++
		}
		total += v.AllocationPct
	}
	if controls != 1 {
		return domain.ErrMissingControlVariant
	}
	if math.Abs(total-100) > 0.01 {
		return domain.ErrAllocationMustSumTo100
	}
	return nil
}

// Transition drives the draft -> running -> paused <-> running ->
// completed -> archived state machine. Transitions are idempotent: a
// no-op transition to the current status succeeds without side effects.
func (s *ExperimentService) Transition(ctx context.Context, experimentID string, target domain.ExperimentStatus, winner, conclusion string) error {
	e, err := s.repo.GetExperiment(ctx, experimentID)
	if err != nil {
		return err
	}
	if e.Status == target {
		return nil
	}
	if !isValidTransition(e.Status, target) {
		return domain.ErrInvalidExperimentState
	}
	if target == domain.ExperimentRunning && e.Status == domain.ExperimentDraft {
		if err := validateVariants(e.Variants); err != nil {
			return err
		}
	}
	return s.repo.UpdateExperimentStatus(ctx, experimentID, target, winner, conclusion)
}

func isValidTransition(from, to domain.ExperimentStatus) bool {
	switch from {
	case domain.ExperimentDraft:
		return to == domain.ExperimentRunning
	case domain.ExperimentRunning:
		return to == domain.ExperimentPaused || to == domain.ExperimentCompleted
	case domain.ExperimentPaused:
		return to == domain.ExperimentRunning
	case domain.ExperimentCompleted:
		return to == domain.ExperimentArchived
	default:
		return false
	}
}

// Assign returns the sticky variant for allocationUnitID, drawing a new
// one by hashing (allocationUnitID||experimentID) into the cumulative
// allocation intervals on first assignment.
func (s *ExperimentService) Assign(ctx context.Context, experimentID, allocationUnitID string) (*domain.ExperimentAssignment, error) {
	if existing, err := s.repo.GetAssignment(ctx, experimentID, allocationUnitID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	experiment, err := s.repo.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if experiment.Status != domain.ExperimentRunning {
		return nil, domain.ErrInvalidExperimentState
	}

	variant := pickVariant(experiment.Variants, allocationUnitID, experimentID)
	if variant == nil {
		return nil, domain.ErrVariantNotFound
	}

	return s.repo.CreateAssignmentIfAbsent(ctx, &domain.ExperimentAssignment{
		ExperimentID:     experimentID,
		AllocationUnitID: allocationUnitID,
		VariantID:        variant.ID,
	})
}

// pickVariant hashes allocationUnitID||experimentID to a 32-bit integer
// and maps it into the variants' cumulative allocation intervals.
func pickVariant(variants []domain.ExperimentVariant, allocationUnitID, experimentID string) *domain.ExperimentVariant {
	h := fnv.New32a()
	h.Write([]byte(allocationUnitID + "||" + experimentID))
	bucket := float64(h.Sum32()%10000) / 100.0 // 0..100

	cumulative := 0.0
	for i := range variants {
		cumulative += variants[i].AllocationPct
		if bucket < cumulative {
			return &variants[i]
		}
	}
	if len(variants) > 0 {
		return &variants[len(variants)-1]
	}
	return nil
}

// IngestEvents forwards a validated batch (<=100) to the repo.
func (s *ExperimentService) IngestEvents(ctx context.Context, events []*domain.ExperimentEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if len(events) > 100 {
		events = events[:100]
	}
	return s.repo.InsertEvents(ctx, events)
}
