package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cellarworks/cellar-intel/infrastructure/httputil"
	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/learning"
)

// createExperiment handles POST /experiments.
func (s *Server) createExperiment(w http.ResponseWriter, r *http.Request) {
	var experiment domain.Experiment
	if !httputil.DecodeJSON(w, r, &experiment) {
		return
	}
	created, err := s.experiments.CreateExperiment(r.Context(), &experiment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.RespondCreated(w, created)
}

type transitionRequest struct {
	Status     domain.ExperimentStatus `json:"status"`
	Winner     string                  `json:"winner,omitempty"`
	Conclusion string                  `json:"conclusion,omitempty"`
}

// transitionExperiment handles POST /experiments/{experimentID}/transition.
func (s *Server) transitionExperiment(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	experimentID := chi.URLParam(r, "experimentID")
	if err := s.experiments.Transition(r.Context(), experimentID, req.Status, req.Winner, req.Conclusion); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.RespondNoContent(w)
}

// getExperiment handles GET /experiments/{experimentID}.
func (s *Server) getExperiment(w http.ResponseWriter, r *http.Request) {
	experiment, err := s.experimentRepo.GetExperiment(r.Context(), chi.URLParam(r, "experimentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, experiment)
}

// assignVariant handles GET /experiments/{experimentID}/assignment?unit=.
func (s *Server) assignVariant(w http.ResponseWriter, r *http.Request) {
	experimentID := chi.URLParam(r, "experimentID")
	unit := httputil.QueryString(r, "unit", "")
	if unit == "" {
		unit = httputil.GetUserID(r)
	}
	assignment, err := s.experiments.Assign(r.Context(), experimentID, unit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, assignment)
}

// ingestEvents handles POST /experiments/{experimentID}/events.
func (s *Server) ingestEvents(w http.ResponseWriter, r *http.Request) {
	var events []*domain.ExperimentEvent
	if !httputil.DecodeJSON(w, r, &events) {
		return
	}
	experimentID := chi.URLParam(r, "experimentID")
	for _, e := range events {
		e.ExperimentID = experimentID
	}
	n, err := s.experiments.IngestEvents(r.Context(), events)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"ingested": n})
}

type analyzeRequest struct {
	MetricName        string              `json:"metric_name"`
	AnalysisType      domain.AnalysisType `json:"analysis_type"`
	ConfidenceLevel   float64             `json:"confidence_level"`
	MinimumSampleSize int                 `json:"minimum_sample_size"`
	GuardrailMetrics  []string            `json:"guardrail_metrics"`
}

// analyzeExperiment handles POST /experiments/{experimentID}/analyze.
func (s *Server) analyzeExperiment(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.ConfidenceLevel == 0 {
		req.ConfidenceLevel = 0.95
	}
	analysis, err := s.analyzer.Analyze(r.Context(), learning.AnalysisRequest{
		ExperimentID:      chi.URLParam(r, "experimentID"),
		MetricName:        req.MetricName,
		AnalysisType:      req.AnalysisType,
		ConfidenceLevel:   req.ConfidenceLevel,
		MinimumSampleSize: req.MinimumSampleSize,
		GuardrailMetrics:  req.GuardrailMetrics,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, analysis)
}
