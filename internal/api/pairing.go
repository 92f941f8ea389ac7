package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cellarworks/cellar-intel/infrastructure/httputil"
	"github.com/cellarworks/cellar-intel/internal/broadcaster"
	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/pairing"
)

type pairingRequestBody struct {
	Dish             json.RawMessage           `json:"dish"`
	Context          domain.PairingContext     `json:"context"`
	GuestPreferences domain.GuestPreferences   `json:"guest_preferences"`
	Options          domain.PairingOptions     `json:"options"`
}

// generatePairings handles POST /pairings.
func (s *Server) generatePairings(w http.ResponseWriter, r *http.Request) {
	s.runPairing(w, r, false)
}

// quickPairing handles POST /pairings/quick.
func (s *Server) quickPairing(w http.ResponseWriter, r *http.Request) {
	s.runPairing(w, r, true)
}

func (s *Server) runPairing(w http.ResponseWriter, r *http.Request, quick bool) {
	var body pairingRequestBody
	if !httputil.DecodeJSON(w, r, &body) {
		return
	}
	userID := httputil.GetUserID(r)
	req := pairing.Request{
		Dish:             body.Dish,
		Context:          body.Context,
		GuestPreferences: body.GuestPreferences,
		Options:          body.Options,
		UserID:           userID,
	}

	var (
		result *pairing.Result
		err    error
	)
	if quick {
		result, err = s.pairingEngine.QuickPairing(r.Context(), req)
	} else {
		result, err = s.pairingEngine.GeneratePairings(r.Context(), req)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if len(result.Recommendations) > 0 {
		s.realtime.Publish(broadcaster.EventPairingSessionCreated, map[string]any{
			"session_id": result.Recommendations[0].SessionID,
			"quick":      quick,
			"cached":     result.Cached,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// submitFeedback handles POST /pairings/recommendations/{recommendationID}/feedback.
func (s *Server) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var feedback domain.Feedback
	if !httputil.DecodeJSON(w, r, &feedback) {
		return
	}
	feedback.RecommendationID = chi.URLParam(r, "recommendationID")
	if err := s.pairingRepo.CreateFeedback(r.Context(), &feedback); err != nil {
		writeError(w, r, err)
		return
	}
	s.realtime.Publish(broadcaster.EventPairingFeedbackReceived, map[string]any{
		"recommendation_id": feedback.RecommendationID,
		"overall_rating":     feedback.OverallRating,
	})
	httputil.RespondCreated(w, feedback)
}
