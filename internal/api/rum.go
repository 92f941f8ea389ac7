package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cellarworks/cellar-intel/infrastructure/httputil"
)

type ingestRUMRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// ingestRUM handles POST /rum/events.
func (s *Server) ingestRUM(w http.ResponseWriter, r *http.Request) {
	var req ingestRUMRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	event := s.rum.Ingest(r.Context(), req.Kind, req.Payload)
	httputil.RespondCreated(w, event)
}

// recentRUM handles GET /rum/events?kind=.
func (s *Server) recentRUM(w http.ResponseWriter, r *http.Request) {
	kind := httputil.QueryString(r, "kind", "")
	httputil.WriteJSON(w, http.StatusOK, s.rum.Recent(kind))
}

// recentRUMByKind handles GET /rum/events/{kind}, a convenience alias.
func (s *Server) recentRUMByKind(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.rum.Recent(chi.URLParam(r, "kind")))
}
