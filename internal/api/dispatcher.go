package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cellarworks/cellar-intel/infrastructure/httputil"
	"github.com/cellarworks/cellar-intel/internal/dispatcher"
)

type callToolRequest struct {
	Params         map[string]interface{} `json:"params"`
	Role           dispatcher.Role         `json:"role"`
	Actor          string                  `json:"actor"`
	DryRun         bool                    `json:"dry_run"`
	Confirm        bool                    `json:"confirm"`
	IdempotencyKey string                  `json:"idempotency_key,omitempty"`
}

// callTool handles POST /tools/{name}/call, the Agent/Tool Dispatcher's
// single HTTP entry point.
func (s *Server) callTool(w http.ResponseWriter, r *http.Request) {
	var req callToolRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = dispatcher.RoleGuest
	}
	if req.Actor == "" {
		req.Actor = httputil.GetUserID(r)
	}

	result, err := s.tools.CallTool(r.Context(), chi.URLParam(r, "name"), req.Params, req.Role, req.Actor, dispatcher.CallOptions{
		DryRun:         req.DryRun,
		Confirm:        req.Confirm,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
