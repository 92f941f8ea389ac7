package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cellarworks/cellar-intel/infrastructure/httputil"
	"github.com/cellarworks/cellar-intel/internal/broadcaster"
)

type consumeRequest struct {
	Location string `json:"location"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
	Actor    string `json:"actor"`
}

// consume handles POST /vintages/{vintageID}/consume.
func (s *Server) consume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	vintageID := chi.URLParam(r, "vintageID")
	if err := s.ledger.Consume(r.Context(), vintageID, req.Location, req.Quantity, req.Notes, req.Actor); err != nil {
		writeError(w, r, err)
		return
	}
	s.realtime.Publish(broadcaster.EventInventoryItemConsumed, map[string]any{
		"vintage_id": vintageID,
		"location":   req.Location,
		"quantity":   req.Quantity,
	})
	httputil.RespondNoContent(w)
}

type receiveRequest struct {
	Location    string   `json:"location"`
	Quantity    int      `json:"quantity"`
	UnitCost    *float64 `json:"unit_cost,omitempty"`
	ReferenceID string   `json:"reference_id"`
	Notes       string   `json:"notes"`
	Actor       string   `json:"actor"`
}

// receive handles POST /vintages/{vintageID}/receive.
func (s *Server) receive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	vintageID := chi.URLParam(r, "vintageID")
	result, err := s.ledger.Receive(r.Context(), vintageID, req.Location, req.Quantity, req.UnitCost, req.ReferenceID, req.Notes, req.Actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.realtime.Publish(broadcaster.EventInventoryItemAdded, map[string]any{
		"vintage_id": vintageID,
		"location":   req.Location,
		"quantity":   req.Quantity,
	})
	httputil.WriteJSON(w, http.StatusOK, result)
}

type moveRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
	Actor    string `json:"actor"`
}

// move handles POST /vintages/{vintageID}/move.
func (s *Server) move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	vintageID := chi.URLParam(r, "vintageID")
	if err := s.ledger.Move(r.Context(), vintageID, req.From, req.To, req.Quantity, req.Notes, req.Actor); err != nil {
		writeError(w, r, err)
		return
	}
	s.realtime.Publish(broadcaster.EventInventoryItemMoved, map[string]any{
		"vintage_id": vintageID,
		"from":       req.From,
		"to":         req.To,
		"quantity":   req.Quantity,
	})
	httputil.RespondNoContent(w)
}

type reserveRequest struct {
	Location string `json:"location"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
	Actor    string `json:"actor"`
}

// reserve handles POST /vintages/{vintageID}/reserve.
func (s *Server) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	vintageID := chi.URLParam(r, "vintageID")
	if err := s.ledger.Reserve(r.Context(), vintageID, req.Location, req.Quantity, req.Notes, req.Actor); err != nil {
		writeError(w, r, err)
		return
	}
	s.realtime.Publish(broadcaster.EventInventoryItemReserved, map[string]any{
		"vintage_id": vintageID,
		"location":   req.Location,
		"quantity":   req.Quantity,
	})
	httputil.RespondNoContent(w)
}

// listStock handles GET /vintages/{vintageID}/stock.
func (s *Server) listStock(w http.ResponseWriter, r *http.Request) {
	stocks, err := s.ledgerRepo.ListStockByVintage(r.Context(), chi.URLParam(r, "vintageID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stocks)
}

// listLedgerEntries handles GET /vintages/{vintageID}/ledger.
func (s *Server) listLedgerEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledgerRepo.ListLedgerEntries(r.Context(), chi.URLParam(r, "vintageID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

// unreserve handles POST /vintages/{vintageID}/unreserve.
func (s *Server) unreserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	vintageID := chi.URLParam(r, "vintageID")
	if err := s.ledger.Unreserve(r.Context(), vintageID, req.Location, req.Quantity, req.Notes, req.Actor); err != nil {
		writeError(w, r, err)
		return
	}
	s.realtime.Publish(broadcaster.EventInventoryItemReserved, map[string]any{
		"vintage_id": vintageID,
		"location":   req.Location,
		"quantity":   -req.Quantity,
	})
	httputil.RespondNoContent(w)
}
