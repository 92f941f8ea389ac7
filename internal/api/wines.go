package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cellarworks/cellar-intel/infrastructure/httputil"
	"github.com/cellarworks/cellar-intel/internal/domain"
)

// createWine handles POST /wines.
func (s *Server) createWine(w http.ResponseWriter, r *http.Request) {
	var wine domain.Wine
	if !httputil.DecodeJSON(w, r, &wine) {
		return
	}
	created, err := s.wines.CreateWine(r.Context(), &wine)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.RespondCreated(w, created)
}

// getWine handles GET /wines/{wineID}.
func (s *Server) getWine(w http.ResponseWriter, r *http.Request) {
	wine, err := s.wines.GetWine(r.Context(), chi.URLParam(r, "wineID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wine)
}

// listWines handles GET /wines?region=&type=.
func (s *Server) listWines(w http.ResponseWriter, r *http.Request) {
	region := httputil.QueryString(r, "region", "")
	wineType := domain.WineType(httputil.QueryString(r, "type", ""))
	wines, err := s.wines.ListAvailableWines(r.Context(), region, wineType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wines)
}

// getVintage handles GET /vintages/{vintageID}.
func (s *Server) getVintage(w http.ResponseWriter, r *http.Request) {
	vintage, err := s.wines.GetVintage(r.Context(), chi.URLParam(r, "vintageID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vintage)
}

// createVintageRequest carries the year to attach to an existing wine.
type createVintageRequest struct {
	Year int `json:"year"`
}

// createVintage handles POST /wines/{wineID}/vintages, returning an
// existing row for a (wine, year) pair already on file.
func (s *Server) createVintage(w http.ResponseWriter, r *http.Request) {
	var req createVintageRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	vintage, err := s.wines.GetOrCreateVintage(r.Context(), chi.URLParam(r, "wineID"), req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vintage)
}
