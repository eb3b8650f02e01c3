package http

import (
	"net/http"
	"strconv"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/couchcryptid/lightning-overlay-service/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

type productView struct {
	ID               string  `json:"id"`
	Tier             string  `json:"tier"`
	GridResolutionKm float64 `json:"grid_resolution_km"`
}

func (s *Server) handleProducts(w http.ResponseWriter, _ *http.Request) {
	ids := domain.ProductIDs()
	products := make([]productView, 0, len(ids))
	for _, id := range ids {
		p, _ := domain.LookupProduct(id)
		products = append(products, productView{ID: p.ID, Tier: p.Tier, GridResolutionKm: p.GridResolutionKm})
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleCountries(w http.ResponseWriter, _ *http.Request) {
	codes, err := s.opts.Countries.Codes()
	if err != nil {
		s.logger.Error("list countries", "error", err)
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "boundary data unavailable"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"countries": codes})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.RunFilter{
		Product: q.Get("product"),
		Country: q.Get("country"),
		Outcome: q.Get("outcome"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		f.Limit = n
	}

	runs, err := s.opts.Runs.ListRuns(r.Context(), f)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "run history unavailable"})
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
