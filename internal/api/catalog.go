package api

import (
	"net/http"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/catalog"
)

type catalogCategory struct {
	Key        catalog.Category    `json:"key"`
	Label      string              `json:"label"`
	Indicators []catalog.Indicator `json:"indicators"`
}

type catalogResponse struct {
	Version    string            `json:"version"`
	Categories []catalogCategory `json:"categories"`
}

// ─── GET /api/catalog ─────────────────────────────────────────────────────────

// handleGetCatalog serves the indicator catalog in wizard order.
func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	resp := catalogResponse{Version: s.catalog.Version()}
	for _, c := range catalog.Categories() {
		resp.Categories = append(resp.Categories, catalogCategory{
			Key:        c,
			Label:      s.catalog.Label(c),
			Indicators: s.catalog.Indicators(c),
		})
	}
	respond(w, http.StatusOK, resp)
}
