package handlers

import (
	"net/http"

	"github.com/eldtechnologies/mesh/internal/metrics"
	"github.com/eldtechnologies/mesh/internal/models"
)

// SearchResponse represents the search response.
type SearchResponse struct {
	Query     string            `json:"query"`
	Channel   string            `json:"channel"`
	Results   []models.Envelope `json:"results"`
	Total     int               `json:"total"`
	Truncated bool              `json:"truncated"`
}

// Search handles bounded full-text search over one channel's log.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.Error(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	if len(query) > 100 {
		h.Error(w, http.StatusBadRequest, "query too long (max 100 chars)")
		return
	}

	channel := r.URL.Query().Get("channel")
	if channel == "" {
		h.Error(w, http.StatusBadRequest, "query parameter 'channel' is required")
		return
	}
	if !isValidName(channel) {
		h.Error(w, http.StatusBadRequest, "invalid channel name")
		return
	}

	results, total, truncated := h.d.Search.Search(r.Context(), channel, query)
	metrics.SearchQueries.Inc()

	h.JSON(w, http.StatusOK, SearchResponse{
		Query:     query,
		Channel:   channel,
		Results:   results,
		Total:     total,
		Truncated: truncated,
	})
}
