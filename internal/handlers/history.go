package handlers

import (
	"net/http"
	"strconv"

	"github.com/eldtechnologies/mesh/internal/mesh"
	"github.com/eldtechnologies/mesh/internal/metrics"
	"github.com/eldtechnologies/mesh/internal/models"
)

// HistoryResponse represents the history page response.
type HistoryResponse struct {
	Channel  string            `json:"channel"`
	Messages []models.Envelope `json:"messages"`
	HasMore  bool              `json:"has_more"`
}

// History handles paginated channel history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		h.Error(w, http.StatusBadRequest, "query parameter 'channel' is required")
		return
	}
	if !isValidName(channel) {
		h.Error(w, http.StatusBadRequest, "invalid channel name")
		return
	}

	limit := mesh.DefaultPageLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	var before float64
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		if b, err := strconv.ParseFloat(beforeStr, 64); err == nil && b > 0 {
			before = b
		}
	}

	messages, hasMore := h.d.History.Page(r.Context(), channel, before, limit)
	metrics.HistoryPages.Inc()

	h.JSON(w, http.StatusOK, HistoryResponse{
		Channel:  channel,
		Messages: messages,
		HasMore:  hasMore,
	})
}
