package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/mesh/internal/metrics"
)

// SessionSendRequest represents a request to drive a remote session.
type SessionSendRequest struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// SessionHistory handles reading a remote agent session's history. Bridge
// failures surface as success=false in the body; the caller owns retries.
func (h *Handler) SessionHistory(w http.ResponseWriter, r *http.Request) {
	agent := chi.URLParam(r, "agent")
	if !isValidName(agent) {
		h.Error(w, http.StatusBadRequest, "invalid agent name")
		return
	}
	key := r.URL.Query().Get("key")

	result := h.d.Bridge.History(r.Context(), agent, key)
	outcome := "ok"
	if !result.Success {
		outcome = "error"
	}
	metrics.BridgeCalls.WithLabelValues("history", outcome).Inc()

	h.JSON(w, http.StatusOK, result)
}

// SessionSend handles driving one turn of a remote agent session.
func (h *Handler) SessionSend(w http.ResponseWriter, r *http.Request) {
	agent := chi.URLParam(r, "agent")
	if !isValidName(agent) {
		h.Error(w, http.StatusBadRequest, "invalid agent name")
		return
	}

	var req SessionSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		h.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	result := h.d.Bridge.Send(r.Context(), agent, req.Key, req.Text)
	outcome := "ok"
	if !result.Success {
		outcome = "error"
	}
	metrics.BridgeCalls.WithLabelValues("send", outcome).Inc()

	h.JSON(w, http.StatusOK, result)
}
