package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eldtechnologies/mesh/internal/mesh"
	"github.com/eldtechnologies/mesh/internal/metrics"
)

// SendRequest represents the publish request.
type SendRequest struct {
	Text    string `json:"text"`
	Subject string `json:"subject"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// SendResponse represents the publish response.
type SendResponse struct {
	ID        string  `json:"id"`
	Timestamp float64 `json:"timestamp"`
}

// Send handles publishing one envelope to a channel. Policy rejections come
// back with explicit error text; nothing on this path is retried.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	env, err := h.d.Publisher.Send(r.Context(), sender(r), req.Subject, req.Text, req.ReplyTo)
	if err != nil {
		switch {
		case errors.Is(err, mesh.ErrRateLimited):
			metrics.PublishRejected.WithLabelValues("rate_limit").Inc()
			h.Error(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, mesh.ErrInvalidSubject):
			metrics.PublishRejected.WithLabelValues("subject").Inc()
			h.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, mesh.ErrPayloadTooLarge):
			metrics.PublishRejected.WithLabelValues("payload").Inc()
			h.Error(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, mesh.ErrEmptyMessage):
			h.Error(w, http.StatusBadRequest, err.Error())
		default:
			h.Error(w, http.StatusInternalServerError, "failed to publish message")
		}
		return
	}

	metrics.MessagesPublished.Inc()
	h.JSON(w, http.StatusCreated, SendResponse{ID: env.ID, Timestamp: env.Timestamp})
}
