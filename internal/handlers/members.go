package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/eldtechnologies/mesh/internal/models"
)

// MembersResponse represents the member list response.
type MembersResponse struct {
	Channel string                    `json:"channel"`
	Members []models.MembershipRecord `json:"members"`
}

// MemberActionRequest represents an explicit membership change.
type MemberActionRequest struct {
	Channel string `json:"channel"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Action  string `json:"action"` // "add" or "remove"
}

// Members handles listing channel members. Channels with no explicit joins
// are seeded from their message history on first read.
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		h.Error(w, http.StatusBadRequest, "query parameter 'channel' is required")
		return
	}
	if !isValidName(channel) {
		h.Error(w, http.StatusBadRequest, "invalid channel name")
		return
	}

	members := h.d.Members.List(r.Context(), channel)
	if len(members) == 0 {
		if err := h.d.Members.SeedFromHistory(r.Context(), channel); err != nil {
			h.d.Logger.Debug().Err(err).Str("channel", channel).Msg("membership seeding failed")
		} else {
			members = h.d.Members.List(r.Context(), channel)
		}
	}

	h.JSON(w, http.StatusOK, MembersResponse{Channel: channel, Members: members})
}

// UpdateMembers handles explicit add/remove of a member.
func (h *Handler) UpdateMembers(w http.ResponseWriter, r *http.Request) {
	var req MemberActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !isValidName(req.Channel) {
		h.Error(w, http.StatusBadRequest, "invalid channel name")
		return
	}
	if !isValidName(req.Name) {
		h.Error(w, http.StatusBadRequest, "invalid member name")
		return
	}

	switch req.Action {
	case "add":
		memberType := req.Type
		if memberType != models.SenderHuman && memberType != models.SenderAI {
			memberType = models.SenderAI
		}
		if err := h.d.Members.Add(r.Context(), req.Channel, req.Name, memberType); err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to add member")
			return
		}
	case "remove":
		if err := h.d.Members.Remove(r.Context(), req.Channel, req.Name); err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to remove member")
			return
		}
	default:
		h.Error(w, http.StatusBadRequest, "action must be \"add\" or \"remove\"")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
