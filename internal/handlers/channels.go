package handlers

import (
	"net/http"
	"sort"

	"github.com/eldtechnologies/mesh/internal/mesh"
)

// ChannelInfo represents a channel in the list response.
type ChannelInfo struct {
	Name         string `json:"name"`
	MessageCount uint64 `json:"message_count"`
}

// ChannelListResponse represents the channels list response.
type ChannelListResponse struct {
	Channels []ChannelInfo `json:"channels"`
	Total    int           `json:"total"`
}

// Channels handles listing channels known to the log.
func (h *Handler) Channels(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.d.Conn.Log().Subjects(r.Context(), mesh.ChannelPrefix+">")
	if err != nil {
		// History-style degradation: an unreachable log reads as no channels.
		h.d.Logger.Debug().Err(err).Msg("channel listing failed, serving empty list")
		h.JSON(w, http.StatusOK, ChannelListResponse{Channels: []ChannelInfo{}, Total: 0})
		return
	}

	channels := make([]ChannelInfo, 0, len(subjects))
	for subject, count := range subjects {
		name, ok := mesh.ChannelFromSubject(subject)
		if !ok {
			continue
		}
		channels = append(channels, ChannelInfo{Name: name, MessageCount: count})
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })

	h.JSON(w, http.StatusOK, ChannelListResponse{Channels: channels, Total: len(channels)})
}
