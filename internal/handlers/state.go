package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/eldtechnologies/mesh/internal/models"
)

// PresenceResponse represents the reconciled presence view.
type PresenceResponse struct {
	Agents []models.PresenceRecord `json:"agents"`
	Total  int                     `json:"total"`
	State  string                  `json:"session_state"`
}

// TelemetryView is one telemetry record with staleness derived at read time.
type TelemetryView struct {
	models.TelemetryRecord
	Stale bool `json:"stale"`
}

// TelemetryResponse represents the reconciled telemetry view.
type TelemetryResponse struct {
	Agents []TelemetryView `json:"agents"`
	Total  int             `json:"total"`
}

// Presence handles the reconciled presence map. Absence of a record means
// offline, so only online agents appear.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	state := h.d.Presence.All()

	agents := make([]models.PresenceRecord, 0, len(state))
	for _, rec := range state {
		agents = append(agents, rec)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Agent < agents[j].Agent })

	h.JSON(w, http.StatusOK, PresenceResponse{
		Agents: agents,
		Total:  len(agents),
		State:  h.d.Session.State().String(),
	})
}

// Telemetry handles the reconciled telemetry map.
func (h *Handler) Telemetry(w http.ResponseWriter, r *http.Request) {
	state := h.d.Telemetry.All()
	now := time.Now()

	agents := make([]TelemetryView, 0, len(state))
	for _, rec := range state {
		agents = append(agents, TelemetryView{TelemetryRecord: rec, Stale: rec.Stale(now)})
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Agent < agents[j].Agent })

	h.JSON(w, http.StatusOK, TelemetryResponse{Agents: agents, Total: len(agents)})
}
