package mesh

import (
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/models"
)

// NewPresenceReconciler builds the reconciler for the presence map. Offline
// is modeled as absence, so a put with status=offline removes the agent.
func NewPresenceReconciler(cache StateCache, logger zerolog.Logger) *Reconciler[models.PresenceRecord] {
	return NewReconciler("presence", cache, func(p models.PresenceRecord) bool {
		return p.Status == models.StatusOffline
	}, logger)
}

// NewTelemetryReconciler builds the reconciler for the telemetry map.
// Telemetry has no absence value; staleness is derived at read time from the
// record timestamp instead.
func NewTelemetryReconciler(cache StateCache, logger zerolog.Logger) *Reconciler[models.TelemetryRecord] {
	return NewReconciler[models.TelemetryRecord]("telemetry", cache, nil, logger)
}
