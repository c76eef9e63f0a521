package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/cache"
	"github.com/eldtechnologies/mesh/internal/mesh"
	"github.com/eldtechnologies/mesh/internal/models"
	"github.com/eldtechnologies/mesh/internal/store"
)

// nameRegex validates channel and agent names: alphanumeric, hyphens,
// underscores, 1-50 chars. Dots are excluded, they are key and subject
// separators.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// Deps bundles the components the handlers serve.
type Deps struct {
	History   *mesh.HistoryReader
	Search    *mesh.SearchScanner
	Members   *mesh.MembershipStore
	Publisher *mesh.Publisher
	Bridge    *mesh.SessionBridge
	Presence  *mesh.Reconciler[models.PresenceRecord]
	Telemetry *mesh.Reconciler[models.TelemetryRecord]
	Session   *mesh.LiveSyncSession
	Conn      store.Conn
	Cache     *cache.RedisCache // optional
	Logger    zerolog.Logger
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	d Deps
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(d Deps) *Handler {
	return &Handler{d: d}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sender extracts the authenticated sender identity placed in headers by the
// login layer in front of this gateway. Unidentified callers are treated as
// human.
func sender(r *http.Request) models.AgentRef {
	ref := models.AgentRef{
		Agent: r.Header.Get("X-Mesh-Agent"),
		Type:  r.Header.Get("X-Mesh-Agent-Type"),
	}
	if ref.Agent == "" {
		ref.Agent = "anonymous"
	}
	switch ref.Type {
	case models.SenderHuman, models.SenderAI, models.SenderSystem:
	default:
		ref.Type = models.SenderHuman
	}
	return ref
}

func isValidName(name string) bool {
	return nameRegex.MatchString(name)
}
