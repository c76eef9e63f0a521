package models

import "time"

// Presence status values. Offline is modeled as absence: a record with
// StatusOffline removes the key from the reconciled map.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// TelemetryStaleAfter is how old a telemetry record may be before readers
// treat it as stale. Staleness is derived at read time, never stored.
const TelemetryStaleAfter = 120 * time.Second

// PresenceRecord is the ephemeral per-agent presence state. Each update
// supersedes the previous record for the same agent.
type PresenceRecord struct {
	Agent    string `json:"agent"`
	Type     string `json:"type"`
	Status   string `json:"status"` // "online" or "offline"
	LastSeen int64  `json:"lastSeen"`
}

// SessionInfo describes one session reported by an agent's telemetry.
type SessionInfo struct {
	Key        string `json:"key"`
	Kind       string `json:"kind"`
	Channel    string `json:"channel"`
	Tokens     int64  `json:"tokens"`
	ContextMax int64  `json:"contextMax"`
	UpdatedAt  int64  `json:"updatedAt"`
	Model      string `json:"model,omitempty"`
}

// TelemetrySessions aggregates an agent's session counts.
type TelemetrySessions struct {
	Total  int           `json:"total"`
	Active int           `json:"active"`
	List   []SessionInfo `json:"list"`
}

// TelemetrySubAgents counts an agent's sub-agent activity.
type TelemetrySubAgents struct {
	Running   int `json:"running"`
	Completed int `json:"completed"`
}

// TelemetryRecord is the latest self-reported state of an agent. Last write
// wins per agent; there is no field-level merging.
type TelemetryRecord struct {
	Agent     string                 `json:"agent"`
	Version   string                 `json:"version"`
	Model     string                 `json:"model"`
	Uptime    int64                  `json:"uptime"`
	Sessions  TelemetrySessions      `json:"sessions"`
	SubAgents TelemetrySubAgents     `json:"subAgents"`
	Tokens    map[string]int64       `json:"tokens,omitempty"`
	Messages  map[string]int64       `json:"messages,omitempty"`
	System    map[string]interface{} `json:"system,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Stale reports whether the record is older than the staleness threshold.
func (t TelemetryRecord) Stale(now time.Time) bool {
	return now.Unix()-t.Timestamp > int64(TelemetryStaleAfter.Seconds())
}
