// Package mesh implements the synchronization and query layer between client
// UIs and the durable message log: history pagination, bounded search,
// membership enumeration, presence/telemetry reconciliation, live session
// sync, the agent session bridge and publish rate limiting.
package mesh

import "strings"

// Subject layout of the external log.
const (
	ChannelPrefix     = "mesh.channel."
	PresencePrefix    = "mesh.presence."
	DMPrefix          = "mesh.dm."
	SystemWildcard    = "mesh.system.>"
	PresenceWildcard  = "mesh.presence.>"
	TelemetryWildcard = "mesh.telemetry.>"
	ReceiptWildcard   = "mesh.receipt.>"
)

// ChannelSubject maps a channel name to its log subject.
func ChannelSubject(channel string) string {
	return ChannelPrefix + channel
}

// ChannelFromSubject extracts the channel name from a channel subject.
func ChannelFromSubject(subject string) (string, bool) {
	if !strings.HasPrefix(subject, ChannelPrefix) {
		return "", false
	}
	name := subject[len(ChannelPrefix):]
	if name == "" {
		return "", false
	}
	return name, true
}

// PresenceSubject is the broadcast subject for one agent's presence.
func PresenceSubject(agent string) string {
	return PresencePrefix + agent
}

// SessionHistorySubject is the request/reply address for reading an agent's
// session history.
func SessionHistorySubject(agent string) string {
	return "mesh.session." + agent + ".history"
}

// SessionSendSubject is the request/reply address for driving an agent's
// session.
func SessionSendSubject(agent string) string {
	return "mesh.session." + agent + ".send"
}

// ValidPublishSubject reports whether subject is an acceptable destination
// for the publish path: a concrete channel subject. DM-style subjects are
// rejected outright rather than silently dropped.
func ValidPublishSubject(subject string) bool {
	if strings.HasPrefix(subject, DMPrefix) {
		return false
	}
	name, ok := ChannelFromSubject(subject)
	if !ok {
		return false
	}
	return !strings.ContainsAny(name, ".*> ")
}
