package models

// MembershipRecord tracks one participant of a channel, keyed in the
// membership bucket by "<channel>.<name>". At most one record exists per
// (channel, name) pair.
type MembershipRecord struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // "human" or "ai"
	JoinedAt int64  `json:"joinedAt"`
}
