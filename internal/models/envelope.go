package models

import (
	"encoding/json"
	"errors"
)

// EnvelopeVersion is the only wire version this layer understands.
const EnvelopeVersion = 1

// Sender types.
const (
	SenderHuman  = "human"
	SenderAI     = "ai"
	SenderSystem = "system"
)

var (
	errBadVersion = errors.New("unknown envelope version")
	errNoID       = errors.New("envelope missing id")
)

// AgentRef identifies the sender of an envelope.
type AgentRef struct {
	Agent string `json:"agent"`
	Type  string `json:"type"` // "human", "ai" or "system"
}

// Address is the destination of an envelope (a channel or DM subject).
type Address struct {
	Subject string `json:"subject"`
}

// Content carries the message body.
type Content struct {
	Text string `json:"text"`
}

// Envelope is the atomic unit of communication on the log. Envelopes are
// immutable once published; timestamps are non-decreasing per publisher but
// not globally ordered, so consumers sort explicitly and never rely on log
// delivery order.
type Envelope struct {
	Version   int      `json:"version"`
	ID        string   `json:"id"`
	From      AgentRef `json:"from"`
	To        Address  `json:"to"`
	Content   Content  `json:"content"`
	Timestamp float64  `json:"timestamp"` // seconds since epoch
	ReplyTo   string   `json:"replyTo,omitempty"`
}

// DecodeEnvelope parses an envelope off the wire. Callers drop entries that
// fail to decode; a decode error never aborts a batch operation.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Version != EnvelopeVersion {
		return Envelope{}, errBadVersion
	}
	if env.ID == "" {
		return Envelope{}, errNoID
	}
	return env, nil
}
