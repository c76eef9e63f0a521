package mesh

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/models"
	"github.com/eldtechnologies/mesh/internal/store"
)

// Bridge timeouts. History reads already-materialized state; send waits out
// a full agent turn on the far side.
const (
	BridgeHistoryTimeout = 10 * time.Second
	BridgeSendTimeout    = 120 * time.Second
)

// SessionHistoryResult is the reply to a session history request.
type SessionHistoryResult struct {
	SessionKey string                         `json:"sessionKey,omitempty"`
	Messages   []models.SessionHistoryMessage `json:"messages,omitempty"`
	Success    bool                           `json:"success"`
	Error      string                         `json:"error,omitempty"`
}

// SessionSendResult is the reply to a session send request.
type SessionSendResult struct {
	Reply   string `json:"reply,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SessionBridge proxies blocking request/reply calls to per-agent session
// handlers. It performs no retries: retrying a send is not safe without
// idempotency guarantees from the remote agent, so retry policy belongs to
// the caller.
type SessionBridge struct {
	log    store.Log
	logger zerolog.Logger
}

// NewSessionBridge creates a bridge over the given log's request/reply path.
func NewSessionBridge(log store.Log, logger zerolog.Logger) *SessionBridge {
	return &SessionBridge{log: log, logger: logger}
}

type sessionRequest struct {
	SessionKey string `json:"sessionKey"`
	Text       string `json:"text,omitempty"`
}

// History fetches the history of one remote session. Timeouts and malformed
// replies come back as success=false with a populated error, never as a Go
// error.
func (b *SessionBridge) History(ctx context.Context, agent, sessionKey string) SessionHistoryResult {
	payload, _ := json.Marshal(sessionRequest{SessionKey: sessionKey})

	reply, err := b.log.Request(ctx, SessionHistorySubject(agent), payload, BridgeHistoryTimeout)
	if err != nil {
		b.logger.Debug().Err(err).Str("agent", agent).Msg("session history request failed")
		return SessionHistoryResult{Success: false, Error: err.Error()}
	}

	var result SessionHistoryResult
	if err := json.Unmarshal(reply, &result); err != nil {
		return SessionHistoryResult{Success: false, Error: "malformed session history reply"}
	}
	if result.Error == "" {
		result.Success = true
	}
	return result
}

// Send drives one turn of a remote session.
func (b *SessionBridge) Send(ctx context.Context, agent, sessionKey, text string) SessionSendResult {
	payload, _ := json.Marshal(sessionRequest{SessionKey: sessionKey, Text: text})

	reply, err := b.log.Request(ctx, SessionSendSubject(agent), payload, BridgeSendTimeout)
	if err != nil {
		b.logger.Debug().Err(err).Str("agent", agent).Msg("session send request failed")
		return SessionSendResult{Success: false, Error: err.Error()}
	}

	var result SessionSendResult
	if err := json.Unmarshal(reply, &result); err != nil {
		return SessionSendResult{Success: false, Error: "malformed session send reply"}
	}
	if result.Error == "" {
		result.Success = true
	}
	return result
}
