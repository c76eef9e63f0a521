package mesh

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/models"
	"github.com/eldtechnologies/mesh/internal/store"
)

// MaxMessageBytes caps the text of a published envelope.
const MaxMessageBytes = 4096

// Publisher is the guarded write path onto the log: subject validation,
// size cap and per-sender rate limiting ahead of the append.
type Publisher struct {
	log     store.Log
	limiter *RateLimiter
	logger  zerolog.Logger
}

// NewPublisher creates a publisher gated by limiter.
func NewPublisher(log store.Log, limiter *RateLimiter, logger zerolog.Logger) *Publisher {
	return &Publisher{log: log, limiter: limiter, logger: logger}
}

// Send validates, rate-limits and appends one envelope. Policy rejections
// (ErrInvalidSubject, ErrPayloadTooLarge, ErrRateLimited) surface to the
// caller with no retry.
func (p *Publisher) Send(ctx context.Context, from models.AgentRef, subject, text, replyTo string) (models.Envelope, error) {
	if text == "" {
		return models.Envelope{}, ErrEmptyMessage
	}
	if len(text) > MaxMessageBytes {
		return models.Envelope{}, ErrPayloadTooLarge
	}
	if !ValidPublishSubject(subject) {
		return models.Envelope{}, ErrInvalidSubject
	}
	if err := p.limiter.Allow(from.Agent); err != nil {
		p.logger.Warn().Str("sender", from.Agent).Str("subject", subject).Msg("publish rate limited")
		return models.Envelope{}, err
	}

	env := models.Envelope{
		Version:   models.EnvelopeVersion,
		ID:        ulid.Make().String(),
		From:      from,
		To:        models.Address{Subject: subject},
		Content:   models.Content{Text: text},
		Timestamp: float64(time.Now().UnixMilli()) / 1000.0,
		ReplyTo:   replyTo,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return models.Envelope{}, err
	}
	if err := p.log.Publish(ctx, subject, data); err != nil {
		return models.Envelope{}, err
	}
	return env, nil
}
