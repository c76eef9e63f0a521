package mesh

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/models"
	"github.com/eldtechnologies/mesh/internal/store/storetest"
)

func testSender() models.AgentRef {
	return models.AgentRef{Agent: "alice", Type: models.SenderHuman}
}

func TestPublisherSend(t *testing.T) {
	log := storetest.NewMemLog()
	p := NewPublisher(log, NewRateLimiter(30, time.Minute), zerolog.Nop())

	env, err := p.Send(context.Background(), testSender(), ChannelSubject("general"), "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if env.ID == "" {
		t.Fatal("expected an assigned message id")
	}
	if env.Version != models.EnvelopeVersion {
		t.Fatalf("unexpected envelope version %d", env.Version)
	}
	if env.Timestamp <= 0 {
		t.Fatal("expected a positive timestamp")
	}

	// The envelope landed on the log and pages back out.
	page, _ := NewHistoryReader(log, zerolog.Nop()).Page(context.Background(), "general", 0, 10)
	if len(page) != 1 || page[0].ID != env.ID {
		t.Fatalf("published message not readable from history: %+v", page)
	}
}

func TestPublisherRejections(t *testing.T) {
	p := NewPublisher(storetest.NewMemLog(), NewRateLimiter(30, time.Minute), zerolog.Nop())
	ctx := context.Background()

	if _, err := p.Send(ctx, testSender(), ChannelSubject("general"), "", ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	big := strings.Repeat("x", MaxMessageBytes+1)
	if _, err := p.Send(ctx, testSender(), ChannelSubject("general"), big, ""); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if _, err := p.Send(ctx, testSender(), "mesh.dm.bob", "psst", ""); !errors.Is(err, ErrInvalidSubject) {
		t.Fatalf("expected ErrInvalidSubject for DM subject, got %v", err)
	}
}

func TestPublisherRateLimited(t *testing.T) {
	log := storetest.NewMemLog()
	p := NewPublisher(log, NewRateLimiter(2, time.Minute), zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := p.Send(ctx, testSender(), ChannelSubject("general"), "ok", ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.Send(ctx, testSender(), ChannelSubject("general"), "nope", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	// The rejected message never reached the log.
	page, _ := NewHistoryReader(log, zerolog.Nop()).Page(ctx, "general", 0, 10)
	if len(page) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(page))
	}
}

func TestPublisherLogFailure(t *testing.T) {
	log := storetest.NewMemLog()
	log.PublishErr = errors.New("log down")
	p := NewPublisher(log, NewRateLimiter(30, time.Minute), zerolog.Nop())

	if _, err := p.Send(context.Background(), testSender(), ChannelSubject("general"), "hello", ""); err == nil {
		t.Fatal("expected publish failure to surface")
	}
}
