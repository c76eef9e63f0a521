package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/models"
	"github.com/eldtechnologies/mesh/internal/store/storetest"
)

func envelope(t *testing.T, id, agent string, ts float64, text string) []byte {
	t.Helper()
	data, err := json.Marshal(models.Envelope{
		Version:   models.EnvelopeVersion,
		ID:        id,
		From:      models.AgentRef{Agent: agent, Type: models.SenderHuman},
		To:        models.Address{Subject: ChannelSubject("general")},
		Content:   models.Content{Text: text},
		Timestamp: ts,
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestPageSortsAndWindows(t *testing.T) {
	log := storetest.NewMemLog()
	// Log delivery order deliberately out of timestamp order.
	log.Append(ChannelSubject("general"), envelope(t, "m3", "bob", 30, "three"))
	log.Append(ChannelSubject("general"), envelope(t, "m1", "alice", 10, "one"))
	log.Append(ChannelSubject("general"), envelope(t, "m4", "alice", 40, "four"))
	log.Append(ChannelSubject("general"), envelope(t, "m2", "bob", 20, "two"))

	h := NewHistoryReader(log, zerolog.Nop())
	page, hasMore := h.Page(context.Background(), "general", 0, 10)

	if hasMore {
		t.Fatal("expected hasMore=false")
	}
	if len(page) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(page))
	}
	for i, want := range []string{"m1", "m2", "m3", "m4"} {
		if page[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, page[i].ID)
		}
	}
}

func TestPageBeforeFilterAndLimit(t *testing.T) {
	log := storetest.NewMemLog()
	for i := 1; i <= 10; i++ {
		id := fmt.Sprintf("m%d", i)
		log.Append(ChannelSubject("general"), envelope(t, id, "alice", float64(i*10), id))
	}

	h := NewHistoryReader(log, zerolog.Nop())
	page, hasMore := h.Page(context.Background(), "general", 80, 3)

	if !hasMore {
		t.Fatal("expected hasMore=true, 7 messages qualify")
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(page))
	}
	// The last 3 messages strictly before timestamp 80.
	for i, want := range []string{"m5", "m6", "m7"} {
		if page[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, page[i].ID)
		}
	}
	for _, env := range page {
		if env.Timestamp >= 80 {
			t.Fatalf("message %s at %v violates before=80", env.ID, env.Timestamp)
		}
	}
}

func TestPageHasMoreExactBoundary(t *testing.T) {
	log := storetest.NewMemLog()
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("m%d", i)
		log.Append(ChannelSubject("general"), envelope(t, id, "alice", float64(i), id))
	}

	h := NewHistoryReader(log, zerolog.Nop())
	if _, hasMore := h.Page(context.Background(), "general", 0, 5); hasMore {
		t.Fatal("exactly limit messages: hasMore must be false")
	}
	if _, hasMore := h.Page(context.Background(), "general", 0, 4); !hasMore {
		t.Fatal("more than limit messages: hasMore must be true")
	}
}

func TestPageEmptyChannel(t *testing.T) {
	h := NewHistoryReader(storetest.NewMemLog(), zerolog.Nop())
	page, hasMore := h.Page(context.Background(), "empty", 0, 50)
	if len(page) != 0 || hasMore {
		t.Fatalf("expected empty page, got %d messages hasMore=%v", len(page), hasMore)
	}
}

func TestPageDropsMalformedEntries(t *testing.T) {
	log := storetest.NewMemLog()
	log.Append(ChannelSubject("general"), []byte("not json"))
	log.Append(ChannelSubject("general"), []byte(`{"version":99,"id":"x"}`))
	log.Append(ChannelSubject("general"), envelope(t, "m1", "alice", 1, "ok"))

	h := NewHistoryReader(log, zerolog.Nop())
	page, _ := h.Page(context.Background(), "general", 0, 10)
	if len(page) != 1 || page[0].ID != "m1" {
		t.Fatalf("expected only the valid message, got %+v", page)
	}
}

func TestPageLogErrorDegradesToEmpty(t *testing.T) {
	log := storetest.NewMemLog()
	log.Append(ChannelSubject("general"), envelope(t, "m1", "alice", 1, "x"))
	log.ReplayErr = errors.New("log unavailable")

	h := NewHistoryReader(log, zerolog.Nop())
	page, hasMore := h.Page(context.Background(), "general", 0, 10)
	if page == nil || len(page) != 0 || hasMore {
		t.Fatalf("expected cold empty page, got %d messages hasMore=%v", len(page), hasMore)
	}
}
