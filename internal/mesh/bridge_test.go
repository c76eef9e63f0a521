package mesh

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/models"
	"github.com/eldtechnologies/mesh/internal/store/storetest"
)

func TestBridgeHistorySuccess(t *testing.T) {
	log := storetest.NewMemLog()
	log.HandleRequest(SessionHistorySubject("worker"), func(data []byte) []byte {
		var req struct {
			SessionKey string `json:"sessionKey"`
		}
		if err := json.Unmarshal(data, &req); err != nil || req.SessionKey != "sess-1" {
			t.Fatalf("bad request payload: %s", data)
		}
		reply, _ := json.Marshal(SessionHistoryResult{
			SessionKey: "sess-1",
			Messages: []models.SessionHistoryMessage{
				{Role: "user", Content: []models.ContentItem{{Type: "text", Text: "hi"}}},
			},
		})
		return reply
	})

	b := NewSessionBridge(log, zerolog.Nop())
	result := b.History(context.Background(), "worker", "sess-1")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if len(result.Messages) != 1 || result.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages: %+v", result.Messages)
	}
}

func TestBridgeNoResponder(t *testing.T) {
	b := NewSessionBridge(storetest.NewMemLog(), zerolog.Nop())

	result := b.History(context.Background(), "ghost", "sess-1")
	if result.Success {
		t.Fatal("expected success=false when nobody serves the agent")
	}
	if result.Error == "" {
		t.Fatal("expected a populated error")
	}

	sent := b.Send(context.Background(), "ghost", "sess-1", "hello")
	if sent.Success || sent.Error == "" {
		t.Fatalf("expected failed send, got %+v", sent)
	}
}

func TestBridgeMalformedReply(t *testing.T) {
	log := storetest.NewMemLog()
	log.HandleRequest(SessionSendSubject("worker"), func([]byte) []byte {
		return []byte("not json")
	})

	b := NewSessionBridge(log, zerolog.Nop())
	result := b.Send(context.Background(), "worker", "sess-1", "hello")
	if result.Success {
		t.Fatal("expected success=false on malformed reply")
	}
	if result.Error == "" {
		t.Fatal("expected a populated error")
	}
}

func TestBridgeRemoteError(t *testing.T) {
	log := storetest.NewMemLog()
	log.HandleRequest(SessionSendSubject("worker"), func([]byte) []byte {
		reply, _ := json.Marshal(SessionSendResult{Error: "session not found"})
		return reply
	})

	b := NewSessionBridge(log, zerolog.Nop())
	result := b.Send(context.Background(), "worker", "missing", "hello")
	if result.Success {
		t.Fatal("a reply carrying an error must not be marked successful")
	}
	if result.Error != "session not found" {
		t.Fatalf("expected remote error passed through, got %q", result.Error)
	}
}

func TestBridgeSendReply(t *testing.T) {
	log := storetest.NewMemLog()
	log.HandleRequest(SessionSendSubject("worker"), func(data []byte) []byte {
		var req struct {
			SessionKey string `json:"sessionKey"`
			Text       string `json:"text"`
		}
		if err := json.Unmarshal(data, &req); err != nil || req.Text != "ship it" {
			t.Fatalf("bad request payload: %s", data)
		}
		reply, _ := json.Marshal(SessionSendResult{Reply: "done"})
		return reply
	})

	b := NewSessionBridge(log, zerolog.Nop())
	result := b.Send(context.Background(), "worker", "sess-1", "ship it")
	if !result.Success || result.Reply != "done" {
		t.Fatalf("unexpected result: %+v", result)
	}
}
