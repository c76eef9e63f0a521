package mesh

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/store/storetest"
)

func TestMembershipAddListRemove(t *testing.T) {
	ctx := context.Background()
	kv := storetest.NewMemBucket()
	m := NewMembershipStore(kv, storetest.NewMemLog(), zerolog.Nop())

	if err := m.Add(ctx, "general", "bob", "human"); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(ctx, "general", "alice", "ai"); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(ctx, "ops", "carol", "human"); err != nil {
		t.Fatal(err)
	}

	members := m.List(ctx, "general")
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].Name != "alice" || members[1].Name != "bob" {
		t.Fatalf("expected sorted [alice bob], got %+v", members)
	}
	if members[0].Type != "ai" {
		t.Fatalf("expected alice type=ai, got %s", members[0].Type)
	}

	if err := m.Remove(ctx, "general", "bob"); err != nil {
		t.Fatal(err)
	}
	if got := m.List(ctx, "general"); len(got) != 1 || got[0].Name != "alice" {
		t.Fatalf("expected only alice after remove, got %+v", got)
	}
}

func TestMembershipAddIdempotent(t *testing.T) {
	ctx := context.Background()
	kv := storetest.NewMemBucket()
	m := NewMembershipStore(kv, storetest.NewMemLog(), zerolog.Nop())

	if err := m.Add(ctx, "general", "alice", "human"); err != nil {
		t.Fatal(err)
	}
	first := m.List(ctx, "general")[0]

	// Re-adding with a different type must not overwrite the record.
	if err := m.Add(ctx, "general", "alice", "ai"); err != nil {
		t.Fatal(err)
	}
	members := m.List(ctx, "general")
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	if members[0] != first {
		t.Fatalf("record changed on duplicate add: %+v -> %+v", first, members[0])
	}
}

func TestMembershipRemoveAbsent(t *testing.T) {
	m := NewMembershipStore(storetest.NewMemBucket(), storetest.NewMemLog(), zerolog.Nop())
	if err := m.Remove(context.Background(), "general", "ghost"); err != nil {
		t.Fatalf("removing an absent member must not fail: %v", err)
	}
}

// A value fetch during enumeration must see the key listing already fully
// drained: mutations that land mid-fetch may drop the touched key but can
// never truncate the listing itself.
func TestMembershipListPhasesDoNotInterleave(t *testing.T) {
	ctx := context.Background()
	kv := storetest.NewMemBucket()
	m := NewMembershipStore(kv, storetest.NewMemLog(), zerolog.Nop())

	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		if err := m.Add(ctx, "general", name, "human"); err != nil {
			t.Fatal(err)
		}
	}

	gets := 0
	kv.GetHook = func(key string) {
		gets++
		if gets == 1 {
			// Concurrent writers land while values are being fetched.
			_ = kv.Put(context.Background(), "general.eve", []byte(`{"name":"eve","type":"ai","joinedAt":1}`))
			_ = kv.Delete(context.Background(), "general.dave")
		}
	}

	members := m.List(ctx, "general")
	names := make(map[string]bool, len(members))
	for _, rec := range members {
		names[rec.Name] = true
	}

	// The three untouched members always survive.
	for _, want := range []string{"alice", "bob", "carol"} {
		if !names[want] {
			t.Fatalf("member %s dropped from listing: %+v", want, members)
		}
	}
	// A key added after the listing was drained is not part of this view.
	if names["eve"] {
		t.Fatal("member added mid-fetch leaked into the snapshot")
	}
}

func TestMembershipListKeysErrorServesEmpty(t *testing.T) {
	ctx := context.Background()
	kv := storetest.NewMemBucket()
	m := NewMembershipStore(kv, storetest.NewMemLog(), zerolog.Nop())
	if err := m.Add(ctx, "general", "alice", "human"); err != nil {
		t.Fatal(err)
	}

	kv.KeysErr = storetest.ErrNoResponders
	if got := m.List(ctx, "general"); len(got) != 0 {
		t.Fatalf("expected empty list on enumeration failure, got %+v", got)
	}
}

func TestSeedFromHistory(t *testing.T) {
	ctx := context.Background()
	log := storetest.NewMemLog()
	log.Append(ChannelSubject("general"), envelope(t, "m1", "alice", 1, "hi"))
	log.Append(ChannelSubject("general"), envelope(t, "m2", "alice", 2, "again"))
	log.Append(ChannelSubject("general"), envelope(t, "m3", "bob", 3, "yo"))

	m := NewMembershipStore(storetest.NewMemBucket(), log, zerolog.Nop())
	if err := m.SeedFromHistory(ctx, "general"); err != nil {
		t.Fatal(err)
	}

	members := m.List(ctx, "general")
	if len(members) != 2 {
		t.Fatalf("expected 2 distinct senders, got %+v", members)
	}
	if members[0].Name != "alice" || members[1].Name != "bob" {
		t.Fatalf("expected [alice bob], got %+v", members)
	}
}
