package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/models"
	"github.com/eldtechnologies/mesh/internal/store"
)

// MembershipStore manages channel membership records in a KV bucket, keyed
// by "<channel>.<name>".
type MembershipStore struct {
	kv     store.Bucket
	log    store.Log
	logger zerolog.Logger
}

// NewMembershipStore creates a membership store over the given bucket and
// log (the log is scanned when seeding from history).
func NewMembershipStore(kv store.Bucket, log store.Log, logger zerolog.Logger) *MembershipStore {
	return &MembershipStore{kv: kv, log: log, logger: logger}
}

func membershipKey(channel, name string) string {
	return channel + "." + name
}

// List returns the members of channel sorted by name. Enumeration is two
// strictly sequential phases: the full key listing is drained into a local
// slice first, and only then are values fetched. A value fetch while the key
// cursor is still open on the same bucket makes the store drop every key
// after the first, so the phases must never interleave.
func (m *MembershipStore) List(ctx context.Context, channel string) []models.MembershipRecord {
	// Phase 1: drain the complete key listing.
	keys, err := m.kv.Keys(ctx)
	if err != nil {
		m.logger.Debug().Err(err).Str("channel", channel).Msg("membership key listing failed, serving empty list")
		return []models.MembershipRecord{}
	}

	prefix := channel + "."
	selected := keys[:0]
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			selected = append(selected, key)
		}
	}

	// Phase 2: fetch values, with no cursor left open on the bucket.
	records := make([]models.MembershipRecord, 0, len(selected))
	for _, key := range selected {
		value, err := m.kv.Get(ctx, key)
		if err != nil {
			// Removed between phases, or transient; either way skip.
			continue
		}
		var rec models.MembershipRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records
}

// Add records a member. It is idempotent: an existing record for
// (channel, name) is left untouched.
func (m *MembershipStore) Add(ctx context.Context, channel, name, memberType string) error {
	key := membershipKey(channel, name)

	if _, err := m.kv.Get(ctx, key); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrKeyNotFound) {
		return err
	}

	rec := models.MembershipRecord{
		Name:     name,
		Type:     memberType,
		JoinedAt: time.Now().Unix(),
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return m.kv.Put(ctx, key, value)
}

// Remove deletes a member. Removing an absent member is not an error.
func (m *MembershipStore) Remove(ctx context.Context, channel, name string) error {
	return m.kv.Delete(ctx, membershipKey(channel, name))
}

// SeedFromHistory backfills membership for a channel from its log, adding
// each distinct sender exactly once. Used for channels that predate explicit
// joins.
func (m *MembershipStore) SeedFromHistory(ctx context.Context, channel string) error {
	seen := make(map[string]string)
	err := m.log.Replay(ctx, ChannelSubject(channel), func(data []byte) bool {
		env, err := models.DecodeEnvelope(data)
		if err != nil {
			return true
		}
		if env.From.Agent == "" {
			return true
		}
		if _, ok := seen[env.From.Agent]; !ok {
			seen[env.From.Agent] = env.From.Type
		}
		return true
	})
	if err != nil {
		return err
	}

	for agent, agentType := range seen {
		if agentType == "" || agentType == models.SenderSystem {
			agentType = models.SenderAI
		}
		if err := m.Add(ctx, channel, agent, agentType); err != nil {
			return err
		}
	}
	return nil
}
