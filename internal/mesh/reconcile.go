package mesh

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// EventKind tags which source produced a reconciliation event.
type EventKind int

const (
	EventSnapshot EventKind = iota
	EventWatchPut
	EventWatchDelete
	EventFallbackPut
)

// Event is one tagged update to a reconciled map. Events are applied in
// arrival order with last-writer-wins semantics regardless of source, so the
// merged view is never pinned to the snapshot.
type Event[R any] struct {
	Kind   EventKind
	Key    string
	Record R
}

// StateCache persists a reconciled map so the next startup can render a
// best-effort view before the live connection completes. Implementations are
// overwritten on every mutation, never merged backward.
type StateCache interface {
	Store(ctx context.Context, kind, key string, value []byte) error
	Remove(ctx context.Context, kind, key string) error
	Load(ctx context.Context, kind string) (map[string][]byte, error)
}

// Reconciler merges snapshot, watch and fallback events for one record type
// into a single live map. Mutation happens only through Apply; readers get
// copies and never mutate.
type Reconciler[R any] struct {
	name   string
	cache  StateCache // optional
	logger zerolog.Logger

	// absent reports whether a record models absence (e.g. offline
	// presence), in which case a put removes the key instead.
	absent func(R) bool

	mu    sync.RWMutex
	state map[string]R
}

// NewReconciler creates a reconciler. cache may be nil; absent may be nil
// when no record value models absence.
func NewReconciler[R any](name string, cache StateCache, absent func(R) bool, logger zerolog.Logger) *Reconciler[R] {
	return &Reconciler[R]{
		name:   name,
		cache:  cache,
		absent: absent,
		logger: logger,
		state:  make(map[string]R),
	}
}

// Apply merges one event into the map and writes through to the cache.
func (r *Reconciler[R]) Apply(ctx context.Context, ev Event[R]) {
	r.mu.Lock()
	switch {
	case ev.Kind == EventWatchDelete:
		delete(r.state, ev.Key)
	case r.absent != nil && r.absent(ev.Record):
		delete(r.state, ev.Key)
	default:
		r.state[ev.Key] = ev.Record
	}
	_, present := r.state[ev.Key]
	record := r.state[ev.Key]
	r.mu.Unlock()

	r.writeThrough(ctx, ev.Key, record, present)
}

// Restore pre-loads the map from the cache. Called once before the live
// connection is up; live events overwrite restored entries as they arrive.
func (r *Reconciler[R]) Restore(ctx context.Context) {
	if r.cache == nil {
		return
	}
	entries, err := r.cache.Load(ctx, r.name)
	if err != nil {
		r.logger.Debug().Err(err).Str("map", r.name).Msg("state cache load failed")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, value := range entries {
		var rec R
		if err := json.Unmarshal(value, &rec); err != nil {
			continue
		}
		if _, ok := r.state[key]; !ok {
			r.state[key] = rec
		}
	}
}

// Get returns the record for key, if present.
func (r *Reconciler[R]) Get(key string) (R, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.state[key]
	return rec, ok
}

// All returns a copy of the reconciled map.
func (r *Reconciler[R]) All() map[string]R {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]R, len(r.state))
	for k, v := range r.state {
		out[k] = v
	}
	return out
}

// Len returns the number of reconciled entries.
func (r *Reconciler[R]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.state)
}

func (r *Reconciler[R]) writeThrough(ctx context.Context, key string, record R, present bool) {
	if r.cache == nil {
		return
	}
	var err error
	if present {
		var value []byte
		value, err = json.Marshal(record)
		if err == nil {
			err = r.cache.Store(ctx, r.name, key, value)
		}
	} else {
		err = r.cache.Remove(ctx, r.name, key)
	}
	if err != nil {
		r.logger.Debug().Err(err).Str("map", r.name).Str("key", key).Msg("state cache write failed")
	}
}
