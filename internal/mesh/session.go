package mesh

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/metrics"
	"github.com/eldtechnologies/mesh/internal/models"
	"github.com/eldtechnologies/mesh/internal/store"
)

// SessionState is the connection state of a LiveSyncSession.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Session timing defaults.
const (
	DefaultHeartbeatEvery = 10 * time.Second
	DefaultReconnectWait  = 2 * time.Second
)

// SessionConfig configures a LiveSyncSession.
type SessionConfig struct {
	Self           models.AgentRef // identity announced by the heartbeat
	Channel        string          // channel whose live messages are forwarded
	HeartbeatEvery time.Duration
	ReconnectWait  time.Duration
}

// LiveSyncSession owns one live connection to the external store: it loads
// presence/telemetry snapshots, fans out live subscriptions, heartbeats its
// own presence, and reconnects forever with a fixed backoff. Every live
// channel message is forwarded exactly once to OnMessage; deduplication
// against history pages is the presentation layer's job.
type LiveSyncSession struct {
	dialer    store.Dialer
	cfg       SessionConfig
	presence  *Reconciler[models.PresenceRecord]
	telemetry *Reconciler[models.TelemetryRecord]
	logger    zerolog.Logger

	// OnMessage and OnSystem receive live envelopes from the run loop.
	// Set before Run; both may be nil.
	OnMessage func(models.Envelope)
	OnSystem  func(models.Envelope)

	state atomic.Int32
}

// NewLiveSyncSession creates a session. Reconcilers are shared with the read
// path (handlers) and mutated only by this session's run loop.
func NewLiveSyncSession(
	dialer store.Dialer,
	cfg SessionConfig,
	presence *Reconciler[models.PresenceRecord],
	telemetry *Reconciler[models.TelemetryRecord],
	logger zerolog.Logger,
) *LiveSyncSession {
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = DefaultHeartbeatEvery
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultReconnectWait
	}
	return &LiveSyncSession{
		dialer:    dialer,
		cfg:       cfg,
		presence:  presence,
		telemetry: telemetry,
		logger:    logger,
	}
}

// State returns the current connection state.
func (s *LiveSyncSession) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *LiveSyncSession) setState(st SessionState) {
	s.state.Store(int32(st))
}

// Run connects and serves until ctx is done. Reconnection is automatic and
// unbounded; there is no manual retry path.
func (s *LiveSyncSession) Run(ctx context.Context) {
	s.presence.Restore(ctx)
	s.telemetry.Restore(ctx)

	for {
		s.setState(StateConnecting)
		conn, err := s.dialer.Dial(ctx)
		if err != nil {
			s.setState(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn().Err(err).Msg("live session connect failed")
			if !sleep(ctx, s.cfg.ReconnectWait) {
				return
			}
			continue
		}

		s.setState(StateConnected)
		metrics.SessionConnects.Inc()
		s.logger.Info().Str("channel", s.cfg.Channel).Msg("live session connected")

		err = s.serve(ctx, conn)
		s.setState(StateDisconnected)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Msg("live session disconnected, reconnecting")
		if !sleep(ctx, s.cfg.ReconnectWait) {
			return
		}
	}
}

// liveEvent is one update from any of the session's source tasks, funneled
// through a single queue so map mutation happens on one loop.
type liveEvent struct {
	presence  *Event[models.PresenceRecord]
	telemetry *Event[models.TelemetryRecord]
	message   *models.Envelope
	system    *models.Envelope
	fault     error
}

// serve runs one connected phase: snapshot load first, then live fan-out,
// until ctx is done or the connection faults. On return all subscriptions
// are cancelled, the heartbeat stops and the connection is drained.
func (s *LiveSyncSession) serve(ctx context.Context, conn store.Conn) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		if err := conn.Drain(); err != nil {
			s.logger.Debug().Err(err).Msg("connection drain failed")
		}
	}()

	// Snapshot before fan-out, so the initial view is complete and never
	// overwritten out of order by an empty load.
	if err := snapshotInto(serveCtx, conn.Presence(), s.presence); err != nil {
		return err
	}
	if err := snapshotInto(serveCtx, conn.Telemetry(), s.telemetry); err != nil {
		return err
	}

	events := make(chan liveEvent, 256)
	emit := func(ev liveEvent) {
		select {
		case events <- ev:
		case <-serveCtx.Done():
		}
	}

	if err := s.watchBucket(serveCtx, conn.Presence(), emit, decodePresenceWatch); err != nil {
		return err
	}
	if err := s.watchBucket(serveCtx, conn.Telemetry(), emit, decodeTelemetryWatch); err != nil {
		return err
	}

	subs := make([]store.Subscription, 0, 5)
	defer func() {
		for _, sub := range subs {
			if err := sub.Unsubscribe(); err != nil {
				s.logger.Debug().Err(err).Msg("unsubscribe failed")
			}
		}
	}()

	for _, sp := range []struct {
		subject string
		handler func(subject string, data []byte)
	}{
		{ChannelSubject(s.cfg.Channel), func(_ string, data []byte) {
			env, err := models.DecodeEnvelope(data)
			if err != nil {
				return
			}
			emit(liveEvent{message: &env})
		}},
		{SystemWildcard, func(_ string, data []byte) {
			env, err := models.DecodeEnvelope(data)
			if err != nil {
				return
			}
			emit(liveEvent{system: &env})
		}},
		{PresenceWildcard, func(_ string, data []byte) {
			var rec models.PresenceRecord
			if err := json.Unmarshal(data, &rec); err != nil || rec.Agent == "" {
				return
			}
			emit(liveEvent{presence: &Event[models.PresenceRecord]{
				Kind: EventFallbackPut, Key: rec.Agent, Record: rec,
			}})
		}},
		{TelemetryWildcard, func(_ string, data []byte) {
			var rec models.TelemetryRecord
			if err := json.Unmarshal(data, &rec); err != nil || rec.Agent == "" {
				return
			}
			emit(liveEvent{telemetry: &Event[models.TelemetryRecord]{
				Kind: EventFallbackPut, Key: rec.Agent, Record: rec,
			}})
		}},
		{ReceiptWildcard, func(_ string, _ []byte) {
			metrics.LiveEvents.WithLabelValues("receipt").Inc()
		}},
	} {
		sub, err := conn.Log().Subscribe(sp.subject, sp.handler)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
	}

	heartbeat := time.NewTicker(s.cfg.HeartbeatEvery)
	defer heartbeat.Stop()
	s.announce(serveCtx, conn)

	for {
		select {
		case <-ctx.Done():
			s.withdraw(conn)
			return ctx.Err()

		case <-heartbeat.C:
			if err := conn.Ping(serveCtx); err != nil {
				return err
			}
			s.announce(serveCtx, conn)

		case ev := <-events:
			switch {
			case ev.fault != nil:
				return ev.fault
			case ev.presence != nil:
				s.presence.Apply(serveCtx, *ev.presence)
				metrics.LiveEvents.WithLabelValues("presence").Inc()
			case ev.telemetry != nil:
				s.telemetry.Apply(serveCtx, *ev.telemetry)
				metrics.LiveEvents.WithLabelValues("telemetry").Inc()
			case ev.message != nil:
				metrics.LiveEvents.WithLabelValues("message").Inc()
				if s.OnMessage != nil {
					s.OnMessage(*ev.message)
				}
			case ev.system != nil:
				metrics.LiveEvents.WithLabelValues("system").Inc()
				if s.OnSystem != nil {
					s.OnSystem(*ev.system)
				}
			}
		}
	}
}

// watchBucket forwards one bucket's live changes into the event queue.
func (s *LiveSyncSession) watchBucket(ctx context.Context, bucket store.Bucket, emit func(liveEvent), decode func(store.KeyUpdate) (liveEvent, bool)) error {
	updates, err := bucket.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for up := range updates {
			if ev, ok := decode(up); ok {
				emit(ev)
			}
		}
		// A watch that ends while the session is still serving is a
		// connection fault.
		if ctx.Err() == nil {
			emit(liveEvent{fault: context.Canceled})
		}
	}()
	return nil
}

func decodePresenceWatch(up store.KeyUpdate) (liveEvent, bool) {
	ev := Event[models.PresenceRecord]{Key: up.Key}
	if up.Op != store.KeyPut {
		ev.Kind = EventWatchDelete
		return liveEvent{presence: &ev}, true
	}
	if err := json.Unmarshal(up.Value, &ev.Record); err != nil {
		return liveEvent{}, false
	}
	ev.Kind = EventWatchPut
	return liveEvent{presence: &ev}, true
}

func decodeTelemetryWatch(up store.KeyUpdate) (liveEvent, bool) {
	ev := Event[models.TelemetryRecord]{Key: up.Key}
	if up.Op != store.KeyPut {
		ev.Kind = EventWatchDelete
		return liveEvent{telemetry: &ev}, true
	}
	if err := json.Unmarshal(up.Value, &ev.Record); err != nil {
		return liveEvent{}, false
	}
	ev.Kind = EventWatchPut
	return liveEvent{telemetry: &ev}, true
}

// announce heartbeats this client's own presence on both the broadcast
// subject and the KV bucket.
func (s *LiveSyncSession) announce(ctx context.Context, conn store.Conn) {
	rec := models.PresenceRecord{
		Agent:    s.cfg.Self.Agent,
		Type:     s.cfg.Self.Type,
		Status:   models.StatusOnline,
		LastSeen: time.Now().Unix(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := conn.Log().Publish(ctx, PresenceSubject(rec.Agent), data); err != nil {
		s.logger.Debug().Err(err).Msg("presence publish failed")
	}
	if err := conn.Presence().Put(ctx, rec.Agent, data); err != nil {
		s.logger.Debug().Err(err).Msg("presence put failed")
	}
}

// withdraw marks this client offline on explicit disconnect. Best effort,
// run against a background context because the session context is done.
func (s *LiveSyncSession) withdraw(conn store.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rec := models.PresenceRecord{
		Agent:    s.cfg.Self.Agent,
		Type:     s.cfg.Self.Type,
		Status:   models.StatusOffline,
		LastSeen: time.Now().Unix(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_ = conn.Log().Publish(ctx, PresenceSubject(rec.Agent), data)
	_ = conn.Presence().Delete(ctx, rec.Agent)
}

// snapshotInto loads a full point-in-time view of bucket into r. Phase one
// drains the key listing completely; phase two fetches values. No value
// fetch may run while the key cursor is open.
func snapshotInto[R any](ctx context.Context, bucket store.Bucket, r *Reconciler[R]) error {
	keys, err := bucket.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		value, err := bucket.Get(ctx, key)
		if err != nil {
			continue
		}
		var rec R
		if err := json.Unmarshal(value, &rec); err != nil {
			continue
		}
		r.Apply(ctx, Event[R]{Kind: EventSnapshot, Key: key, Record: rec})
	}
	return nil
}

// sleep waits d or until ctx is done, reporting whether to keep running.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
