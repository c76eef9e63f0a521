// Package storetest provides in-memory Log and Bucket implementations for
// exercising the sync layer without a live server.
package storetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/eldtechnologies/mesh/internal/store"
)

// ErrNoResponders is returned by Request when no handler is registered,
// mirroring a request to an address nobody serves.
var ErrNoResponders = errors.New("no responders available for request")

// MemLog is an in-memory store.Log.
type MemLog struct {
	mu       sync.Mutex
	entries  map[string][][]byte
	subs     []*memSub
	handlers map[string]func(data []byte) []byte

	// Fault injection and pacing.
	ReplayErr   error
	PublishErr  error
	ReplayDelay time.Duration // per-entry delay during Replay
}

// NewMemLog creates an empty log.
func NewMemLog() *MemLog {
	return &MemLog{
		entries:  make(map[string][][]byte),
		handlers: make(map[string]func(data []byte) []byte),
	}
}

// Append seeds an entry without going through the publish path.
func (l *MemLog) Append(subject string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[subject] = append(l.entries[subject], data)
}

// HandleRequest registers a request/reply handler for subject.
func (l *MemLog) HandleRequest(subject string, fn func(data []byte) []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[subject] = fn
}

func (l *MemLog) Publish(ctx context.Context, subject string, data []byte) error {
	l.mu.Lock()
	if l.PublishErr != nil {
		err := l.PublishErr
		l.mu.Unlock()
		return err
	}
	l.entries[subject] = append(l.entries[subject], data)
	subs := make([]*memSub, len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, sub := range subs {
		if matchSubject(sub.pattern, subject) {
			sub.fn(subject, data)
		}
	}
	return nil
}

func (l *MemLog) Replay(ctx context.Context, subject string, fn func(data []byte) bool) error {
	l.mu.Lock()
	if l.ReplayErr != nil {
		err := l.ReplayErr
		l.mu.Unlock()
		return err
	}
	entries := make([][]byte, len(l.entries[subject]))
	copy(entries, l.entries[subject])
	delay := l.ReplayDelay
	l.mu.Unlock()

	for _, data := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		if !fn(data) {
			return nil
		}
	}
	return nil
}

func (l *MemLog) Subscribe(subject string, fn func(subject string, data []byte)) (store.Subscription, error) {
	sub := &memSub{log: l, pattern: subject, fn: fn}
	l.mu.Lock()
	l.subs = append(l.subs, sub)
	l.mu.Unlock()
	return sub, nil
}

func (l *MemLog) Request(ctx context.Context, subject string, data []byte, timeout time.Duration) ([]byte, error) {
	l.mu.Lock()
	fn := l.handlers[subject]
	l.mu.Unlock()
	if fn == nil {
		return nil, ErrNoResponders
	}
	return fn(data), nil
}

func (l *MemLog) Subjects(ctx context.Context, filter string) (map[string]uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64)
	for subject, entries := range l.entries {
		if matchSubject(filter, subject) && len(entries) > 0 {
			out[subject] = uint64(len(entries))
		}
	}
	return out, nil
}

type memSub struct {
	log     *MemLog
	pattern string
	fn      func(subject string, data []byte)
}

func (s *memSub) Unsubscribe() error {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	for i, sub := range s.log.subs {
		if sub == s {
			s.log.subs = append(s.log.subs[:i], s.log.subs[i+1:]...)
			break
		}
	}
	return nil
}

// matchSubject implements token matching with "*" (one token) and a
// trailing ">" (rest).
func matchSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return i < len(st)
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

// MemBucket is an in-memory store.Bucket.
type MemBucket struct {
	mu       sync.Mutex
	data     map[string][]byte
	watchers []*memWatcher

	// GetHook runs at the start of every Get, outside any key cursor. Tests
	// use it to mutate the bucket between enumeration phases.
	GetHook func(key string)

	KeysErr error
}

// NewMemBucket creates an empty bucket.
func NewMemBucket() *MemBucket {
	return &MemBucket{data: make(map[string][]byte)}
}

func (b *MemBucket) Get(ctx context.Context, key string) ([]byte, error) {
	if b.GetHook != nil {
		b.GetHook(key)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	value, ok := b.data[key]
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	return value, nil
}

func (b *MemBucket) Put(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	b.data[key] = value
	watchers := b.snapshotWatchers()
	b.mu.Unlock()
	b.notify(watchers, store.KeyUpdate{Key: key, Value: value, Op: store.KeyPut})
	return nil
}

func (b *MemBucket) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	delete(b.data, key)
	watchers := b.snapshotWatchers()
	b.mu.Unlock()
	b.notify(watchers, store.KeyUpdate{Key: key, Op: store.KeyDelete})
	return nil
}

func (b *MemBucket) Keys(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.KeysErr != nil {
		return nil, b.KeysErr
	}
	keys := make([]string, 0, len(b.data))
	for key := range b.data {
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *MemBucket) Watch(ctx context.Context) (<-chan store.KeyUpdate, error) {
	w := &memWatcher{ch: make(chan store.KeyUpdate, 64)}
	b.mu.Lock()
	b.watchers = append(b.watchers, w)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for i, other := range b.watchers {
			if other == w {
				b.watchers = append(b.watchers[:i], b.watchers[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		w.close()
	}()
	return w.ch, nil
}

func (b *MemBucket) snapshotWatchers() []*memWatcher {
	out := make([]*memWatcher, len(b.watchers))
	copy(out, b.watchers)
	return out
}

func (b *MemBucket) notify(watchers []*memWatcher, up store.KeyUpdate) {
	for _, w := range watchers {
		w.send(up)
	}
}

type memWatcher struct {
	mu     sync.Mutex
	ch     chan store.KeyUpdate
	closed bool
}

func (w *memWatcher) send(up store.KeyUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- up:
	default:
	}
}

func (w *memWatcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}

// MemConn is an in-memory store.Conn.
type MemConn struct {
	MsgLog          *MemLog
	MembershipStore *MemBucket
	PresenceStore   *MemBucket
	TelemetryStore  *MemBucket

	mu      sync.Mutex
	pingErr error
	drains  int
}

// NewMemConn creates a connection over fresh in-memory stores.
func NewMemConn() *MemConn {
	return &MemConn{
		MsgLog:          NewMemLog(),
		MembershipStore: NewMemBucket(),
		PresenceStore:   NewMemBucket(),
		TelemetryStore:  NewMemBucket(),
	}
}

func (c *MemConn) Log() store.Log           { return c.MsgLog }
func (c *MemConn) Membership() store.Bucket { return c.MembershipStore }
func (c *MemConn) Presence() store.Bucket   { return c.PresenceStore }
func (c *MemConn) Telemetry() store.Bucket  { return c.TelemetryStore }

func (c *MemConn) Drain() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drains++
	return nil
}

// Drains reports how many times the connection was drained.
func (c *MemConn) Drains() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drains
}

func (c *MemConn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingErr
}

// FailPing makes every subsequent Ping return err.
func (c *MemConn) FailPing(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
}

// MemDialer hands out connections in sequence, repeating the last one.
type MemDialer struct {
	mu    sync.Mutex
	conns []*MemConn
	dials int

	DialErr error // returned before any connection when set
}

// NewMemDialer creates a dialer over the given connections.
func NewMemDialer(conns ...*MemConn) *MemDialer {
	return &MemDialer{conns: conns}
}

func (d *MemDialer) Dial(ctx context.Context) (store.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	i := d.dials
	if i >= len(d.conns) {
		i = len(d.conns) - 1
	}
	d.dials++
	return d.conns[i], nil
}

// Dials reports how many successful dials happened.
func (d *MemDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// SetDialErr makes subsequent dials fail with err; nil restores dialing.
func (d *MemDialer) SetDialErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DialErr = err
}
