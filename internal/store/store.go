package store

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Bucket.Get for absent keys.
var ErrKeyNotFound = errors.New("key not found")

// Log is the durable, replayable message log this layer reads and writes.
// The NATS JetStream binding implements it; tests substitute fakes.
type Log interface {
	// Publish appends data to the log under subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Replay scans subject from the earliest retained entry, calling fn for
	// each entry in log order until fn returns false, the subject is
	// exhausted, or ctx is done. The underlying cursor is ephemeral and
	// expires on its own after a short inactivity window, so concurrent
	// replays never collide on a shared cursor identity.
	Replay(ctx context.Context, subject string, fn func(data []byte) bool) error

	// Subscribe delivers live entries published to subject (which may
	// contain wildcards). Delivery order is preserved within one
	// subscription only.
	Subscribe(subject string, fn func(subject string, data []byte)) (Subscription, error)

	// Request performs a blocking request/reply round trip.
	Request(ctx context.Context, subject string, data []byte, timeout time.Duration) ([]byte, error)

	// Subjects enumerates the log's subjects matching filter along with
	// their entry counts.
	Subjects(ctx context.Context, filter string) (map[string]uint64, error)
}

// Subscription is a handle to one live subscription.
type Subscription interface {
	Unsubscribe() error
}

// KeyOp is the kind of change carried by a watch update.
type KeyOp int

const (
	KeyPut KeyOp = iota
	KeyDelete
	KeyPurge
)

// KeyUpdate is one change observed on a watched bucket.
type KeyUpdate struct {
	Key   string
	Value []byte
	Op    KeyOp
}

// Bucket is one key-value bucket with watch/list semantics.
//
// Keys must drain the server-side key cursor completely before returning:
// running a value fetch while a key cursor is still open on the same bucket
// silently drops entries on the reference store, so enumeration is always
// two sequential phases (list all keys, then fetch values).
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)

	// Watch streams live changes to the bucket until ctx is done. The
	// returned channel is closed when the watch ends.
	Watch(ctx context.Context) (<-chan KeyUpdate, error)
}

// Conn bundles everything reachable over one connection to the external
// store: the message log and the three KV buckets.
type Conn interface {
	Log() Log
	Membership() Bucket
	Presence() Bucket
	Telemetry() Bucket

	// Drain lets in-flight publishes complete, then closes the connection.
	Drain() error

	Ping(ctx context.Context) error
}

// Dialer establishes connections. The NATS dialer refreshes its credential
// grant when expired before dialing, so long disconnects never retry with a
// dead credential.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}
