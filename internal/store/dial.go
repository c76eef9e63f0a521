package store

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/creds"
)

// DialConfig names the external stream and buckets one connection binds to.
type DialConfig struct {
	URL    string // direct server URL; ignored when an issuer is configured
	Name   string // connection name reported to the server
	Stream string

	MembershipBucket string
	PresenceBucket   string
	TelemetryBucket  string
}

// NATSDialer dials the external store. When a credential issuer is
// configured, every dial checks the cached grant's expiry and re-fetches a
// fresh one before connecting.
type NATSDialer struct {
	cfg    DialConfig
	issuer *creds.Issuer
	logger zerolog.Logger

	mu    sync.Mutex
	grant *creds.Grant
}

// NewNATSDialer creates a dialer. issuer may be nil, in which case cfg.URL
// is used without authentication.
func NewNATSDialer(cfg DialConfig, issuer *creds.Issuer, logger zerolog.Logger) *NATSDialer {
	return &NATSDialer{cfg: cfg, issuer: issuer, logger: logger}
}

// Dial connects and binds the stream and buckets. Stream and bucket setup is
// idempotent, the external deployment owns the data.
func (d *NATSDialer) Dial(ctx context.Context) (Conn, error) {
	url := d.cfg.URL
	opts := []nats.Option{
		nats.Name(d.cfg.Name),
		nats.Timeout(10 * time.Second),
		// The session layer owns reconnection; the raw connection does not
		// retry behind its back.
		nats.RetryOnFailedConnect(false),
		nats.MaxReconnects(0),
	}

	if d.issuer != nil {
		grant, err := d.freshGrant(ctx)
		if err != nil {
			return nil, err
		}
		url = grant.URL
		opts = append(opts, nats.Token(grant.Seed))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, err
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     d.cfg.Stream,
		Subjects: []string{"mesh.channel.>", "mesh.system.>"},
	}); err != nil {
		nc.Close()
		return nil, err
	}

	conn := &natsConn{
		nc:  nc,
		log: &natsLog{nc: nc, js: js, stream: d.cfg.Stream, logger: d.logger},
	}

	for _, b := range []struct {
		name   string
		target **natsBucket
	}{
		{d.cfg.MembershipBucket, &conn.membership},
		{d.cfg.PresenceBucket, &conn.presence},
		{d.cfg.TelemetryBucket, &conn.telemetry},
	} {
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: b.name})
		if err != nil {
			nc.Close()
			return nil, err
		}
		*b.target = &natsBucket{kv: kv, logger: d.logger}
	}

	return conn, nil
}

func (d *NATSDialer) freshGrant(ctx context.Context) (*creds.Grant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.grant != nil && !d.grant.Expired(time.Now()) {
		return d.grant, nil
	}

	grant, err := d.issuer.Issue(ctx)
	if err != nil {
		return nil, err
	}
	d.logger.Info().
		Int64("ttl_ms", grant.TTLMs).
		Msg("fetched fresh connection credential")
	d.grant = grant
	return grant, nil
}

// natsConn implements Conn.
type natsConn struct {
	nc         *nats.Conn
	log        *natsLog
	membership *natsBucket
	presence   *natsBucket
	telemetry  *natsBucket
}

func (c *natsConn) Log() Log           { return c.log }
func (c *natsConn) Membership() Bucket { return c.membership }
func (c *natsConn) Presence() Bucket   { return c.presence }
func (c *natsConn) Telemetry() Bucket  { return c.telemetry }

func (c *natsConn) Drain() error {
	return c.nc.Drain()
}

func (c *natsConn) Ping(ctx context.Context) error {
	_, err := c.nc.RTT()
	return err
}
