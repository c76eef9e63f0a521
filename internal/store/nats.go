package store

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	// replayBatch bounds how many entries one fetch pulls off a replay
	// cursor.
	replayBatch = 512

	// replayInactivity is how long an idle replay cursor survives on the
	// server before it is reaped.
	replayInactivity = 30 * time.Second
)

// natsLog implements Log over a JetStream stream plus core NATS for
// broadcast-only subjects.
type natsLog struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
	logger zerolog.Logger
}

// loggedPrefixes are the subject prefixes captured by the durable stream.
// Everything else (presence, telemetry, receipts) is broadcast-only.
var loggedPrefixes = []string{"mesh.channel.", "mesh.system."}

func (l *natsLog) logged(subject string) bool {
	for _, p := range loggedPrefixes {
		if strings.HasPrefix(subject, p) {
			return true
		}
	}
	return false
}

func (l *natsLog) Publish(ctx context.Context, subject string, data []byte) error {
	if l.logged(subject) {
		_, err := l.js.Publish(ctx, subject, data)
		return err
	}
	return l.nc.Publish(subject, data)
}

// Replay opens an ordered, filtered, ephemeral consumer and drains it with
// no-wait fetches. An empty fetch means the cursor caught up with the log.
func (l *natsLog) Replay(ctx context.Context, subject string, fn func(data []byte) bool) error {
	cons, err := l.js.OrderedConsumer(ctx, l.stream, jetstream.OrderedConsumerConfig{
		FilterSubjects:    []string{subject},
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: replayInactivity,
	})
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := cons.FetchNoWait(replayBatch)
		if err != nil {
			return err
		}

		n := 0
		for msg := range batch.Messages() {
			n++
			if !fn(msg.Data()) {
				return nil
			}
		}
		if err := batch.Error(); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func (l *natsLog) Subscribe(subject string, fn func(subject string, data []byte)) (Subscription, error) {
	sub, err := l.nc.Subscribe(subject, func(m *nats.Msg) {
		fn(m.Subject, m.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (l *natsLog) Request(ctx context.Context, subject string, data []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := l.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, err
	}
	return msg.Data, nil
}

func (l *natsLog) Subjects(ctx context.Context, filter string) (map[string]uint64, error) {
	s, err := l.js.Stream(ctx, l.stream)
	if err != nil {
		return nil, err
	}
	info, err := s.Info(ctx, jetstream.WithSubjectFilter(filter))
	if err != nil {
		return nil, err
	}
	return info.State.Subjects, nil
}
