package store

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// natsBucket implements Bucket over a JetStream key-value bucket.
type natsBucket struct {
	kv     jetstream.KeyValue
	logger zerolog.Logger
}

func (b *natsBucket) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return entry.Value(), nil
}

func (b *natsBucket) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.kv.Put(ctx, key, value)
	return err
}

func (b *natsBucket) Delete(ctx context.Context, key string) error {
	err := b.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Keys drains the key lister to completion before returning. The lister
// holds a cursor on the bucket; issuing Gets while it is still open drops
// entries, so no value fetch may happen inside this loop.
func (b *natsBucket) Keys(ctx context.Context) ([]string, error) {
	lister, err := b.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}

	keys := make([]string, 0, 16)
	for key := range lister.Keys() {
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *natsBucket) Watch(ctx context.Context) (<-chan KeyUpdate, error) {
	watcher, err := b.kv.Watch(ctx, ">", jetstream.UpdatesOnly())
	if err != nil {
		return nil, err
	}

	updates := make(chan KeyUpdate, 64)
	go func() {
		defer close(updates)
		defer func() {
			if err := watcher.Stop(); err != nil {
				b.logger.Debug().Err(err).Msg("kv watcher stop failed")
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					// End-of-initial-values marker.
					continue
				}
				up := KeyUpdate{Key: entry.Key(), Value: entry.Value()}
				switch entry.Operation() {
				case jetstream.KeyValueDelete:
					up.Op = KeyDelete
				case jetstream.KeyValuePurge:
					up.Op = KeyPurge
				default:
					up.Op = KeyPut
				}
				select {
				case updates <- up:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return updates, nil
}
