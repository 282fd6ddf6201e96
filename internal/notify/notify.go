// Package notify broadcasts "lyricist changed" events so every open view of
// a lyricist can reload it.
package notify

import (
	"context"
	"sync"

	redislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const Channel = "lyricist:refresh"

// Handler receives the ID of a lyricist whose data changed.
type Handler func(lyricistID string)

// Bus publishes refresh events over Redis pub/sub so every bot process sees
// them. Without a Redis client events are delivered in process only.
type Bus struct {
	client *redislib.Client
	log    zerolog.Logger

	mu       sync.RWMutex
	handlers []Handler
	// local is set when the Redis subscription could not be established.
	local bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewBus(client *redislib.Client, logger zerolog.Logger) *Bus {
	return &Bus{
		client: client,
		log:    logger,
	}
}

// Subscribe registers h for every subsequent event.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Start begins relaying Redis messages to handlers. It returns once the
// subscription is confirmed. When subscribing fails the bus falls back to
// in-process delivery.
func (b *Bus) Start(ctx context.Context) error {
	if b.client == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := b.client.Subscribe(ctx, Channel)
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		b.mu.Lock()
		b.local = true
		b.mu.Unlock()
		return err
	}

	b.cancel = cancel
	b.done = make(chan struct{})
	go b.relay(ctx, sub)
	return nil
}

func (b *Bus) relay(ctx context.Context, sub *redislib.PubSub) {
	defer close(b.done)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.dispatch(msg.Payload)
		}
	}
}

// Publish announces a change. Events that cannot reach Redis are still
// delivered to this process.
func (b *Bus) Publish(ctx context.Context, lyricistID string) error {
	b.mu.RLock()
	local := b.client == nil || b.local
	b.mu.RUnlock()

	if local {
		b.dispatch(lyricistID)
		return nil
	}
	if err := b.client.Publish(ctx, Channel, lyricistID).Err(); err != nil {
		b.dispatch(lyricistID)
		return err
	}
	return nil
}

func (b *Bus) dispatch(lyricistID string) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	b.log.Debug().Str("lyricist_id", lyricistID).Int("handlers", len(handlers)).Msg("refresh event")
	for _, h := range handlers {
		h(lyricistID)
	}
}

func (b *Bus) Close() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
}
