package bus

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"messaging-service/internal/models"
)

const channelName = "realtime:events"

// RedisBus relays envelopes between instances over a Redis pub/sub channel.
// Every instance receives every envelope and its local hub decides which
// connections, if any, it can serve.
type RedisBus struct {
	client *redis.Client
	sub    *redis.PubSub
	cancel context.CancelFunc

	mu       sync.RWMutex
	handlers []Handler
}

// NewRedisBus connects, subscribes and starts the receive loop.
func NewRedisBus(ctx context.Context, redisURL string) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	b := &RedisBus{
		client: client,
		sub:    client.Subscribe(loopCtx, channelName),
		cancel: cancel,
	}
	go b.receive(loopCtx)
	return b, nil
}

func (b *RedisBus) Publish(ctx context.Context, env models.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelName, body).Err()
}

func (b *RedisBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *RedisBus) receive(ctx context.Context) {
	ch := b.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env models.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("event bus: dropping malformed envelope: %v", err)
				continue
			}
			b.mu.RLock()
			handlers := b.handlers
			b.mu.RUnlock()
			for _, h := range handlers {
				h(env)
			}
		}
	}
}

func (b *RedisBus) Close() error {
	b.cancel()
	_ = b.sub.Close()
	return b.client.Close()
}

var _ EventBus = (*MemoryBus)(nil)
var _ EventBus = (*RedisBus)(nil)
