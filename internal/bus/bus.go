package bus

import (
	"context"
	"sync"

	"messaging-service/internal/models"
)

// Handler consumes envelopes arriving on the bus.
type Handler func(env models.Envelope)

// EventBus is the fabric carrying realtime envelopes to every instance's
// local hub. Delivery is at-most-once and fire-and-forget; there is no
// queuing or replay.
type EventBus interface {
	Publish(ctx context.Context, env models.Envelope) error
	Subscribe(h Handler)
	Close() error
}

// MemoryBus dispatches envelopes synchronously inside the process. It is the
// single-instance and test implementation.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewMemoryBus creates an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(ctx context.Context, env models.Envelope) error {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, h := range handlers {
		h(env)
	}
	return nil
}

func (b *MemoryBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *MemoryBus) Close() error {
	return nil
}
