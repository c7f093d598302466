package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/pkg/metrics"
)

type memSub struct {
	ch     chan Event
	topics []Topic
}

// MemoryBus fans out events to in-process subscribers.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[int]*memSub
	next   int
	closed bool
}

// NewMemoryBus creates an in-process bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]*memSub)}
}

func (b *MemoryBus) Publish(ctx context.Context, evt Event) error {
	if !evt.Valid() {
		return ErrInvalidEvent
	}
	b.deliver(evt)
	return nil
}

func (b *MemoryBus) deliver(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if !wants(sub.topics, evt.Topic) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			metrics.EventsDropped.WithLabelValues(string(evt.Topic)).Inc()
			log.Warn().Str("topic", string(evt.Topic)).Msg("Event dropped for slow subscriber")
		}
	}
}

func (b *MemoryBus) Subscribe(ctx context.Context, topics ...Topic) (<-chan Event, error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	id := b.next
	b.next++
	b.subs[id] = &memSub{ch: ch, topics: topics}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
		b.mu.Unlock()
	}()

	return ch, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
	return nil
}
