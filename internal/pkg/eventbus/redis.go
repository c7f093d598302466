package eventbus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const channelPrefix = "citywatch:events:"

// RedisBus publishes events over redis pub/sub so every API and worker
// instance sees them. Local subscribers are fed through a MemoryBus.
type RedisBus struct {
	client *redis.Client
	local  *MemoryBus
	pubsub *redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewRedisBus subscribes to all engine topics and starts relaying them
func NewRedisBus(client *redis.Client) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	channels := lo.Map(AllTopics, func(t Topic, _ int) string { return channelPrefix + string(t) })

	b := &RedisBus{
		client: client,
		local:  NewMemoryBus(),
		pubsub: client.Subscribe(ctx, channels...),
		ctx:    ctx,
		cancel: cancel,
	}
	go b.relay()
	return b
}

func (b *RedisBus) relay() {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				log.Error().Err(err).Str("channel", msg.Channel).Msg("Failed to decode bus event")
				continue
			}
			if !evt.Valid() {
				log.Warn().Str("channel", msg.Channel).Msg("Dropping malformed bus event")
				continue
			}
			b.local.deliver(evt)
		}
	}
}

func (b *RedisBus) Publish(ctx context.Context, evt Event) error {
	if !evt.Valid() {
		return ErrInvalidEvent
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+string(evt.Topic), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, topics ...Topic) (<-chan Event, error) {
	return b.local.Subscribe(ctx, topics...)
}

func (b *RedisBus) Close() error {
	var err error
	b.once.Do(func() {
		b.cancel()
		err = b.pubsub.Close()
		b.local.Close()
	})
	return err
}
