// Package eventbus is the publish/subscribe boundary between the engine and
// its listeners (staff feeds, notifications, audit long-polls).
package eventbus

import (
	"context"
	"errors"
)

var (
	ErrClosed       = errors.New("event bus closed")
	ErrInvalidEvent = errors.New("event payload does not match topic")
)

// Bus delivers engine events to subscribers. Subscribe returns a channel that
// is closed when ctx ends or the bus is closed. Slow subscribers drop events.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(ctx context.Context, topics ...Topic) (<-chan Event, error)
	Close() error
}

const subscriberBuffer = 64

func wants(topics []Topic, t Topic) bool {
	if len(topics) == 0 {
		return true
	}
	for _, want := range topics {
		if want == t {
			return true
		}
	}
	return false
}
