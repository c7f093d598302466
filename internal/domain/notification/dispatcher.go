package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/pkg/eventbus"
	"github.com/citywatch/citywatch-api/internal/pkg/metrics"
)

const sendTimeout = 15 * time.Second

// Broadcaster pushes frames to the staff feed
type Broadcaster interface {
	Broadcast(msg *FeedMessage) error
}

// Dispatcher turns engine events into staff feed frames and user notices
type Dispatcher struct {
	bus    eventbus.Bus
	feed   Broadcaster
	sender Sender
}

// NewDispatcher creates a notification dispatcher
func NewDispatcher(bus eventbus.Bus, feed Broadcaster, sender Sender) *Dispatcher {
	if sender == nil {
		sender = LogSender{}
	}
	return &Dispatcher{bus: bus, feed: feed, sender: sender}
}

// Run consumes events until ctx is done
func (d *Dispatcher) Run(ctx context.Context) error {
	events, err := d.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	log.Info().Msg("Notification dispatcher started")

	for evt := range events {
		d.Handle(ctx, evt)
	}

	log.Info().Msg("Notification dispatcher stopped")
	return nil
}

// Handle routes one event
func (d *Dispatcher) Handle(ctx context.Context, evt eventbus.Event) {
	if feedTopic(evt.Topic) {
		d.toFeed(evt)
	}

	var notice *Notice
	switch evt.Topic {
	case eventbus.TopicActionApplied:
		a := evt.ActionApplied
		if a == nil || a.TargetUserID == nil {
			return
		}
		notice = &Notice{
			ID:         evt.ID,
			Kind:       KindActionApplied,
			UserID:     *a.TargetUserID,
			ActionID:   a.ActionID,
			ActionType: a.ActionType,
			Reason:     a.Reason,
			ExpiresAt:  a.ExpiresAt,
			OccurredAt: evt.OccurredAt,
		}
	case eventbus.TopicActionRolledBack:
		a := evt.ActionRolledBack
		if a == nil || a.TargetUserID == nil {
			return
		}
		notice = &Notice{
			ID:         evt.ID,
			Kind:       KindActionRolledBack,
			UserID:     *a.TargetUserID,
			ActionID:   a.ActionID,
			ActionType: a.ActionType,
			OccurredAt: evt.OccurredAt,
		}
	default:
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := d.sender.Send(sendCtx, notice); err != nil {
		metrics.Notifications.WithLabelValues("user", "failed").Inc()
		log.Error().Err(err).
			Str("event_id", evt.ID).
			Str("user_id", notice.UserID.String()).
			Msg("Failed to notify user")
		return
	}
	metrics.Notifications.WithLabelValues("user", "sent").Inc()
}

// feedTopic reports whether staff watch this topic live. Reputation
// changes are too chatty for the feed.
func feedTopic(t eventbus.Topic) bool {
	return t != eventbus.TopicReputationChanged
}

func (d *Dispatcher) toFeed(evt eventbus.Event) {
	if d.feed == nil {
		return
	}
	msg := &FeedMessage{
		Type:       string(evt.Topic),
		EventID:    evt.ID,
		OccurredAt: evt.OccurredAt,
		Data:       payload(evt),
	}
	if err := d.feed.Broadcast(msg); err != nil {
		log.Error().Err(err).Str("event_id", evt.ID).Msg("Failed to broadcast feed message")
	}
}

func payload(evt eventbus.Event) interface{} {
	switch evt.Topic {
	case eventbus.TopicReportSubmitted:
		return evt.ReportSubmitted
	case eventbus.TopicReportStatusChanged:
		return evt.ReportStatusChanged
	case eventbus.TopicActionApplied:
		return evt.ActionApplied
	case eventbus.TopicActionRolledBack:
		return evt.ActionRolledBack
	case eventbus.TopicReferralOpened:
		return evt.ReferralOpened
	case eventbus.TopicReferralResolved:
		return evt.ReferralResolved
	}
	return nil
}
