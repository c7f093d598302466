package reputation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/domain/audit"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/database"
	"github.com/citywatch/citywatch-api/internal/pkg/eventbus"
	"github.com/citywatch/citywatch-api/internal/pkg/metrics"
)

const maxEventsPage = 100

// Service is the reputation scorer
type Service struct {
	repo   Repository
	scales Scales
	audit  *audit.Service
	bus    eventbus.Bus
	tx     database.Transactor
	now    func() time.Time
}

// NewService creates reputation service. bus may be nil.
func NewService(repo Repository, scales Scales, auditSvc *audit.Service, bus eventbus.Bus, tx database.Transactor) *Service {
	return &Service{
		repo:   repo,
		scales: scales,
		audit:  auditSvc,
		bus:    bus,
		tx:     tx,
		now:    time.Now,
	}
}

// Scale returns the scale of class
func (s *Service) Scale(class ActorClass) (Scale, error) {
	scale, ok := s.scales[class]
	if !ok {
		return Scale{}, ErrUnknownClass
	}
	return scale, nil
}

// Apply records one event against the actor. Score changes for the same
// actor and class are serialized by the record lock. An event whose
// ReferenceID was already applied for the same type is a no-op.
func (s *Service) Apply(ctx context.Context, in EventInput) (*Record, error) {
	rec, _, err := s.apply(ctx, in)
	return rec, err
}

// apply also returns the score before the event
func (s *Service) apply(ctx context.Context, in EventInput) (*Record, int, error) {
	if err := checkEvent(in.ActorClass, in.EventType); err != nil {
		return nil, 0, err
	}
	if in.Reason == "" {
		return nil, 0, ErrReasonRequired
	}
	scale, err := s.Scale(in.ActorClass)
	if err != nil {
		return nil, 0, err
	}

	var out *Record
	var before int
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now().UTC()
		start := &Record{ActorID: in.ActorID, ActorClass: in.ActorClass, CreatedAt: now}
		scale.Init(start)
		start.PriorityFlag = start.Tier == scale.Worst()

		rec, err := s.repo.Lock(ctx, start)
		if err != nil {
			return err
		}

		if in.ReferenceID != nil {
			seen, err := s.repo.HasEvent(ctx, in.ActorID, in.ActorClass, in.EventType, *in.ReferenceID)
			if err != nil {
				return err
			}
			if seen {
				log.Info().
					Str("actor_id", in.ActorID.String()).
					Str("event_type", string(in.EventType)).
					Str("reference_id", in.ReferenceID.String()).
					Msg("Reputation event already applied")
				out = rec
				before = rec.CurrentScore
				return nil
			}
		}

		before = rec.CurrentScore
		scale.Apply(rec, in.EventType, in.Delta)
		rec.UpdatedAt = now
		if err := s.repo.Save(ctx, rec); err != nil {
			return err
		}
		if err := s.repo.InsertEvent(ctx, &Event{
			ID:          uuid.New(),
			ActorID:     in.ActorID,
			ActorClass:  in.ActorClass,
			EventType:   in.EventType,
			Delta:       in.Delta,
			ScoreBefore: before,
			ScoreAfter:  rec.CurrentScore,
			Reason:      in.Reason,
			ReferenceID: in.ReferenceID,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		snapshot := *rec
		database.AfterCommit(ctx, func() {
			metrics.ReputationEvents.WithLabelValues(string(in.ActorClass), string(in.EventType)).Inc()
			s.publish(in, &snapshot)
		})
		out = rec
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, before, nil
}

// RecordCase credits the officer who closed a report: case_handled for any
// closing outcome and case_resolved when the report was upheld. Both are
// keyed on the report, so replays are no-ops.
func (s *Service) RecordCase(ctx context.Context, officerID, reportID uuid.UUID, resolved bool) error {
	scale, err := s.Scale(ClassOfficer)
	if err != nil {
		return err
	}
	events := []EventType{EventCaseHandled}
	if resolved {
		events = append(events, EventCaseResolved)
	}

	report := reportID
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, eventType := range events {
			if _, err := s.Apply(ctx, EventInput{
				ActorID:     officerID,
				ActorClass:  ClassOfficer,
				EventType:   eventType,
				Delta:       scale.PointsFor(eventType),
				Reason:      string(eventType) + " report " + report.String(),
				ReferenceID: &report,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// externalEvents are the event types reported by other services
var externalEvents = map[EventType]bool{
	EventOrderFulfilled: true,
	EventOrderCancelled: true,
}

// RecordEvent applies an event reported by another service, such as a
// marketplace order outcome for a seller. A nil delta uses the class
// default. ReferenceID keeps redelivery idempotent.
func (s *Service) RecordEvent(ctx context.Context, p access.Principal, actorID uuid.UUID, class ActorClass, eventType EventType, delta *int, reason string, referenceID uuid.UUID) (*Record, error) {
	if err := access.Require(p, access.PermAdjustReputation); err != nil {
		return nil, err
	}
	if !externalEvents[eventType] {
		return nil, ErrUnknownEventType
	}
	if referenceID == uuid.Nil {
		return nil, ErrReferenceNeeded
	}
	scale, err := s.Scale(class)
	if err != nil {
		return nil, err
	}
	d := scale.PointsFor(eventType)
	if delta != nil {
		d = *delta
	}

	rec, err := s.Apply(ctx, EventInput{
		ActorID:     actorID,
		ActorClass:  class,
		EventType:   eventType,
		Delta:       d,
		Reason:      reason,
		ReferenceID: &referenceID,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("actor_id", actorID.String()).
		Str("actor_class", string(class)).
		Str("event_type", string(eventType)).
		Str("reference_id", referenceID.String()).
		Msg("Reputation event recorded")
	return rec, nil
}

// ManualAdjust applies a staff override and records it in the audit ledger
func (s *Service) ManualAdjust(ctx context.Context, p access.Principal, actorID uuid.UUID, class ActorClass, delta int, reason string) (*Record, error) {
	if err := access.Require(p, access.PermAdjustReputation); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, ErrZeroAdjustment
	}

	var out *Record
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rec, before, err := s.apply(ctx, EventInput{
			ActorID:    actorID,
			ActorClass: class,
			EventType:  EventManualAdjust,
			Delta:      delta,
			Reason:     reason,
		})
		if err != nil {
			return err
		}

		if err := s.audit.Record(ctx, &audit.Entry{
			ActionType: audit.EntryReputationAdjust,
			TargetID:   actorID.String(),
			ActorID:    p.ID,
			Reason:     reason,
			Payload: audit.Payload{Adjustment: &audit.AdjustmentPayload{
				ActorClass:  string(class),
				Delta:       delta,
				ScoreBefore: before,
				ScoreAfter:  rec.CurrentScore,
			}},
		}); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("actor_id", actorID.String()).
		Str("actor_class", string(class)).
		Int("delta", delta).
		Str("adjusted_by", p.ID.String()).
		Msg("Reputation manually adjusted")
	return out, nil
}

// Get returns the actor's record. Actors without history get the starting
// record of their class, unsaved. Staff may read anyone; others only
// themselves.
func (s *Service) Get(ctx context.Context, p access.Principal, actorID uuid.UUID, class ActorClass) (*Record, error) {
	if p.ID != actorID {
		if err := access.Require(p, access.PermViewReputation); err != nil {
			return nil, err
		}
	}
	return s.current(ctx, actorID, class)
}

// ListEvents returns the actor's score history, newest first
func (s *Service) ListEvents(ctx context.Context, p access.Principal, actorID uuid.UUID, class ActorClass, limit, offset int) ([]*Event, int, error) {
	if p.ID != actorID {
		if err := access.Require(p, access.PermViewReputation); err != nil {
			return nil, 0, err
		}
	}
	if !class.Valid() {
		return nil, 0, ErrUnknownClass
	}
	if limit <= 0 || limit > maxEventsPage {
		limit = maxEventsPage
	}
	if offset < 0 {
		offset = 0
	}

	events, err := s.repo.ListEvents(ctx, actorID, class, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountEvents(ctx, actorID, class)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (s *Service) current(ctx context.Context, actorID uuid.UUID, class ActorClass) (*Record, error) {
	scale, err := s.Scale(class)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.Get(ctx, actorID, class)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &Record{ActorID: actorID, ActorClass: class}
		scale.Init(rec)
		rec.PriorityFlag = rec.Tier == scale.Worst()
	}
	return rec, nil
}

func (s *Service) publish(in EventInput, rec *Record) {
	if s.bus == nil {
		return
	}
	evt := eventbus.NewReputationChanged(eventbus.ReputationChanged{
		ActorID:    in.ActorID,
		ActorClass: string(in.ActorClass),
		EventType:  string(in.EventType),
		Delta:      in.Delta,
		Score:      rec.CurrentScore,
		Tier:       rec.Tier,
		Priority:   rec.PriorityFlag,
	})
	if err := s.bus.Publish(context.Background(), evt); err != nil {
		log.Warn().Err(err).Str("topic", string(evt.Topic)).Msg("Failed to publish event")
	}
}
