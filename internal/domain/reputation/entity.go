package reputation

import (
	"time"

	"github.com/google/uuid"
)

// ActorClass selects the reputation scale
type ActorClass string

const (
	ClassUser    ActorClass = "user"
	ClassOfficer ActorClass = "officer"
	ClassSeller  ActorClass = "seller"
)

// Valid reports whether c is a known actor class
func (c ActorClass) Valid() bool {
	switch c {
	case ClassUser, ClassOfficer, ClassSeller:
		return true
	}
	return false
}

// EventType is the kind of reputation event
type EventType string

const (
	EventViolation      EventType = "violation"
	EventRollback       EventType = "rollback"
	EventManualAdjust   EventType = "manual_adjust"
	EventCaseHandled    EventType = "case_handled"
	EventCaseResolved   EventType = "case_resolved"
	EventOrderFulfilled EventType = "order_fulfilled"
	EventOrderCancelled EventType = "order_cancelled"
)

// allowedClasses lists which actor classes an event type applies to.
// A nil entry means every class.
var allowedClasses = map[EventType][]ActorClass{
	EventViolation:      nil,
	EventRollback:       nil,
	EventManualAdjust:   nil,
	EventCaseHandled:    {ClassOfficer},
	EventCaseResolved:   {ClassOfficer},
	EventOrderFulfilled: {ClassSeller},
	EventOrderCancelled: {ClassSeller},
}

// Record is the standing of one actor within one class
type Record struct {
	ActorID               uuid.UUID  `db:"actor_id" json:"actor_id"`
	ActorClass            ActorClass `db:"actor_class" json:"actor_class"`
	CurrentScore          int        `db:"current_score" json:"current_score"`
	LifetimeScore         int        `db:"lifetime_score" json:"lifetime_score"`
	Tier                  string     `db:"tier" json:"tier"`
	ViolationsCount       int        `db:"violations_count" json:"violations_count"`
	CasesHandled          int        `db:"cases_handled" json:"cases_handled"`
	SuccessfulResolutions int        `db:"successful_resolutions" json:"successful_resolutions"`
	OrdersFulfilled       int        `db:"orders_fulfilled" json:"orders_fulfilled"`
	OrdersCancelled       int        `db:"orders_cancelled" json:"orders_cancelled"`
	PriorityFlag          bool       `db:"priority_flag" json:"priority_flag"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// Event is one applied score change
type Event struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ActorID     uuid.UUID  `db:"actor_id" json:"actor_id"`
	ActorClass  ActorClass `db:"actor_class" json:"actor_class"`
	EventType   EventType  `db:"event_type" json:"event_type"`
	Delta       int        `db:"delta" json:"delta"`
	ScoreBefore int        `db:"score_before" json:"score_before"`
	ScoreAfter  int        `db:"score_after" json:"score_after"`
	Reason      string     `db:"reason" json:"reason"`
	ReferenceID *uuid.UUID `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// EventInput describes a score change to apply. ReferenceID makes the
// change idempotent per event type.
type EventInput struct {
	ActorID     uuid.UUID
	ActorClass  ActorClass
	EventType   EventType
	Delta       int
	Reason      string
	ReferenceID *uuid.UUID
}
