package eventbus

import (
	"time"

	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/pkg/ids"
)

// Topic names one of the engine's event kinds
type Topic string

const (
	TopicReportSubmitted     Topic = "report.submitted"
	TopicReportStatusChanged Topic = "report.status_changed"
	TopicActionApplied       Topic = "action.applied"
	TopicActionRolledBack    Topic = "action.rolled_back"
	TopicReputationChanged   Topic = "reputation.changed"
	TopicReferralOpened      Topic = "referral.opened"
	TopicReferralResolved    Topic = "referral.resolved"
)

// AllTopics lists every topic in the closed set
var AllTopics = []Topic{
	TopicReportSubmitted,
	TopicReportStatusChanged,
	TopicActionApplied,
	TopicActionRolledBack,
	TopicReputationChanged,
	TopicReferralOpened,
	TopicReferralResolved,
}

// Event is a tagged union: exactly one payload pointer matches Topic.
type Event struct {
	ID         string    `json:"id"`
	Topic      Topic     `json:"topic"`
	OccurredAt time.Time `json:"occurred_at"`

	ReportSubmitted     *ReportSubmitted     `json:"report_submitted,omitempty"`
	ReportStatusChanged *ReportStatusChanged `json:"report_status_changed,omitempty"`
	ActionApplied       *ActionApplied       `json:"action_applied,omitempty"`
	ActionRolledBack    *ActionRolledBack    `json:"action_rolled_back,omitempty"`
	ReputationChanged   *ReputationChanged   `json:"reputation_changed,omitempty"`
	ReferralOpened      *ReferralOpened      `json:"referral_opened,omitempty"`
	ReferralResolved    *ReferralResolved    `json:"referral_resolved,omitempty"`
}

type ReportSubmitted struct {
	ReportID     uuid.UUID  `json:"report_id"`
	ReporterID   uuid.UUID  `json:"reporter_id"`
	TargetType   string     `json:"target_type"`
	TargetUserID *uuid.UUID `json:"target_user_id,omitempty"`
	StreamID     *uuid.UUID `json:"stream_id,omitempty"`
	Reason       string     `json:"reason"`
}

type ReportStatusChanged struct {
	ReportID   uuid.UUID  `json:"report_id"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	ReviewerID *uuid.UUID `json:"reviewer_id,omitempty"`
}

type ActionApplied struct {
	ActionID       uuid.UUID  `json:"action_id"`
	AuditEntryID   string     `json:"audit_entry_id"`
	ActionType     string     `json:"action_type"`
	TargetUserID   *uuid.UUID `json:"target_user_id,omitempty"`
	StreamID       *uuid.UUID `json:"stream_id,omitempty"`
	Reason         string     `json:"reason"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	PointsDeducted int        `json:"points_deducted"`
	ReportID       *uuid.UUID `json:"report_id,omitempty"`
}

type ActionRolledBack struct {
	ActionID       uuid.UUID  `json:"action_id"`
	AuditEntryID   string     `json:"audit_entry_id"`
	ActionType     string     `json:"action_type"`
	TargetUserID   *uuid.UUID `json:"target_user_id,omitempty"`
	PointsRestored int        `json:"points_restored"`
	ReversedBy     uuid.UUID  `json:"reversed_by"`
}

type ReputationChanged struct {
	ActorID    uuid.UUID `json:"actor_id"`
	ActorClass string    `json:"actor_class"`
	EventType  string    `json:"event_type"`
	Delta      int       `json:"delta"`
	Score      int       `json:"score"`
	Tier       string    `json:"tier"`
	Priority   bool      `json:"priority"`
}

type ReferralOpened struct {
	ReferralID uuid.UUID  `json:"referral_id"`
	ReportID   *uuid.UUID `json:"report_id,omitempty"`
	ActorID    uuid.UUID  `json:"actor_id"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type ReferralResolved struct {
	ReferralID uuid.UUID `json:"referral_id"`
	ActorID    uuid.UUID `json:"actor_id"`
	Outcome    string    `json:"outcome"`
}

func newEvent(topic Topic) Event {
	now := time.Now().UTC()
	return Event{ID: ids.At(now), Topic: topic, OccurredAt: now}
}

func NewReportSubmitted(p ReportSubmitted) Event {
	e := newEvent(TopicReportSubmitted)
	e.ReportSubmitted = &p
	return e
}

func NewReportStatusChanged(p ReportStatusChanged) Event {
	e := newEvent(TopicReportStatusChanged)
	e.ReportStatusChanged = &p
	return e
}

func NewActionApplied(p ActionApplied) Event {
	e := newEvent(TopicActionApplied)
	e.ActionApplied = &p
	return e
}

func NewActionRolledBack(p ActionRolledBack) Event {
	e := newEvent(TopicActionRolledBack)
	e.ActionRolledBack = &p
	return e
}

func NewReputationChanged(p ReputationChanged) Event {
	e := newEvent(TopicReputationChanged)
	e.ReputationChanged = &p
	return e
}

func NewReferralOpened(p ReferralOpened) Event {
	e := newEvent(TopicReferralOpened)
	e.ReferralOpened = &p
	return e
}

func NewReferralResolved(p ReferralResolved) Event {
	e := newEvent(TopicReferralResolved)
	e.ReferralResolved = &p
	return e
}

// Valid reports whether exactly the payload matching Topic is set.
func (e Event) Valid() bool {
	set := 0
	var matched bool
	check := func(present bool, topic Topic) {
		if present {
			set++
			matched = matched || topic == e.Topic
		}
	}
	check(e.ReportSubmitted != nil, TopicReportSubmitted)
	check(e.ReportStatusChanged != nil, TopicReportStatusChanged)
	check(e.ActionApplied != nil, TopicActionApplied)
	check(e.ActionRolledBack != nil, TopicActionRolledBack)
	check(e.ReputationChanged != nil, TopicReputationChanged)
	check(e.ReferralOpened != nil, TopicReferralOpened)
	check(e.ReferralResolved != nil, TopicReferralResolved)
	return set == 1 && matched
}
