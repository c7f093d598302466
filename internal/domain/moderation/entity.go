package moderation

import (
	"time"

	"github.com/google/uuid"
)

// ReportReason represents the category of a report. The reason doubles as
// the violation type evaluated by the escalation matrix.
type ReportReason string

const (
	ReasonBullying             ReportReason = "bullying"
	ReasonHateSpeech           ReportReason = "hate_speech"
	ReasonIllegalContent       ReportReason = "illegal_content"
	ReasonScam                 ReportReason = "scam"
	ReasonSpam                 ReportReason = "spam"
	ReasonHarassment           ReportReason = "harassment"
	ReasonInappropriateContent ReportReason = "inappropriate_content"
	ReasonOther                ReportReason = "other"
)

// Valid reports whether r is in the closed set
func (r ReportReason) Valid() bool {
	switch r {
	case ReasonBullying, ReasonHateSpeech, ReasonIllegalContent, ReasonScam,
		ReasonSpam, ReasonHarassment, ReasonInappropriateContent, ReasonOther:
		return true
	}
	return false
}

// TargetType discriminates what a report points at
type TargetType string

const (
	TargetUser   TargetType = "user"
	TargetStream TargetType = "stream"
)

// ReportStatus represents the status of a report
type ReportStatus string

const (
	StatusPending     ReportStatus = "pending"
	StatusReviewing   ReportStatus = "reviewing"
	StatusResolved    ReportStatus = "resolved"
	StatusActionTaken ReportStatus = "action_taken"
	StatusRejected    ReportStatus = "rejected"
)

// Valid reports whether s is a known status
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusReviewing, StatusResolved, StatusActionTaken, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s ReportStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusActionTaken || s == StatusRejected
}

// CanMoveTo reports whether a report in s may move to status to
func (s ReportStatus) CanMoveTo(to ReportStatus) bool {
	return statusIn(s, transitions[to])
}

// transitions lists the legal source states of every destination state
var transitions = map[ReportStatus][]ReportStatus{
	StatusReviewing:   {StatusPending},
	StatusRejected:    {StatusPending, StatusReviewing},
	StatusResolved:    {StatusReviewing},
	StatusActionTaken: {StatusReviewing},
}

// Target identifies the reported user or stream
type Target struct {
	Type     TargetType `json:"target_type"`
	UserID   *uuid.UUID `json:"target_user_id,omitempty"`
	StreamID *uuid.UUID `json:"stream_id,omitempty"`
}

// Report is a citizen-submitted moderation report
type Report struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	ReporterID   uuid.UUID    `db:"reporter_id" json:"reporter_id"`
	TargetType   TargetType   `db:"target_type" json:"target_type"`
	TargetUserID *uuid.UUID   `db:"target_user_id" json:"target_user_id,omitempty"`
	StreamID     *uuid.UUID   `db:"stream_id" json:"stream_id,omitempty"`
	Reason       ReportReason `db:"reason" json:"reason"`
	Description  *string      `db:"description" json:"description,omitempty"`
	Status       ReportStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time   `db:"resolved_at" json:"resolved_at,omitempty"`
	ReviewedBy   *uuid.UUID   `db:"reviewed_by" json:"reviewed_by,omitempty"`
}

// Target returns the report's target
func (r *Report) Target() Target {
	return Target{Type: r.TargetType, UserID: r.TargetUserID, StreamID: r.StreamID}
}

// ViolationType is the escalation matrix key for this report
func (r *Report) ViolationType() string {
	return string(r.Reason)
}
