package audit

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EntryType is the kind of ledger entry
type EntryType string

const (
	EntryWarn             EntryType = "warn"
	EntrySuspendStream    EntryType = "suspend_stream"
	EntryBanUser          EntryType = "ban_user"
	EntryUnbanUser        EntryType = "unban_user"
	EntryMuteUser         EntryType = "mute_user"
	EntryRollback         EntryType = "rollback"
	EntryReputationAdjust EntryType = "reputation_adjust"
	EntryRuleChange       EntryType = "rule_change"
)

// IsAction reports whether the entry records a moderation action
func (t EntryType) IsAction() bool {
	switch t {
	case EntryWarn, EntrySuspendStream, EntryBanUser, EntryUnbanUser, EntryMuteUser:
		return true
	}
	return false
}

// Entry is one append-only ledger row. Only ReversedAt and ReversedBy are
// ever updated, and only once.
type Entry struct {
	ID         string     `db:"id" json:"id"`
	ActionType EntryType  `db:"action_type" json:"action_type"`
	TargetID   string     `db:"target_id" json:"target_id"`
	ActorID    uuid.UUID  `db:"actor_id" json:"actor_id"`
	Reason     string     `db:"reason" json:"reason"`
	Payload    Payload    `db:"payload" json:"payload"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ReversedAt *time.Time `db:"reversed_at" json:"reversed_at,omitempty"`
	ReversedBy *uuid.UUID `db:"reversed_by" json:"reversed_by,omitempty"`

	// TxID and Seq place the entry in the change feed. Both are assigned
	// by the store on append.
	TxID int64 `db:"tx_id" json:"-"`
	Seq  int64 `db:"seq" json:"-"`
}

// Cursor returns the feed position just after e
func (e *Entry) Cursor() Cursor {
	return Cursor{TxID: e.TxID, Seq: e.Seq}
}

// IsReversed reports whether the entry has been rolled back
func (e *Entry) IsReversed() bool {
	return e.ReversedAt != nil
}

// Payload is a tagged union; exactly one variant is set and it must match
// the entry type.
type Payload struct {
	Action     *ActionPayload     `json:"action,omitempty"`
	Rollback   *RollbackPayload   `json:"rollback,omitempty"`
	Adjustment *AdjustmentPayload `json:"adjustment,omitempty"`
	Rule       *RulePayload       `json:"rule,omitempty"`
}

// ActionPayload describes an applied moderation action
type ActionPayload struct {
	ActionID        uuid.UUID  `json:"action_id"`
	TargetUserID    *uuid.UUID `json:"target_user_id,omitempty"`
	StreamID        *uuid.UUID `json:"stream_id,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	PointsDeducted  int        `json:"points_deducted"`
	ActorClass      string     `json:"actor_class"`
	ReportID        *uuid.UUID `json:"report_id,omitempty"`
	MatchedRuleID   *uuid.UUID `json:"matched_rule_id,omitempty"`
	Details         string     `json:"details,omitempty"`
}

// RollbackPayload points back at the reversed entry
type RollbackPayload struct {
	ReversedEntryID string    `json:"reversed_entry_id"`
	ActionID        uuid.UUID `json:"action_id"`
	PointsRestored  int       `json:"points_restored"`
}

// AdjustmentPayload records a manual reputation override
type AdjustmentPayload struct {
	ActorClass  string `json:"actor_class"`
	Delta       int    `json:"delta"`
	ScoreBefore int    `json:"score_before"`
	ScoreAfter  int    `json:"score_after"`
}

// RulePayload records an escalation rule edit
type RulePayload struct {
	RuleID        uuid.UUID `json:"rule_id"`
	Operation     string    `json:"operation"`
	ViolationType string    `json:"violation_type"`
}

const (
	RuleOpCreate = "create"
	RuleOpUpdate = "update"
	RuleOpDelete = "delete"
)

var errPayloadShape = errors.New("payload does not match entry type")

func (p Payload) validate(t EntryType) error {
	set := 0
	for _, present := range []bool{p.Action != nil, p.Rollback != nil, p.Adjustment != nil, p.Rule != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return errPayloadShape
	}

	switch {
	case t.IsAction():
		if p.Action == nil || p.Action.ActionID == uuid.Nil || p.Action.ActorClass == "" {
			return errPayloadShape
		}
	case t == EntryRollback:
		if p.Rollback == nil || p.Rollback.ReversedEntryID == "" || p.Rollback.ActionID == uuid.Nil {
			return errPayloadShape
		}
	case t == EntryReputationAdjust:
		if p.Adjustment == nil || p.Adjustment.ActorClass == "" {
			return errPayloadShape
		}
	case t == EntryRuleChange:
		if p.Rule == nil || p.Rule.RuleID == uuid.Nil {
			return errPayloadShape
		}
		switch p.Rule.Operation {
		case RuleOpCreate, RuleOpUpdate, RuleOpDelete:
		default:
			return errPayloadShape
		}
	default:
		return errPayloadShape
	}
	return nil
}

// Value stores the payload as jsonb
func (p Payload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan reads the payload from jsonb
func (p *Payload) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = Payload{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return errors.New("unsupported payload column type")
	}
}
