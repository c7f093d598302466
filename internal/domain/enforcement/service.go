package enforcement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/domain/audit"
	"github.com/citywatch/citywatch-api/internal/domain/escalation"
	"github.com/citywatch/citywatch-api/internal/domain/moderation"
	"github.com/citywatch/citywatch-api/internal/domain/reputation"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
	"github.com/citywatch/citywatch-api/internal/pkg/database"
	"github.com/citywatch/citywatch-api/internal/pkg/eventbus"
	"github.com/citywatch/citywatch-api/internal/pkg/ids"
	"github.com/citywatch/citywatch-api/internal/pkg/metrics"
)

const maxActionsPage = 100

// Sources of an applied action, used as a metrics label
const (
	SourceManual     = "manual"
	SourceEscalation = "escalation"
	SourceCourt      = "court"
)

// ApplyInput describes an action to apply
type ApplyInput struct {
	ActionType      ActionType `json:"action_type"`
	TargetUserID    *uuid.UUID `json:"target_user_id,omitempty"`
	StreamID        *uuid.UUID `json:"stream_id,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Details         *string    `json:"details,omitempty"`
	ReportID        *uuid.UUID `json:"report_id,omitempty"`
	// PointsDeducted falls back to the policy default of the action type
	PointsDeducted *int                  `json:"points_deducted,omitempty"`
	ActorClass     reputation.ActorClass `json:"actor_class,omitempty"`
	// ViolationType falls back to the report reason, then "other"
	ViolationType string     `json:"violation_type,omitempty"`
	MatchedRuleID *uuid.UUID `json:"matched_rule_id,omitempty"`
	Source        string     `json:"-"`
}

// Referrer parks a court-bound decision until a verdict arrives
type Referrer interface {
	Refer(ctx context.Context, req ReferralRequest) (uuid.UUID, error)
}

// ReferralRequest carries what the court needs to resume the case
type ReferralRequest struct {
	ReportID *uuid.UUID
	ActorID  uuid.UUID
	// StreamID is set for stream reports
	StreamID *uuid.UUID
	Decision escalation.Decision
	// Draft is the action the decision maps to, nil for court_session
	Draft *ApplyInput
}

// EscalationOutcome tells the caller what EscalateReport did
type EscalationOutcome string

const (
	OutcomeApplied        EscalationOutcome = "applied"
	OutcomeReferred       EscalationOutcome = "referred"
	OutcomeAwaitingReview EscalationOutcome = "awaiting_review"
)

// EscalationResult is the result of one auto-evaluation
type EscalationResult struct {
	Outcome    EscalationOutcome   `json:"outcome"`
	Decision   escalation.Decision `json:"decision"`
	Action     *Action             `json:"action,omitempty"`
	ReferralID *uuid.UUID          `json:"referral_id,omitempty"`
}

// Service is the action executor
type Service struct {
	repo         Repository
	reports      *moderation.Service
	escalation   *escalation.Service
	reputation   *reputation.Service
	audit        *audit.Service
	bus          eventbus.Bus
	tx           database.Transactor
	manualPoints map[string]int
	referrer     Referrer
	dispatcher   *Dispatcher
	now          func() time.Time
}

// NewService creates the action executor. bus may be nil.
func NewService(
	repo Repository,
	reports *moderation.Service,
	escalationSvc *escalation.Service,
	reputationSvc *reputation.Service,
	auditSvc *audit.Service,
	bus eventbus.Bus,
	tx database.Transactor,
	manualPoints map[string]int,
) *Service {
	return &Service{
		repo:         repo,
		reports:      reports,
		escalation:   escalationSvc,
		reputation:   reputationSvc,
		audit:        auditSvc,
		bus:          bus,
		tx:           tx,
		manualPoints: manualPoints,
		now:          time.Now,
	}
}

// SetReferrer wires the court referral bridge
func (s *Service) SetReferrer(r Referrer) {
	s.referrer = r
}

// SetDispatcher lets the executor wake the outbox dispatcher after commit
func (s *Service) SetDispatcher(d *Dispatcher) {
	s.dispatcher = d
}

func (in *ApplyInput) validate() error {
	if !in.ActionType.Valid() {
		return ErrInvalidActionType
	}
	if in.Reason == "" {
		return ErrReasonRequired
	}
	if !in.ActorClass.Valid() {
		return ErrUnknownActorClass
	}
	if in.PointsDeducted != nil && *in.PointsDeducted < 0 {
		return ErrNegativePoints
	}

	if in.ActionType == ActionSuspendStream {
		if in.StreamID == nil {
			return ErrStreamTargetNeeded
		}
	} else {
		if in.StreamID != nil {
			return ErrStreamNotAllowed
		}
		if in.TargetUserID == nil {
			return ErrUserTargetNeeded
		}
	}

	switch in.ActionType {
	case ActionWarn, ActionUnbanUser:
		if in.DurationMinutes != nil {
			return ErrDurationForbidden
		}
	case ActionMuteUser:
		if in.DurationMinutes == nil || *in.DurationMinutes <= 0 {
			return ErrDurationRequired
		}
	case ActionBanUser, ActionSuspendStream:
		if in.DurationMinutes != nil && *in.DurationMinutes <= 0 {
			return ErrDurationPositive
		}
	}
	return nil
}

// ApplyAction persists an action together with its audit entry, the
// reputation charge, the violation record, the outbox job and, when a
// report is named, the report's move to action_taken. Nothing is kept if
// any step fails.
func (s *Service) ApplyAction(ctx context.Context, p access.Principal, in *ApplyInput) (*Action, error) {
	if err := access.Require(p, access.PermTakeAction); err != nil {
		return nil, err
	}
	if in.ActorClass == "" {
		in.ActorClass = reputation.ClassUser
	}

	var report *moderation.Report
	if in.ReportID != nil {
		var err error
		report, err = s.reports.Lookup(ctx, *in.ReportID)
		if err != nil {
			return nil, err
		}
		if in.TargetUserID == nil && in.StreamID == nil {
			in.TargetUserID = report.TargetUserID
			if in.ActionType == ActionSuspendStream {
				in.StreamID = report.StreamID
			}
		}
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if report != nil && !report.Status.CanMoveTo(moderation.StatusActionTaken) {
		metrics.StatusConflicts.WithLabelValues("apply_action").Inc()
		return nil, apperror.Wrapf(moderation.ErrStatusConflict, "report is %s", report.Status)
	}

	points := s.pointsFor(in)
	violationType := in.ViolationType
	if violationType == "" && report != nil {
		violationType = report.ViolationType()
	}
	if violationType == "" {
		violationType = string(moderation.ReasonOther)
	}
	source := in.Source
	if source == "" {
		source = SourceManual
	}

	var out *Action
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now().UTC()

		// An unban lifts its bans before the report moves.
		if in.ActionType == ActionUnbanUser {
			count, err := s.repo.CountActions(ctx, &ActionFilter{ActionType: ActionBanUser, TargetUserID: in.TargetUserID, ActiveAt: &now})
			if err != nil {
				return err
			}
			if count == 0 {
				return ErrNoActiveBan
			}
			lifted, err := s.repo.LiftActiveBans(ctx, *in.TargetUserID, now)
			if err != nil {
				return err
			}
			if len(lifted) == 0 {
				return ErrNoActiveBan
			}
			log.Info().Str("user_id", in.TargetUserID.String()).Int("count", len(lifted)).Msg("Lifted active bans")
		}

		if in.ReportID != nil {
			if _, err := s.reports.MarkActionTaken(ctx, *in.ReportID, p.ID); err != nil {
				return err
			}
		}

		action := &Action{
			ID:              uuid.New(),
			ActionType:      in.ActionType,
			TargetUserID:    in.TargetUserID,
			StreamID:        in.StreamID,
			Reason:          in.Reason,
			Details:         in.Details,
			CreatedBy:       p.ID,
			CreatedAt:       now,
			DurationMinutes: in.DurationMinutes,
			ReportID:        in.ReportID,
			Reversible:      in.ActionType.Reversible(),
			PointsDeducted:  points,
			ActorClass:      string(in.ActorClass),
			MatchedRuleID:   in.MatchedRuleID,
			AuditEntryID:    ids.At(now),
		}
		if in.DurationMinutes != nil {
			expires := now.Add(time.Duration(*in.DurationMinutes) * time.Minute)
			action.ExpiresAt = &expires
		}
		if in.ActionType.Punitive() && in.TargetUserID != nil {
			action.ViolationType = &violationType
		}

		if err := s.repo.InsertAction(ctx, action); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, &audit.Entry{
			ID:         action.AuditEntryID,
			ActionType: audit.EntryType(action.ActionType),
			TargetID:   targetID(action),
			ActorID:    p.ID,
			Reason:     action.Reason,
			Payload:    audit.Payload{Action: actionPayload(action)},
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		if action.ViolationType != nil {
			if _, err := s.reputation.Apply(ctx, reputation.EventInput{
				ActorID:     *action.TargetUserID,
				ActorClass:  in.ActorClass,
				EventType:   reputation.EventViolation,
				Delta:       -points,
				Reason:      action.Reason,
				ReferenceID: &action.ID,
			}); err != nil {
				return err
			}
			if err := s.escalation.RecordViolation(ctx, *action.TargetUserID, violationType, action.ID, now); err != nil {
				return err
			}
		}

		if action.ActionType.physical() {
			if err := s.enqueue(ctx, action.ID, OpApply, now); err != nil {
				return err
			}
		}

		snapshot := *action
		database.AfterCommit(ctx, func() {
			metrics.ActionsApplied.WithLabelValues(string(snapshot.ActionType), source).Inc()
			s.publish(eventbus.NewActionApplied(eventbus.ActionApplied{
				ActionID:       snapshot.ID,
				AuditEntryID:   snapshot.AuditEntryID,
				ActionType:     string(snapshot.ActionType),
				TargetUserID:   snapshot.TargetUserID,
				StreamID:       snapshot.StreamID,
				Reason:         snapshot.Reason,
				ExpiresAt:      snapshot.ExpiresAt,
				PointsDeducted: snapshot.PointsDeducted,
				ReportID:       snapshot.ReportID,
			}))
			s.wake()
		})
		out = action
		return nil
	})
	if err != nil {
		if apperror.Kind(err) == apperror.ErrConflict {
			metrics.StatusConflicts.WithLabelValues("apply_action").Inc()
		}
		return nil, err
	}

	log.Info().
		Str("action_id", out.ID.String()).
		Str("action_type", string(out.ActionType)).
		Str("source", source).
		Str("created_by", p.ID.String()).
		Msg("Moderation action applied")
	return out, nil
}

func (s *Service) pointsFor(in *ApplyInput) int {
	if in.PointsDeducted != nil {
		return *in.PointsDeducted
	}
	if !in.ActionType.Punitive() {
		return 0
	}
	return s.manualPoints[string(in.ActionType)]
}

// Rollback reverses the action recorded by logID. It restores the charged
// points, voids the violation and enqueues the physical revocation. The
// originating report keeps its status.
func (s *Service) Rollback(ctx context.Context, p access.Principal, logID, reason string) (*audit.Entry, error) {
	if err := access.Require(p, access.PermRollbackAction); err != nil {
		return nil, err
	}

	var out *audit.Entry
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.audit.Lookup(ctx, logID)
		if err != nil {
			return err
		}
		if entry.IsReversed() {
			return audit.ErrAlreadyReversed
		}
		if !entry.ActionType.IsAction() || entry.Payload.Action == nil {
			return apperror.Wrapf(ErrNotReversible, "entry %s is a %s record", logID, entry.ActionType)
		}

		action, err := s.repo.GetAction(ctx, entry.Payload.Action.ActionID)
		if err != nil {
			return err
		}
		if action == nil {
			return ErrActionNotFound
		}
		if !action.Reversible {
			return apperror.Wrapf(ErrNotReversible, "%s", action.ActionType)
		}
		now := s.now().UTC()
		if !action.ActiveAt(now) {
			return ErrActionInactive
		}

		if err := s.audit.MarkReversed(ctx, logID, p.ID, now); err != nil {
			return err
		}
		ok, err := s.repo.RevokeAction(ctx, action.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrActionInactive
		}

		if action.ViolationType != nil && action.TargetUserID != nil {
			if _, err := s.reputation.Apply(ctx, reputation.EventInput{
				ActorID:     *action.TargetUserID,
				ActorClass:  reputation.ActorClass(action.ActorClass),
				EventType:   reputation.EventRollback,
				Delta:       action.PointsDeducted,
				Reason:      "rollback of " + logID,
				ReferenceID: &action.ID,
			}); err != nil {
				return err
			}
			if _, err := s.escalation.VoidViolationsForAction(ctx, action.ID, now); err != nil {
				return err
			}
		}

		if reason == "" {
			reason = "rollback of " + logID
		}
		rollback := &audit.Entry{
			ActionType: audit.EntryRollback,
			TargetID:   targetID(action),
			ActorID:    p.ID,
			Reason:     reason,
			Payload: audit.Payload{Rollback: &audit.RollbackPayload{
				ReversedEntryID: logID,
				ActionID:        action.ID,
				PointsRestored:  action.PointsDeducted,
			}},
			CreatedAt: now,
		}
		if err := s.audit.Record(ctx, rollback); err != nil {
			return err
		}
		if err := s.enqueue(ctx, action.ID, OpRevoke, now); err != nil {
			return err
		}

		snapshot := *action
		database.AfterCommit(ctx, func() {
			metrics.ActionsRolledBack.WithLabelValues(string(snapshot.ActionType)).Inc()
			s.publish(eventbus.NewActionRolledBack(eventbus.ActionRolledBack{
				ActionID:       snapshot.ID,
				AuditEntryID:   logID,
				ActionType:     string(snapshot.ActionType),
				TargetUserID:   snapshot.TargetUserID,
				PointsRestored: snapshot.PointsDeducted,
				ReversedBy:     p.ID,
			}))
			s.wake()
		})
		out = rollback
		return nil
	})
	if err != nil {
		if apperror.Kind(err) == apperror.ErrConflict {
			metrics.StatusConflicts.WithLabelValues("rollback").Inc()
		}
		return nil, err
	}

	log.Info().Str("log_id", logID).Str("reversed_by", p.ID.String()).Msg("Moderation action rolled back")
	return out, nil
}

// EscalateReport runs the escalation matrix for a report's target and acts
// on the decision. Stream reports need the stream owner as actorID. The
// decision is validated before the report moves to reviewing, and the move
// commits together with the action or referral.
func (s *Service) EscalateReport(ctx context.Context, p access.Principal, reportID uuid.UUID, actorID *uuid.UUID) (*EscalationResult, error) {
	if err := access.Require(p, access.PermTakeAction); err != nil {
		return nil, err
	}
	if err := access.Require(p, access.PermReviewReports); err != nil {
		return nil, err
	}

	report, err := s.reports.Lookup(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status.IsTerminal() {
		return nil, apperror.Wrapf(moderation.ErrStatusConflict, "report is %s", report.Status)
	}

	var actor uuid.UUID
	switch {
	case report.TargetType == moderation.TargetUser && report.TargetUserID != nil:
		actor = *report.TargetUserID
	case actorID != nil:
		actor = *actorID
	default:
		return nil, ErrStreamActorNeeded
	}

	decision, err := s.escalation.Decide(ctx, actor, report.ViolationType(), s.now().UTC())
	if err != nil {
		return nil, err
	}

	draft, err := PlanFor(decision, actor, report.StreamID)
	if err != nil && !decision.CourtRequired {
		return nil, err
	}
	if draft != nil {
		draft.ReportID = &report.ID
		draft.Reason = "escalation: " + report.ViolationType()
		draft.ViolationType = report.ViolationType()
		draft.Source = SourceEscalation
		if err := draft.validate(); err != nil {
			return nil, err
		}
	}
	if decision.CourtRequired && s.referrer == nil {
		return nil, ErrCourtUnavailable
	}

	result := &EscalationResult{Decision: decision}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.reports.EnsureReviewing(ctx, p, report.ID); err != nil {
			return err
		}

		switch {
		case decision.CourtRequired:
			referralID, err := s.referrer.Refer(ctx, ReferralRequest{
				ReportID: &report.ID,
				ActorID:  actor,
				StreamID: report.StreamID,
				Decision: decision,
				Draft:    draft,
			})
			if err != nil {
				return err
			}
			result.Outcome = OutcomeReferred
			result.ReferralID = &referralID
		case !decision.AutoEscalate:
			result.Outcome = OutcomeAwaitingReview
		default:
			action, err := s.ApplyAction(ctx, p, draft)
			if err != nil {
				return err
			}
			result.Outcome = OutcomeApplied
			result.Action = action
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PlanFor maps an escalation decision onto the action that enforces it.
// streamID is set for stream reports, where a timeout suspends the stream.
// court_session has no direct action.
func PlanFor(d escalation.Decision, actorID uuid.UUID, streamID *uuid.UUID) (*ApplyInput, error) {
	actor := actorID
	points := d.Points
	in := &ApplyInput{
		TargetUserID:   &actor,
		PointsDeducted: &points,
		ActorClass:     reputation.ClassUser,
		MatchedRuleID:  d.MatchedRuleID,
	}

	switch d.Consequence {
	case escalation.ConsequenceWarning:
		in.ActionType = ActionWarn
	case escalation.ConsequenceTimeout:
		in.ActionType = ActionMuteUser
		if streamID != nil {
			in.ActionType = ActionSuspendStream
			stream := *streamID
			in.StreamID = &stream
		}
		in.DurationMinutes = copyInt(d.DurationMinutes)
	case escalation.ConsequenceBan:
		in.ActionType = ActionBanUser
		in.DurationMinutes = copyInt(d.DurationMinutes)
	case escalation.ConsequencePermanentBan:
		in.ActionType = ActionBanUser
	default:
		return nil, apperror.Wrapf(ErrNoDirectAction, "%s", d.Consequence)
	}
	return in, nil
}

// GetAction returns an action by id
func (s *Service) GetAction(ctx context.Context, p access.Principal, id uuid.UUID) (*Action, error) {
	if err := access.Require(p, access.PermViewReports); err != nil {
		return nil, err
	}
	action, err := s.repo.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, ErrActionNotFound
	}
	return action, nil
}

// ListActions returns actions newest first with the total count
func (s *Service) ListActions(ctx context.Context, p access.Principal, filter *ActionFilter) ([]*Action, int, error) {
	if err := access.Require(p, access.PermViewReports); err != nil {
		return nil, 0, err
	}
	if filter.Limit <= 0 || filter.Limit > maxActionsPage {
		filter.Limit = maxActionsPage
	}
	actions, err := s.repo.ListActions(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountActions(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return actions, total, nil
}

// ListJobs returns outbox jobs, optionally of one status
func (s *Service) ListJobs(ctx context.Context, p access.Principal, status JobStatus, limit, offset int) ([]*Job, error) {
	if err := access.Require(p, access.PermRedriveJobs); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxActionsPage {
		limit = maxActionsPage
	}
	return s.repo.ListJobs(ctx, status, limit, offset)
}

// Redrive puts a failed job back in the queue
func (s *Service) Redrive(ctx context.Context, p access.Principal, jobID uuid.UUID) (*Job, error) {
	if err := access.Require(p, access.PermRedriveJobs); err != nil {
		return nil, err
	}
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	now := s.now().UTC()
	ok, err := s.repo.RequeueFailed(ctx, jobID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.Wrapf(ErrJobNotFailed, "job is %s", job.Status)
	}

	job.Status = JobPending
	job.Attempts = 0
	job.NextAttemptAt = now
	job.UpdatedAt = now
	log.Info().Str("job_id", jobID.String()).Str("by", p.ID.String()).Msg("Enforcement job redriven")
	s.wake()
	return job, nil
}

func (s *Service) enqueue(ctx context.Context, actionID uuid.UUID, op string, now time.Time) error {
	return s.repo.InsertJob(ctx, &Job{
		ID:            uuid.New(),
		ActionID:      actionID,
		Operation:     op,
		Status:        JobPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (s *Service) wake() {
	if s.dispatcher != nil {
		s.dispatcher.Nudge()
	}
}

func (s *Service) publish(evt eventbus.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(context.Background(), evt); err != nil {
		log.Warn().Err(err).Str("topic", string(evt.Topic)).Msg("Failed to publish event")
	}
}

func targetID(a *Action) string {
	if a.ActionType == ActionSuspendStream && a.StreamID != nil {
		return a.StreamID.String()
	}
	if a.TargetUserID != nil {
		return a.TargetUserID.String()
	}
	return ""
}

func actionPayload(a *Action) *audit.ActionPayload {
	p := &audit.ActionPayload{
		ActionID:        a.ID,
		TargetUserID:    a.TargetUserID,
		StreamID:        a.StreamID,
		DurationMinutes: a.DurationMinutes,
		ExpiresAt:       a.ExpiresAt,
		PointsDeducted:  a.PointsDeducted,
		ActorClass:      a.ActorClass,
		ReportID:        a.ReportID,
		MatchedRuleID:   a.MatchedRuleID,
	}
	if a.Details != nil {
		p.Details = *a.Details
	}
	return p
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
