package enforcement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citywatch/citywatch-api/internal/config"
	"github.com/citywatch/citywatch-api/internal/domain/audit"
	"github.com/citywatch/citywatch-api/internal/domain/escalation"
	"github.com/citywatch/citywatch-api/internal/domain/moderation"
	"github.com/citywatch/citywatch-api/internal/domain/reputation"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
	"github.com/citywatch/citywatch-api/internal/pkg/database"
)

var (
	clock   = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	officer = access.Principal{ID: uuid.New(), Role: access.RoleOfficer}
	lead    = access.Principal{ID: uuid.New(), Role: access.RoleLeadOfficer}
)

type fixture struct {
	svc        *Service
	repo       Repository
	reports    *moderation.Service
	escalation *escalation.Service
	reputation *reputation.Service
	audit      *audit.Service
	referrer   *fakeReferrer
}

type fakeReferrer struct {
	mu       sync.Mutex
	requests []ReferralRequest
}

func (f *fakeReferrer) Refer(_ context.Context, req ReferralRequest) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return uuid.New(), nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	policy := config.DefaultPolicy()
	tx := database.NewMemTransactor()

	auditSvc := audit.NewService(audit.NewMemRepository(), nil, nil)
	reports := moderation.NewService(moderation.NewMemRepository(), nil, tx)
	esc := escalation.NewService(escalation.NewMemRepository(), nil, auditSvc, tx)
	_, err := esc.ImportRules(context.Background(), lead, policy.EscalationRules, false)
	require.NoError(t, err)

	scales, err := reputation.NewScales(policy)
	require.NoError(t, err)
	rep := reputation.NewService(reputation.NewMemRepository(), scales, auditSvc, nil, tx)

	repo := NewMemRepository()
	svc := NewService(repo, reports, esc, rep, auditSvc, nil, tx, policy.ManualPoints)
	svc.now = func() time.Time { return clock }
	referrer := &fakeReferrer{}
	svc.SetReferrer(referrer)

	return &fixture{
		svc:        svc,
		repo:       repo,
		reports:    reports,
		escalation: esc,
		reputation: rep,
		audit:      auditSvc,
		referrer:   referrer,
	}
}

func (f *fixture) reviewingReport(t *testing.T, target uuid.UUID, reason moderation.ReportReason) *moderation.Report {
	t.Helper()
	ctx := context.Background()
	report, err := f.reports.Submit(ctx, access.Principal{ID: uuid.New(), Role: access.RoleUser}, &moderation.SubmitInput{
		Target: moderation.Target{Type: moderation.TargetUser, UserID: &target},
		Reason: reason,
	})
	require.NoError(t, err)
	report, err = f.reports.BeginReview(ctx, officer, report.ID)
	require.NoError(t, err)
	return report
}

func (f *fixture) score(t *testing.T, actor uuid.UUID) int {
	t.Helper()
	rec, err := f.reputation.Get(context.Background(), officer, actor, reputation.ClassUser)
	require.NoError(t, err)
	return rec.CurrentScore
}

func intPtr(v int) *int { return &v }

func TestApplyBanWithReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := uuid.New()
	report := f.reviewingReport(t, target, moderation.ReasonHarassment)

	action, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{
		ActionType:      ActionBanUser,
		DurationMinutes: intPtr(1440),
		Reason:          "repeated harassment",
		ReportID:        &report.ID,
	})
	require.NoError(t, err)

	require.NotNil(t, action.TargetUserID)
	assert.Equal(t, target, *action.TargetUserID)
	require.NotNil(t, action.ExpiresAt)
	assert.Equal(t, action.CreatedAt.Add(24*time.Hour), *action.ExpiresAt)
	assert.True(t, action.Reversible)
	assert.Equal(t, 30, action.PointsDeducted)

	entry, err := f.audit.Lookup(ctx, action.AuditEntryID)
	require.NoError(t, err)
	assert.Equal(t, audit.EntryBanUser, entry.ActionType)
	require.NotNil(t, entry.Payload.Action)
	assert.Equal(t, action.ID, entry.Payload.Action.ActionID)

	updated, err := f.reports.Lookup(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusActionTaken, updated.Status)

	assert.Equal(t, 70, f.score(t, target))

	jobs, err := f.repo.ListJobs(ctx, JobPending, 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, OpApply, jobs[0].Operation)
	assert.Equal(t, action.ID.String()+":apply", jobs[0].IdempotencyKey())
}

func TestApplyWithPendingReportConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := uuid.New()
	report, err := f.reports.Submit(ctx, access.Principal{ID: uuid.New(), Role: access.RoleUser}, &moderation.SubmitInput{
		Target: moderation.Target{Type: moderation.TargetUser, UserID: &target},
		Reason: moderation.ReasonSpam,
	})
	require.NoError(t, err)

	_, err = f.svc.ApplyAction(ctx, officer, &ApplyInput{ActionType: ActionWarn, Reason: "spam", ReportID: &report.ID})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	count, err := f.repo.CountActions(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestApplyValidation(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	stream := uuid.New()

	cases := []struct {
		name string
		in   ApplyInput
		want error
	}{
		{"warn with duration", ApplyInput{ActionType: ActionWarn, TargetUserID: &user, DurationMinutes: intPtr(10), Reason: "r"}, ErrDurationForbidden},
		{"unban with duration", ApplyInput{ActionType: ActionUnbanUser, TargetUserID: &user, DurationMinutes: intPtr(10), Reason: "r"}, ErrDurationForbidden},
		{"mute without duration", ApplyInput{ActionType: ActionMuteUser, TargetUserID: &user, Reason: "r"}, ErrDurationRequired},
		{"ban with zero duration", ApplyInput{ActionType: ActionBanUser, TargetUserID: &user, DurationMinutes: intPtr(0), Reason: "r"}, ErrDurationPositive},
		{"suspend without stream", ApplyInput{ActionType: ActionSuspendStream, TargetUserID: &user, Reason: "r"}, ErrStreamTargetNeeded},
		{"warn on stream", ApplyInput{ActionType: ActionWarn, TargetUserID: &user, StreamID: &stream, Reason: "r"}, ErrStreamNotAllowed},
		{"ban without target", ApplyInput{ActionType: ActionBanUser, Reason: "r"}, ErrUserTargetNeeded},
		{"missing reason", ApplyInput{ActionType: ActionWarn, TargetUserID: &user}, ErrReasonRequired},
		{"negative points", ApplyInput{ActionType: ActionWarn, TargetUserID: &user, Reason: "r", PointsDeducted: intPtr(-1)}, ErrNegativePoints},
		{"unknown type", ApplyInput{ActionType: "shadowban", TargetUserID: &user, Reason: "r"}, ErrInvalidActionType},
		{"unknown class", ApplyInput{ActionType: ActionWarn, TargetUserID: &user, Reason: "r", ActorClass: "mayor"}, ErrUnknownActorClass},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			_, err := f.svc.ApplyAction(context.Background(), officer, &in)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestApplyRequiresPermission(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()

	_, err := f.svc.ApplyAction(context.Background(), access.Principal{ID: uuid.New(), Role: access.RoleUser}, &ApplyInput{
		ActionType: ActionWarn, TargetUserID: &user, Reason: "r",
	})
	assert.ErrorIs(t, err, apperror.ErrPermission)
}

func TestSuspendStreamEnqueuesWithoutTargetUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stream := uuid.New()

	action, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{
		ActionType: ActionSuspendStream, StreamID: &stream, DurationMinutes: intPtr(30), Reason: "nsfw",
	})
	require.NoError(t, err)
	assert.False(t, action.Reversible)
	assert.Nil(t, action.ViolationType)

	entry, err := f.audit.Lookup(ctx, action.AuditEntryID)
	require.NoError(t, err)
	assert.Equal(t, stream.String(), entry.TargetID)

	jobs, err := f.repo.ListJobs(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestWarnHasNoOutboxJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{ActionType: ActionWarn, TargetUserID: &user, Reason: "first"})
	require.NoError(t, err)

	jobs, err := f.repo.ListJobs(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Equal(t, 95, f.score(t, user))
}

func TestRollbackRestoresAndConflictsOnRepeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := uuid.New()
	report := f.reviewingReport(t, target, moderation.ReasonSpam)

	action, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{
		ActionType: ActionMuteUser, DurationMinutes: intPtr(60), Reason: "flooding", ReportID: &report.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 90, f.score(t, target))

	rollback, err := f.svc.Rollback(ctx, officer, action.AuditEntryID, "")
	require.NoError(t, err)
	assert.Equal(t, audit.EntryRollback, rollback.ActionType)
	require.NotNil(t, rollback.Payload.Rollback)
	assert.Equal(t, action.AuditEntryID, rollback.Payload.Rollback.ReversedEntryID)
	assert.Equal(t, 10, rollback.Payload.Rollback.PointsRestored)

	assert.Equal(t, 100, f.score(t, target))

	original, err := f.audit.Lookup(ctx, action.AuditEntryID)
	require.NoError(t, err)
	assert.True(t, original.IsReversed())
	require.NotNil(t, original.ReversedBy)
	assert.Equal(t, officer.ID, *original.ReversedBy)

	stored, err := f.repo.GetAction(ctx, action.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.RevokedAt)

	decision, err := f.escalation.Evaluate(ctx, officer, target, "spam", clock)
	require.NoError(t, err)
	assert.Zero(t, decision.ViolationCount)

	updated, err := f.reports.Lookup(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusActionTaken, updated.Status)

	jobs, err := f.repo.ListJobs(ctx, "", 10, 0)
	require.NoError(t, err)
	ops := []string{}
	for _, j := range jobs {
		ops = append(ops, j.Operation)
	}
	assert.ElementsMatch(t, []string{OpApply, OpRevoke}, ops)

	_, err = f.svc.Rollback(ctx, officer, action.AuditEntryID, "")
	assert.ErrorIs(t, err, audit.ErrAlreadyReversed)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, 100, f.score(t, target))
}

func TestRollbackNonReversibleConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()
	stream := uuid.New()

	warn, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{ActionType: ActionWarn, TargetUserID: &user, Reason: "r"})
	require.NoError(t, err)
	suspend, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{ActionType: ActionSuspendStream, StreamID: &stream, Reason: "r"})
	require.NoError(t, err)

	for _, a := range []*Action{warn, suspend} {
		_, err := f.svc.Rollback(ctx, officer, a.AuditEntryID, "")
		assert.ErrorIs(t, err, ErrNotReversible)
		assert.ErrorIs(t, err, apperror.ErrConflict)

		entry, err := f.audit.Lookup(ctx, a.AuditEntryID)
		require.NoError(t, err)
		assert.False(t, entry.IsReversed())
	}
}

func TestRollbackUnknownEntry(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Rollback(context.Background(), officer, "01HZZZZZZZZZZZZZZZZZZZZZZZ", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRollbackOfRollbackEntryConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	action, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{ActionType: ActionBanUser, TargetUserID: &user, Reason: "r"})
	require.NoError(t, err)
	rollback, err := f.svc.Rollback(ctx, officer, action.AuditEntryID, "")
	require.NoError(t, err)

	_, err = f.svc.Rollback(ctx, officer, rollback.ID, "")
	assert.ErrorIs(t, err, ErrNotReversible)
}

func TestRollbackExpiredActionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	action, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{
		ActionType: ActionMuteUser, TargetUserID: &user, DurationMinutes: intPtr(15), Reason: "r",
	})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return clock.Add(16 * time.Minute) }
	_, err = f.svc.Rollback(ctx, officer, action.AuditEntryID, "")
	assert.ErrorIs(t, err, ErrActionInactive)
}

func TestConcurrentRollbackExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	action, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{ActionType: ActionBanUser, TargetUserID: &user, Reason: "r"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Rollback(ctx, officer, action.AuditEntryID, "")
		}(i)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, apperror.ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 100, f.score(t, user))
}

func TestUnbanLiftsActiveBan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{ActionType: ActionUnbanUser, TargetUserID: &user, Reason: "appeal"})
	assert.ErrorIs(t, err, ErrNoActiveBan)

	ban, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{ActionType: ActionBanUser, TargetUserID: &user, Reason: "r"})
	require.NoError(t, err)
	assert.Nil(t, ban.ExpiresAt)

	unban, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{ActionType: ActionUnbanUser, TargetUserID: &user, Reason: "appeal"})
	require.NoError(t, err)
	assert.False(t, unban.Reversible)
	assert.Zero(t, unban.PointsDeducted)

	stored, err := f.repo.GetAction(ctx, ban.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LiftedAt)

	_, err = f.svc.Rollback(ctx, officer, ban.AuditEntryID, "")
	assert.ErrorIs(t, err, ErrActionInactive)
	_, err = f.svc.Rollback(ctx, officer, unban.AuditEntryID, "")
	assert.ErrorIs(t, err, ErrNotReversible)
}

// liftedElsewhere loses every LiftActiveBans race to a concurrent unban
type liftedElsewhere struct {
	Repository
}

func (liftedElsewhere) LiftActiveBans(context.Context, uuid.UUID, time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func TestUnbanLosingLiftRaceKeepsReportReviewing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()
	_, err := f.svc.ApplyAction(ctx, officer, &ApplyInput{ActionType: ActionBanUser, TargetUserID: &user, Reason: "r"})
	require.NoError(t, err)
	report := f.reviewingReport(t, user, moderation.ReasonOther)

	f.svc.repo = liftedElsewhere{Repository: f.repo}
	_, err = f.svc.ApplyAction(ctx, officer, &ApplyInput{ActionType: ActionUnbanUser, Reason: "appeal", ReportID: &report.ID})
	assert.ErrorIs(t, err, ErrNoActiveBan)

	stored, err := f.reports.Lookup(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusReviewing, stored.Status)
	count, err := f.repo.CountActions(ctx, &ActionFilter{ActionType: ActionUnbanUser})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEscalateClimbsTheMatrix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := uuid.New()

	var last *EscalationResult
	for i := 0; i < 3; i++ {
		report := f.reviewingReport(t, target, moderation.ReasonSpam)
		result, err := f.svc.EscalateReport(ctx, officer, report.ID, nil)
		require.NoError(t, err)
		require.Equal(t, OutcomeApplied, result.Outcome)
		if i < 2 {
			assert.Equal(t, ActionWarn, result.Action.ActionType)
		}
		last = result
	}

	assert.Equal(t, ActionMuteUser, last.Action.ActionType)
	require.NotNil(t, last.Action.DurationMinutes)
	assert.Equal(t, 1440, *last.Action.DurationMinutes)
	assert.Equal(t, 10, last.Action.PointsDeducted)
	assert.NotNil(t, last.Action.MatchedRuleID)
	assert.Equal(t, 3, last.Decision.ViolationCount)
	assert.Equal(t, 100-5-5-10, f.score(t, target))
}

func TestEscalateBeginsReviewOfPendingReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := uuid.New()
	report, err := f.reports.Submit(ctx, access.Principal{ID: uuid.New(), Role: access.RoleUser}, &moderation.SubmitInput{
		Target: moderation.Target{Type: moderation.TargetUser, UserID: &target},
		Reason: moderation.ReasonIllegalContent,
	})
	require.NoError(t, err)

	result, err := f.svc.EscalateReport(ctx, officer, report.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionBanUser, result.Action.ActionType)
	assert.Nil(t, result.Action.ExpiresAt)

	updated, err := f.reports.Lookup(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusActionTaken, updated.Status)
}

func TestEscalateCourtRuleRefers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := uuid.New()
	report := f.reviewingReport(t, target, moderation.ReasonScam)

	result, err := f.svc.EscalateReport(ctx, officer, report.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReferred, result.Outcome)
	assert.NotNil(t, result.ReferralID)
	assert.Nil(t, result.Action)

	require.Len(t, f.referrer.requests, 1)
	req := f.referrer.requests[0]
	assert.Equal(t, target, req.ActorID)
	assert.Equal(t, escalation.ConsequenceCourtSession, req.Decision.Consequence)
	assert.Nil(t, req.Draft)

	updated, err := f.reports.Lookup(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusReviewing, updated.Status)
}

func TestEscalateManualRuleAwaitsReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manual := false
	_, err := f.escalation.CreateRule(ctx, lead, &escalation.RuleRequest{
		ViolationType:  "other",
		Severity:       2,
		Threshold:      1,
		Consequence:    "warning",
		AutoEscalate:   &manual,
		TimeWindowDays: 30,
		Points:         3,
	})
	require.NoError(t, err)

	target := uuid.New()
	report := f.reviewingReport(t, target, moderation.ReasonOther)
	result, err := f.svc.EscalateReport(ctx, officer, report.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingReview, result.Outcome)
	assert.Nil(t, result.Action)
	assert.Equal(t, 100, f.score(t, target))
}

func TestEscalateStreamReportNeedsActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stream := uuid.New()
	report, err := f.reports.Submit(ctx, access.Principal{ID: uuid.New(), Role: access.RoleUser}, &moderation.SubmitInput{
		Target: moderation.Target{Type: moderation.TargetStream, StreamID: &stream},
		Reason: moderation.ReasonInappropriateContent,
	})
	require.NoError(t, err)

	_, err = f.svc.EscalateReport(ctx, officer, report.ID, nil)
	assert.ErrorIs(t, err, ErrStreamActorNeeded)
	unchanged, err := f.reports.Lookup(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusPending, unchanged.Status)

	owner := uuid.New()
	result, err := f.svc.EscalateReport(ctx, officer, report.ID, &owner)
	require.NoError(t, err)
	assert.Equal(t, ActionWarn, result.Action.ActionType)
	assert.Equal(t, owner, *result.Action.TargetUserID)
}

func TestEscalateWithoutCourtLeavesReportPending(t *testing.T) {
	f := newFixture(t)
	f.svc.referrer = nil
	ctx := context.Background()
	target := uuid.New()
	report, err := f.reports.Submit(ctx, access.Principal{ID: uuid.New(), Role: access.RoleUser}, &moderation.SubmitInput{
		Target: moderation.Target{Type: moderation.TargetUser, UserID: &target},
		Reason: moderation.ReasonScam,
	})
	require.NoError(t, err)

	_, err = f.svc.EscalateReport(ctx, officer, report.ID, nil)
	assert.ErrorIs(t, err, ErrCourtUnavailable)

	stored, err := f.reports.Lookup(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusPending, stored.Status)
}

func TestEscalateClosedReportConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	report := f.reviewingReport(t, uuid.New(), moderation.ReasonSpam)
	_, err := f.reports.Reject(ctx, officer, report.ID)
	require.NoError(t, err)

	_, err = f.svc.EscalateReport(ctx, officer, report.ID, nil)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Empty(t, f.referrer.requests)
}

func TestPlanForStreamTimeoutSuspends(t *testing.T) {
	actor := uuid.New()
	stream := uuid.New()
	d := escalation.Decision{Consequence: escalation.ConsequenceTimeout, DurationMinutes: intPtr(60), Points: 5}

	in, err := PlanFor(d, actor, &stream)
	require.NoError(t, err)
	assert.Equal(t, ActionSuspendStream, in.ActionType)
	assert.Equal(t, stream, *in.StreamID)
	assert.Equal(t, 60, *in.DurationMinutes)

	in, err = PlanFor(d, actor, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionMuteUser, in.ActionType)

	_, err = PlanFor(escalation.Decision{Consequence: escalation.ConsequenceCourtSession}, actor, nil)
	assert.ErrorIs(t, err, ErrNoDirectAction)
}
