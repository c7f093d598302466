package court

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citywatch/citywatch-api/internal/config"
	"github.com/citywatch/citywatch-api/internal/domain/audit"
	"github.com/citywatch/citywatch-api/internal/domain/enforcement"
	"github.com/citywatch/citywatch-api/internal/domain/escalation"
	"github.com/citywatch/citywatch-api/internal/domain/moderation"
	"github.com/citywatch/citywatch-api/internal/domain/reputation"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
	"github.com/citywatch/citywatch-api/internal/pkg/database"
	"github.com/citywatch/citywatch-api/internal/pkg/eventbus"
)

var (
	officer = access.Principal{ID: uuid.New(), Role: access.RoleOfficer}
	lead    = access.Principal{ID: uuid.New(), Role: access.RoleLeadOfficer}
	citizen = access.Principal{ID: uuid.New(), Role: access.RoleUser}
)

type fixture struct {
	svc        *Service
	actions    *enforcement.Service
	actionRepo enforcement.Repository
	reports    *moderation.Service
	reputation *reputation.Service
	bus        *eventbus.MemoryBus
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	policy := config.DefaultPolicy()
	tx := database.NewMemTransactor()
	bus := eventbus.NewMemoryBus()
	t.Cleanup(func() { bus.Close() })

	auditSvc := audit.NewService(audit.NewMemRepository(), nil, nil)
	reports := moderation.NewService(moderation.NewMemRepository(), nil, tx)
	esc := escalation.NewService(escalation.NewMemRepository(), nil, auditSvc, tx)
	_, err := esc.ImportRules(context.Background(), lead, policy.EscalationRules, false)
	require.NoError(t, err)

	scales, err := reputation.NewScales(policy)
	require.NoError(t, err)
	rep := reputation.NewService(reputation.NewMemRepository(), scales, auditSvc, nil, tx)

	actionRepo := enforcement.NewMemRepository()
	actions := enforcement.NewService(actionRepo, reports, esc, rep, auditSvc, nil, tx, policy.ManualPoints)
	svc := NewService(NewMemRepository(), actions, reports, bus, tx, opts)

	return &fixture{
		svc:        svc,
		actions:    actions,
		actionRepo: actionRepo,
		reports:    reports,
		reputation: rep,
		bus:        bus,
	}
}

// refer files a scam report against a fresh user and escalates it into court
func (f *fixture) refer(t *testing.T) (uuid.UUID, *moderation.Report, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	actor := uuid.New()
	report, err := f.reports.Submit(ctx, citizen, &moderation.SubmitInput{
		Target: moderation.Target{Type: moderation.TargetUser, UserID: &actor},
		Reason: moderation.ReasonScam,
	})
	require.NoError(t, err)

	result, err := f.actions.EscalateReport(ctx, officer, report.ID, nil)
	require.NoError(t, err)
	require.Equal(t, enforcement.OutcomeReferred, result.Outcome)
	require.NotNil(t, result.ReferralID)
	return actor, report, *result.ReferralID
}

func (f *fixture) reportStatus(t *testing.T, id uuid.UUID) moderation.ReportStatus {
	t.Helper()
	report, err := f.reports.Lookup(context.Background(), id)
	require.NoError(t, err)
	return report.Status
}

func intPtr(v int) *int { return &v }

func TestReferIsIdempotentPerActorAndReport(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	events, err := f.bus.Subscribe(ctx, eventbus.TopicReferralOpened)
	require.NoError(t, err)

	actor, report, referralID := f.refer(t)

	again, err := f.actions.EscalateReport(ctx, officer, report.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, again.ReferralID)
	assert.Equal(t, referralID, *again.ReferralID)

	pending, err := f.svc.GetPendingReferrals(ctx, officer, &actor, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, referralID, pending[0].ID)
	assert.Equal(t, escalation.ConsequenceCourtSession, pending[0].Plan.Decision.Consequence)
	assert.Nil(t, pending[0].ExpiresAt)

	other := uuid.New()
	none, err := f.svc.GetPendingReferrals(ctx, officer, &other, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	select {
	case evt := <-events:
		assert.Equal(t, eventbus.TopicReferralOpened, evt.Topic)
	case <-time.After(time.Second):
		t.Fatal("referral.opened was not published")
	}
	select {
	case <-events:
		t.Fatal("a repeated referral must not publish again")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPendingReferralsRequireStaff(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.GetPendingReferrals(context.Background(), citizen, nil, 0)
	assert.ErrorIs(t, err, apperror.ErrPermission)

	_, err = f.svc.Get(context.Background(), officer, uuid.New())
	assert.ErrorIs(t, err, ErrReferralNotFound)
}

func TestGuiltyVerdictAppliesConsequence(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	actor, report, referralID := f.refer(t)

	_, err := f.svc.SubmitVerdict(ctx, referralID, &Verdict{Ruling: RulingGuilty})
	require.Error(t, err)
	assert.Equal(t, apperror.ErrValidation, apperror.Kind(err))

	judge := uuid.New()
	ref, err := f.svc.SubmitVerdict(ctx, referralID, &Verdict{
		Ruling:          RulingGuilty,
		Consequence:     escalation.ConsequenceBan,
		DurationMinutes: intPtr(1440),
		JudgeID:         &judge,
		Notes:           "repeat fraud",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, ref.Status)
	require.NotNil(t, ref.Ruling)
	assert.Equal(t, RulingGuilty, *ref.Ruling)
	require.NotNil(t, ref.ActionID)

	action, err := f.actionRepo.GetAction(ctx, *ref.ActionID)
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, enforcement.ActionBanUser, action.ActionType)
	assert.Equal(t, actor, *action.TargetUserID)
	assert.Equal(t, judge, action.CreatedBy)
	require.NotNil(t, action.ExpiresAt)
	assert.Equal(t, moderation.StatusActionTaken, f.reportStatus(t, report.ID))

	rec, err := f.reputation.Get(ctx, officer, actor, reputation.ClassUser)
	require.NoError(t, err)
	assert.Equal(t, 60, rec.CurrentScore)

	_, err = f.svc.SubmitVerdict(ctx, referralID, &Verdict{Ruling: RulingDismissed})
	assert.ErrorIs(t, err, ErrReferralClosed)

	pending, err := f.svc.GetPendingReferrals(ctx, officer, &actor, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAcquittalClosesReport(t *testing.T) {
	tests := []struct {
		ruling Ruling
		want   moderation.ReportStatus
	}{
		{RulingNotGuilty, moderation.StatusRejected},
		{RulingDismissed, moderation.StatusRejected},
		{RulingAppealGranted, moderation.StatusResolved},
	}
	for _, tt := range tests {
		t.Run(string(tt.ruling), func(t *testing.T) {
			f := newFixture(t, Options{})
			actor, report, referralID := f.refer(t)

			ref, err := f.svc.SubmitVerdict(context.Background(), referralID, &Verdict{Ruling: tt.ruling})
			require.NoError(t, err)
			assert.Nil(t, ref.ActionID)
			assert.Equal(t, tt.want, f.reportStatus(t, report.ID))

			actions, err := f.actionRepo.ListActions(context.Background(), &enforcement.ActionFilter{TargetUserID: &actor})
			require.NoError(t, err)
			assert.Empty(t, actions)
		})
	}
}

func TestVerdictOnClosedReportRetiresReferral(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	actor, report, referralID := f.refer(t)

	_, err := f.reports.Reject(ctx, officer, report.ID)
	require.NoError(t, err)

	_, err = f.svc.SubmitVerdict(ctx, referralID, &Verdict{Ruling: RulingGuilty, Consequence: escalation.ConsequenceBan})
	assert.ErrorIs(t, err, ErrReportClosed)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	ref, err := f.svc.Get(ctx, officer, referralID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, ref.Status)
	assert.Equal(t, moderation.StatusRejected, f.reportStatus(t, report.ID))

	pending, err := f.svc.GetPendingReferrals(ctx, officer, &actor, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
	actions, err := f.actionRepo.ListActions(ctx, &enforcement.ActionFilter{TargetUserID: &actor})
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestSweepDismissSkipsClosedReport(t *testing.T) {
	f := newFixture(t, Options{TTL: time.Hour, TimeoutPolicy: TimeoutDismiss})
	ctx := context.Background()
	_, report, referralID := f.refer(t)
	_, err := f.reports.ResolveWithoutAction(ctx, officer, report.ID)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ref, err := f.svc.Get(ctx, officer, referralID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, ref.Status)
	assert.Equal(t, moderation.StatusResolved, f.reportStatus(t, report.ID))
}

func TestVerdictValidation(t *testing.T) {
	f := newFixture(t, Options{})
	_, _, referralID := f.refer(t)
	ctx := context.Background()

	_, err := f.svc.SubmitVerdict(ctx, referralID, &Verdict{Ruling: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidRuling)

	_, err = f.svc.SubmitVerdict(ctx, referralID, &Verdict{Ruling: RulingGuilty, Consequence: "exile"})
	assert.ErrorIs(t, err, ErrInvalidConsequence)

	_, err = f.svc.SubmitVerdict(ctx, uuid.New(), &Verdict{Ruling: RulingDismissed})
	assert.ErrorIs(t, err, ErrReferralNotFound)
}

func TestSweepHonoursTimeoutPolicy(t *testing.T) {
	tests := []struct {
		policy string
		want   moderation.ReportStatus
	}{
		{TimeoutNone, moderation.StatusReviewing},
		{TimeoutReturnToStaff, moderation.StatusReviewing},
		{TimeoutDismiss, moderation.StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			f := newFixture(t, Options{TTL: time.Hour, TimeoutPolicy: tt.policy})
			ctx := context.Background()
			_, report, referralID := f.refer(t)

			n, err := f.svc.Sweep(ctx)
			require.NoError(t, err)
			assert.Zero(t, n, "referral is not overdue yet")

			f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
			n, err = f.svc.Sweep(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			ref, err := f.svc.Get(ctx, officer, referralID)
			require.NoError(t, err)
			assert.Equal(t, StatusExpired, ref.Status)
			assert.Equal(t, tt.want, f.reportStatus(t, report.ID))

			_, err = f.svc.SubmitVerdict(ctx, referralID, &Verdict{Ruling: RulingNotGuilty})
			assert.ErrorIs(t, err, ErrReferralClosed)

			n, err = f.svc.Sweep(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestSweeperStartStop(t *testing.T) {
	f := newFixture(t, Options{TTL: time.Millisecond, TimeoutPolicy: TimeoutDismiss})
	_, report, _ := f.refer(t)
	time.Sleep(5 * time.Millisecond)

	w := NewSweeper(f.svc, time.Hour)
	w.Start()
	defer w.Stop()

	require.Eventually(t, func() bool {
		return f.reportStatus(t, report.ID) == moderation.StatusRejected
	}, time.Second, 10*time.Millisecond)
}
