package enforcement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citywatch/citywatch-api/internal/pkg/apperror"
	"github.com/citywatch/citywatch-api/internal/pkg/controlplane"
)

type scriptedEnforcer struct {
	mu       sync.Mutex
	results  []error
	commands []controlplane.Command
}

func (e *scriptedEnforcer) Enforce(_ context.Context, cmd controlplane.Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, cmd)
	if len(e.results) == 0 {
		return nil
	}
	err := e.results[0]
	e.results = e.results[1:]
	return err
}

func seedBan(t *testing.T, f *fixture) *Action {
	t.Helper()
	user := uuid.New()
	action, err := f.svc.ApplyAction(context.Background(), officer, &ApplyInput{
		ActionType: ActionBanUser, TargetUserID: &user, DurationMinutes: intPtr(60), Reason: "r",
	})
	require.NoError(t, err)
	return action
}

func onlyJob(t *testing.T, repo Repository) *Job {
	t.Helper()
	jobs, err := repo.ListJobs(context.Background(), "", 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	return jobs[0]
}

func TestDispatcherDeliversWithIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	action := seedBan(t, f)
	enforcer := &scriptedEnforcer{}
	d := NewDispatcher(f.repo, enforcer, DispatcherConfig{})
	d.now = func() time.Time { return clock }

	n, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, enforcer.commands, 1)
	cmd := enforcer.commands[0]
	assert.Equal(t, action.ID.String()+":apply", cmd.IdempotencyKey)
	assert.Equal(t, controlplane.OpApply, cmd.Operation)
	assert.Equal(t, "ban_user", cmd.ActionType)
	assert.Equal(t, action.ExpiresAt, cmd.ExpiresAt)

	job := onlyJob(t, f.repo)
	assert.Equal(t, JobDone, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.NotNil(t, job.CompletedAt)

	n, err = d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcherRetriesWithBackoffThenFails(t *testing.T) {
	f := newFixture(t)
	seedBan(t, f)
	boom := errors.New("connection refused")
	enforcer := &scriptedEnforcer{results: []error{boom, boom}}
	d := NewDispatcher(f.repo, enforcer, DispatcherConfig{MaxAttempts: 2})
	now := clock
	d.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := d.RunOnce(ctx)
	require.NoError(t, err)
	job := onlyJob(t, f.repo)
	assert.Equal(t, JobPending, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, clock.Add(5*time.Second), job.NextAttemptAt)
	require.NotNil(t, job.LastError)
	assert.Contains(t, *job.LastError, "connection refused")

	n, err := d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "job must not be claimed before its backoff elapses")

	now = clock.Add(6 * time.Second)
	_, err = d.RunOnce(ctx)
	require.NoError(t, err)
	job = onlyJob(t, f.repo)
	assert.Equal(t, JobFailed, job.Status)
	assert.Equal(t, 2, job.Attempts)
}

func TestDispatcherFailsRejectedImmediately(t *testing.T) {
	f := newFixture(t)
	seedBan(t, f)
	enforcer := &scriptedEnforcer{results: []error{fmt.Errorf("%w: 400", controlplane.ErrRejected)}}
	d := NewDispatcher(f.repo, enforcer, DispatcherConfig{})
	d.now = func() time.Time { return clock }

	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, JobFailed, onlyJob(t, f.repo).Status)
}

func TestRedriveRequeuesFailedJob(t *testing.T) {
	f := newFixture(t)
	seedBan(t, f)
	ctx := context.Background()
	enforcer := &scriptedEnforcer{results: []error{controlplane.ErrRejected}}
	d := NewDispatcher(f.repo, enforcer, DispatcherConfig{})
	d.now = func() time.Time { return clock }
	f.svc.SetDispatcher(d)

	job := onlyJob(t, f.repo)
	_, err := f.svc.Redrive(ctx, lead, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFailed)

	_, err = d.RunOnce(ctx)
	require.NoError(t, err)

	_, err = f.svc.Redrive(ctx, officer, job.ID)
	assert.ErrorIs(t, err, apperror.ErrPermission)

	redriven, err := f.svc.Redrive(ctx, lead, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobPending, redriven.Status)
	assert.Zero(t, redriven.Attempts)

	_, err = d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, JobDone, onlyJob(t, f.repo).Status)
	assert.Len(t, enforcer.commands, 2)

	_, err = f.svc.Redrive(ctx, lead, uuid.New())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDispatcherSkipsApplyOvertakenByRevoke(t *testing.T) {
	f := newFixture(t)
	action := seedBan(t, f)
	ctx := context.Background()
	enforcer := &scriptedEnforcer{results: []error{errors.New("connection refused")}}
	d := NewDispatcher(f.repo, enforcer, DispatcherConfig{})
	now := clock
	d.now = func() time.Time { return now }

	_, err := d.RunOnce(ctx)
	require.NoError(t, err)

	_, err = f.svc.Rollback(ctx, officer, action.AuditEntryID, "")
	require.NoError(t, err)

	_, err = d.RunOnce(ctx)
	require.NoError(t, err)
	now = clock.Add(2 * time.Minute)
	_, err = d.RunOnce(ctx)
	require.NoError(t, err)

	require.Len(t, enforcer.commands, 2)
	assert.Equal(t, controlplane.OpApply, enforcer.commands[0].Operation)
	assert.Equal(t, controlplane.OpRevoke, enforcer.commands[1].Operation)

	jobs, err := f.repo.ListJobs(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		assert.Equal(t, JobDone, job.Status, job.Operation)
	}
}

func TestDispatcherSkipsExpiredApply(t *testing.T) {
	f := newFixture(t)
	seedBan(t, f)
	enforcer := &scriptedEnforcer{}
	d := NewDispatcher(f.repo, enforcer, DispatcherConfig{})
	d.now = func() time.Time { return clock.Add(2 * time.Hour) }

	n, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, enforcer.commands)
	assert.Equal(t, JobDone, onlyJob(t, f.repo).Status)
}

func TestDispatcherStartStop(t *testing.T) {
	f := newFixture(t)
	seedBan(t, f)
	enforcer := &scriptedEnforcer{}
	d := NewDispatcher(f.repo, enforcer, DispatcherConfig{Interval: time.Hour})
	d.now = func() time.Time { return clock }

	d.Start()
	require.Eventually(t, func() bool {
		enforcer.mu.Lock()
		defer enforcer.mu.Unlock()
		return len(enforcer.commands) == 1
	}, time.Second, 10*time.Millisecond)
	d.Stop()
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, 5*time.Second, Backoff(1))
	assert.Equal(t, 10*time.Second, Backoff(2))
	assert.Equal(t, 40*time.Second, Backoff(4))
	assert.Equal(t, 10*time.Minute, Backoff(10))
	assert.Equal(t, 10*time.Minute, Backoff(50))
}
