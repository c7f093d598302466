package enforcement

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/pkg/controlplane"
	"github.com/citywatch/citywatch-api/internal/pkg/metrics"
)

const (
	baseBackoff = 5 * time.Second
	maxBackoff  = 10 * time.Minute
	leaseLength = time.Minute
)

// DispatcherConfig tunes the outbox dispatcher
type DispatcherConfig struct {
	Interval  time.Duration
	BatchSize int
	// MaxAttempts of 0 retries forever
	MaxAttempts int
}

// Dispatcher drains the enforcement outbox into the control plane
type Dispatcher struct {
	repo     Repository
	enforcer controlplane.Enforcer
	cfg      DispatcherConfig
	wakeCh   chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	now      func() time.Time
}

// NewDispatcher creates a new outbox dispatcher
func NewDispatcher(repo Repository, enforcer controlplane.Enforcer, cfg DispatcherConfig) *Dispatcher {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &Dispatcher{
		repo:     repo,
		enforcer: enforcer,
		cfg:      cfg,
		wakeCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the background dispatcher
func (d *Dispatcher) Start() {
	log.Info().Dur("interval", d.cfg.Interval).Msg("Starting enforcement dispatcher...")
	go d.loop()
}

// Stop stops the dispatcher and waits for the current batch
func (d *Dispatcher) Stop() {
	log.Info().Msg("Stopping enforcement dispatcher...")
	close(d.stopCh)
	<-d.doneCh
}

// Nudge asks for an early pass. It never blocks.
func (d *Dispatcher) Nudge() {
	select {
	case d.wakeCh <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) loop() {
	defer close(d.doneCh)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.tick()

	for {
		select {
		case <-ticker.C:
			d.tick()
		case <-d.wakeCh:
			d.tick()
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := d.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to dispatch enforcement jobs")
	}
}

// RunOnce claims due jobs and sends them. It returns how many were claimed.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	now := d.now().UTC()
	jobs, err := d.repo.ClaimDue(ctx, now, now.Add(leaseLength), d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		d.dispatch(ctx, job)
	}
	if len(jobs) > 0 {
		log.Debug().Int("count", len(jobs)).Msg("Dispatched enforcement jobs")
	}
	return len(jobs), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, job *Job) {
	action, err := d.repo.GetAction(ctx, job.ActionID)
	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("Failed to load action for job")
		return
	}

	job.Attempts++
	if action == nil {
		d.fail(ctx, job, errors.New("action not found"))
		return
	}
	if job.Operation == OpApply && !action.ActiveAt(d.now().UTC()) {
		d.skip(ctx, job)
		return
	}

	err = d.enforcer.Enforce(ctx, controlplane.Command{
		IdempotencyKey: job.IdempotencyKey(),
		Operation:      controlplane.Operation(job.Operation),
		ActionType:     string(action.ActionType),
		TargetUserID:   action.TargetUserID,
		StreamID:       action.StreamID,
		ExpiresAt:      action.ExpiresAt,
		Reason:         action.Reason,
	})

	now := d.now().UTC()
	job.UpdatedAt = now
	switch {
	case err == nil:
		job.Status = JobDone
		job.CompletedAt = &now
		job.LastError = nil
		metrics.EnforcementJobs.WithLabelValues(job.Operation, "done").Inc()
		d.save(ctx, job)
	case errors.Is(err, controlplane.ErrRejected):
		d.fail(ctx, job, err)
	case d.cfg.MaxAttempts > 0 && job.Attempts >= d.cfg.MaxAttempts:
		d.fail(ctx, job, err)
	default:
		msg := err.Error()
		job.LastError = &msg
		job.NextAttemptAt = now.Add(Backoff(job.Attempts))
		metrics.EnforcementJobs.WithLabelValues(job.Operation, "retry").Inc()
		log.Warn().Err(err).
			Str("job_id", job.ID.String()).
			Int("attempts", job.Attempts).
			Time("next_attempt_at", job.NextAttemptAt).
			Msg("Enforcement job will be retried")
		d.save(ctx, job)
	}
}

// skip closes an apply job whose action no longer binds. A revoke that
// overtook a retried apply must stay the last command sent.
func (d *Dispatcher) skip(ctx context.Context, job *Job) {
	now := d.now().UTC()
	job.Status = JobDone
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.LastError = nil
	metrics.EnforcementJobs.WithLabelValues(job.Operation, "skipped").Inc()
	log.Info().
		Str("job_id", job.ID.String()).
		Str("action_id", job.ActionID.String()).
		Msg("Skipped apply for inactive action")
	d.save(ctx, job)
}

func (d *Dispatcher) fail(ctx context.Context, job *Job, cause error) {
	msg := cause.Error()
	job.Status = JobFailed
	job.LastError = &msg
	job.UpdatedAt = d.now().UTC()
	metrics.EnforcementJobs.WithLabelValues(job.Operation, "failed").Inc()
	log.Error().Err(cause).
		Str("job_id", job.ID.String()).
		Str("action_id", job.ActionID.String()).
		Int("attempts", job.Attempts).
		Msg("Enforcement job failed")
	d.save(ctx, job)
}

func (d *Dispatcher) save(ctx context.Context, job *Job) {
	if err := d.repo.UpdateJob(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("Failed to update enforcement job")
	}
}

// Backoff is the wait before retry n (1-based): 5s doubling, capped at 10m
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := baseBackoff
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}
