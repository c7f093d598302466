package enforcement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/citywatch/citywatch-api/internal/pkg/database"
)

// ActionFilter narrows action listings
type ActionFilter struct {
	ActionType   ActionType
	TargetUserID *uuid.UUID
	StreamID     *uuid.UUID
	ReportID     *uuid.UUID
	ActiveAt     *time.Time
	Limit        int
	Offset       int
}

// Repository defines action and outbox data access
type Repository interface {
	InsertAction(ctx context.Context, a *Action) error
	GetAction(ctx context.Context, id uuid.UUID) (*Action, error)
	ListActions(ctx context.Context, filter *ActionFilter) ([]*Action, error)
	CountActions(ctx context.Context, filter *ActionFilter) (int, error)

	// RevokeAction sets revoked_at while the action is neither revoked nor
	// lifted. It reports whether the row changed.
	RevokeAction(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// LiftActiveBans marks every ban of userID still binding at `at` as lifted
	// and returns the lifted ids.
	LiftActiveBans(ctx context.Context, userID uuid.UUID, at time.Time) ([]uuid.UUID, error)

	InsertJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context, status JobStatus, limit, offset int) ([]*Job, error)
	// ClaimDue leases up to limit pending jobs due at now by pushing their
	// next attempt to leaseUntil. Concurrent claimers never share a job.
	ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*Job, error)
	UpdateJob(ctx context.Context, j *Job) error
	// RequeueFailed moves a failed job back to pending. It reports whether
	// the row changed.
	RequeueFailed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates a postgres enforcement repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const actionColumns = `id, action_type, target_user_id, stream_id, reason, details, created_by, created_at,
	duration_minutes, expires_at, report_id, reversible, points_deducted, actor_class, violation_type,
	matched_rule_id, audit_entry_id, revoked_at, lifted_at`

const jobColumns = `id, action_id, operation, status, attempts, next_attempt_at, last_error,
	created_at, updated_at, completed_at`

func (r *repository) InsertAction(ctx context.Context, a *Action) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO moderation_actions (`+actionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		a.ID, a.ActionType, a.TargetUserID, a.StreamID, a.Reason, a.Details, a.CreatedBy, a.CreatedAt,
		a.DurationMinutes, a.ExpiresAt, a.ReportID, a.Reversible, a.PointsDeducted, a.ActorClass, a.ViolationType,
		a.MatchedRuleID, a.AuditEntryID, a.RevokedAt, a.LiftedAt,
	)
	return err
}

func (r *repository) GetAction(ctx context.Context, id uuid.UUID) (*Action, error) {
	var a Action
	err := database.Conn(ctx, r.db).GetContext(ctx, &a, `SELECT `+actionColumns+` FROM moderation_actions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func buildActionWhere(filter *ActionFilter) (string, []interface{}) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if filter == nil {
		return where, args
	}
	if filter.ActionType != "" {
		args = append(args, filter.ActionType)
		where += fmt.Sprintf(` AND action_type = $%d`, len(args))
	}
	if filter.TargetUserID != nil {
		args = append(args, *filter.TargetUserID)
		where += fmt.Sprintf(` AND target_user_id = $%d`, len(args))
	}
	if filter.StreamID != nil {
		args = append(args, *filter.StreamID)
		where += fmt.Sprintf(` AND stream_id = $%d`, len(args))
	}
	if filter.ReportID != nil {
		args = append(args, *filter.ReportID)
		where += fmt.Sprintf(` AND report_id = $%d`, len(args))
	}
	if filter.ActiveAt != nil {
		args = append(args, *filter.ActiveAt)
		where += fmt.Sprintf(` AND revoked_at IS NULL AND lifted_at IS NULL AND (expires_at IS NULL OR expires_at > $%d)`, len(args))
	}
	return where, args
}

func (r *repository) ListActions(ctx context.Context, filter *ActionFilter) ([]*Action, error) {
	where, args := buildActionWhere(filter)
	query := `SELECT ` + actionColumns + ` FROM moderation_actions` + where + ` ORDER BY created_at DESC, id`

	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter != nil && filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	var actions []*Action
	err := database.Conn(ctx, r.db).SelectContext(ctx, &actions, query, args...)
	return actions, err
}

func (r *repository) CountActions(ctx context.Context, filter *ActionFilter) (int, error) {
	where, args := buildActionWhere(filter)
	var count int
	err := database.Conn(ctx, r.db).GetContext(ctx, &count, `SELECT COUNT(*) FROM moderation_actions`+where, args...)
	return count, err
}

func (r *repository) RevokeAction(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE moderation_actions SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL AND lifted_at IS NULL
	`, id, at)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *repository) LiftActiveBans(ctx context.Context, userID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := database.Conn(ctx, r.db).SelectContext(ctx, &ids, `
		UPDATE moderation_actions SET lifted_at = $2
		WHERE target_user_id = $1 AND action_type = $3
			AND revoked_at IS NULL AND lifted_at IS NULL
			AND (expires_at IS NULL OR expires_at > $2)
		RETURNING id
	`, userID, at, ActionBanUser)
	return ids, err
}

func (r *repository) InsertJob(ctx context.Context, j *Job) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO enforcement_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		j.ID, j.ActionID, j.Operation, j.Status, j.Attempts, j.NextAttemptAt, j.LastError,
		j.CreatedAt, j.UpdatedAt, j.CompletedAt,
	)
	return err
}

func (r *repository) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	var j Job
	err := database.Conn(ctx, r.db).GetContext(ctx, &j, `SELECT `+jobColumns+` FROM enforcement_jobs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

func (r *repository) ListJobs(ctx context.Context, status JobStatus, limit, offset int) ([]*Job, error) {
	var jobs []*Job
	err := database.Conn(ctx, r.db).SelectContext(ctx, &jobs, `
		SELECT `+jobColumns+` FROM enforcement_jobs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	return jobs, err
}

func (r *repository) ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*Job, error) {
	var jobs []*Job
	err := database.Conn(ctx, r.db).SelectContext(ctx, &jobs, `
		UPDATE enforcement_jobs SET next_attempt_at = $2, updated_at = $1
		WHERE id IN (
			SELECT id FROM enforcement_jobs
			WHERE status = 'pending' AND next_attempt_at <= $1
			ORDER BY next_attempt_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, now, leaseUntil, limit)
	return jobs, err
}

func (r *repository) UpdateJob(ctx context.Context, j *Job) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE enforcement_jobs
		SET status = $2, attempts = $3, next_attempt_at = $4, last_error = $5,
			updated_at = $6, completed_at = $7
		WHERE id = $1
	`, j.ID, j.Status, j.Attempts, j.NextAttemptAt, j.LastError, j.UpdatedAt, j.CompletedAt)
	return err
}

func (r *repository) RequeueFailed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE enforcement_jobs
		SET status = 'pending', attempts = 0, next_attempt_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'failed'
	`, id, at)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
