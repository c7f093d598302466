package court

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/citywatch/citywatch-api/internal/pkg/database"
)

// Repository defines referral data access
type Repository interface {
	Create(ctx context.Context, ref *Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	// FindPending returns the pending referral of actor for report, if any.
	// A nil reportID matches referrals without a report.
	FindPending(ctx context.Context, actorID uuid.UUID, reportID *uuid.UUID) (*Referral, error)
	ListPending(ctx context.Context, actorID *uuid.UUID, limit int) ([]*Referral, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*Referral, error)

	// Resolve and Expire only change pending referrals and report whether
	// the row changed.
	Resolve(ctx context.Context, id uuid.UUID, ruling Ruling, actionID *uuid.UUID, at time.Time) (bool, error)
	Expire(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates a postgres referral repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const referralColumns = `id, report_id, actor_id, stream_id, plan, status, created_at, expires_at,
	resolved_at, ruling, action_id`

func (r *repository) Create(ctx context.Context, ref *Referral) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO court_referrals (`+referralColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		ref.ID, ref.ReportID, ref.ActorID, ref.StreamID, ref.Plan, ref.Status, ref.CreatedAt, ref.ExpiresAt,
		ref.ResolvedAt, ref.Ruling, ref.ActionID,
	)
	return err
}

func (r *repository) get(ctx context.Context, query string, args ...interface{}) (*Referral, error) {
	var ref Referral
	err := database.Conn(ctx, r.db).GetContext(ctx, &ref, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return r.get(ctx, `SELECT `+referralColumns+` FROM court_referrals WHERE id = $1`, id)
}

func (r *repository) FindPending(ctx context.Context, actorID uuid.UUID, reportID *uuid.UUID) (*Referral, error) {
	return r.get(ctx, `
		SELECT `+referralColumns+` FROM court_referrals
		WHERE actor_id = $1 AND report_id IS NOT DISTINCT FROM $2 AND status = 'pending'
		LIMIT 1
	`, actorID, reportID)
}

func (r *repository) ListPending(ctx context.Context, actorID *uuid.UUID, limit int) ([]*Referral, error) {
	var refs []*Referral
	err := database.Conn(ctx, r.db).SelectContext(ctx, &refs, `
		SELECT `+referralColumns+` FROM court_referrals
		WHERE status = 'pending' AND ($1::uuid IS NULL OR actor_id = $1)
		ORDER BY created_at, id
		LIMIT $2
	`, actorID, limit)
	return refs, err
}

func (r *repository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*Referral, error) {
	var refs []*Referral
	err := database.Conn(ctx, r.db).SelectContext(ctx, &refs, `
		SELECT `+referralColumns+` FROM court_referrals
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
	return refs, err
}

func (r *repository) Resolve(ctx context.Context, id uuid.UUID, ruling Ruling, actionID *uuid.UUID, at time.Time) (bool, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE court_referrals SET status = 'resolved', ruling = $2, action_id = $3, resolved_at = $4
		WHERE id = $1 AND status = 'pending'
	`, id, ruling, actionID, at)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *repository) Expire(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE court_referrals SET status = 'expired', resolved_at = $2
		WHERE id = $1 AND status = 'pending'
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
