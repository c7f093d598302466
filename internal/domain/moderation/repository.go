package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/citywatch/citywatch-api/internal/pkg/database"
)

// ListFilter narrows report listings
type ListFilter struct {
	Status       ReportStatus
	ReporterID   *uuid.UUID
	TargetUserID *uuid.UUID
	Limit        int
	Offset       int
}

// Repository defines report data access
type Repository interface {
	Create(ctx context.Context, report *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	List(ctx context.Context, filter *ListFilter) ([]*Report, error)
	Count(ctx context.Context, filter *ListFilter) (int, error)

	// TransitionStatus moves the report to `to` only while its status is one
	// of from. It reports whether the row changed.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []ReportStatus, to ReportStatus, reviewer *uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates a postgres report repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const reportColumns = `id, reporter_id, target_type, target_user_id, stream_id, reason, description,
	status, created_at, resolved_at, reviewed_by`

func (r *repository) Create(ctx context.Context, report *Report) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO moderation_reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		report.ID, report.ReporterID, report.TargetType, report.TargetUserID, report.StreamID,
		report.Reason, report.Description, report.Status, report.CreatedAt, report.ResolvedAt, report.ReviewedBy,
	)
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	var report Report
	err := database.Conn(ctx, r.db).GetContext(ctx, &report, `SELECT `+reportColumns+` FROM moderation_reports WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

func buildWhere(filter *ListFilter) (string, []interface{}) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if filter == nil {
		return where, args
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		where += fmt.Sprintf(` AND reporter_id = $%d`, len(args))
	}
	if filter.TargetUserID != nil {
		args = append(args, *filter.TargetUserID)
		where += fmt.Sprintf(` AND target_user_id = $%d`, len(args))
	}
	return where, args
}

func (r *repository) List(ctx context.Context, filter *ListFilter) ([]*Report, error) {
	where, args := buildWhere(filter)
	query := `SELECT ` + reportColumns + ` FROM moderation_reports` + where + ` ORDER BY created_at DESC, id`

	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter != nil && filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	var reports []*Report
	err := database.Conn(ctx, r.db).SelectContext(ctx, &reports, query, args...)
	return reports, err
}

func (r *repository) Count(ctx context.Context, filter *ListFilter) (int, error) {
	where, args := buildWhere(filter)
	var count int
	err := database.Conn(ctx, r.db).GetContext(ctx, &count, `SELECT COUNT(*) FROM moderation_reports`+where, args...)
	return count, err
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []ReportStatus, to ReportStatus, reviewer *uuid.UUID, at time.Time) (bool, error) {
	var resolvedAt *time.Time
	if to.IsTerminal() {
		resolvedAt = &at
	}

	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE moderation_reports
		SET status = $3,
			reviewed_by = COALESCE($4, reviewed_by),
			resolved_at = COALESCE($5, resolved_at)
		WHERE id = $1 AND status = ANY($2)
	`, id, pq.Array(states), to, reviewer, resolvedAt)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
