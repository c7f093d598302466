package audit

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

// ListFilter narrows ledger queries
type ListFilter struct {
	ActionType EntryType
	TargetID   string
	ActorID    *uuid.UUID
	Reversed   *bool
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Repository defines audit ledger data access
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id string) (*Entry, error)
	// MarkReversed sets the reversal fields only if they are still empty.
	MarkReversed(ctx context.Context, id string, by uuid.UUID, at time.Time) (bool, error)
	List(ctx context.Context, filter *ListFilter) ([]*Entry, error)
	Count(ctx context.Context, filter *ListFilter) (int, error)
	// Since returns committed entries past cursor in feed order
	Since(ctx context.Context, cursor Cursor, limit int) ([]*Entry, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates a postgres audit repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const entryColumns = `id, action_type, target_id, actor_id, reason, payload, created_at, reversed_at, reversed_by, tx_id, seq`

// Append inserts e and reads back its feed position. tx_id defaults to the
// writing transaction's id.
func (r *repository) Append(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO audit_log_entries (id, action_type, target_id, actor_id, reason, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING tx_id, seq
	`
	return database.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		e.ID, e.ActionType, e.TargetID, e.ActorID, e.Reason, e.Payload, e.CreatedAt,
	).Scan(&e.TxID, &e.Seq)
}

func (r *repository) GetByID(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := database.Conn(ctx, r.db).GetContext(ctx, &e, `SELECT `+entryColumns+` FROM audit_log_entries WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *repository) MarkReversed(ctx context.Context, id string, by uuid.UUID, at time.Time) (bool, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE audit_log_entries
		SET reversed_at = $2, reversed_by = $3
		WHERE id = $1 AND reversed_at IS NULL
	`, id, at, by)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func buildWhere(filter *ListFilter) (string, []interface{}) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	add := func(clause string, v interface{}) {
		args = append(args, v)
		where += fmt.Sprintf(clause, len(args))
	}
	if filter.ActionType != "" {
		add(` AND action_type = $%d`, filter.ActionType)
	}
	if filter.TargetID != "" {
		add(` AND target_id = $%d`, filter.TargetID)
	}
	if filter.ActorID != nil {
		add(` AND actor_id = $%d`, *filter.ActorID)
	}
	if filter.Reversed != nil {
		if *filter.Reversed {
			where += ` AND reversed_at IS NOT NULL`
		} else {
			where += ` AND reversed_at IS NULL`
		}
	}
	if filter.From != nil {
		add(` AND created_at >= $%d`, *filter.From)
	}
	if filter.To != nil {
		add(` AND created_at < $%d`, *filter.To)
	}
	return where, args
}

func (r *repository) List(ctx context.Context, filter *ListFilter) ([]*Entry, error) {
	where, args := buildWhere(filter)
	query := `SELECT ` + entryColumns + ` FROM audit_log_entries` + where + ` ORDER BY id DESC`

	limit := 50
	offset := 0
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		offset = filter.Offset
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var entries []*Entry
	err := database.Conn(ctx, r.db).SelectContext(ctx, &entries, query, args...)
	return entries, err
}

func (r *repository) Count(ctx context.Context, filter *ListFilter) (int, error) {
	where, args := buildWhere(filter)
	var count int
	err := database.Conn(ctx, r.db).GetContext(ctx, &count, `SELECT COUNT(*) FROM audit_log_entries`+where, args...)
	return count, err
}

// Since only reads entries of transactions older than the oldest one still
// running. Anything newer may yet be joined by a lower seq.
func (r *repository) Since(ctx context.Context, cursor Cursor, limit int) ([]*Entry, error) {
	var entries []*Entry
	err := database.Conn(ctx, r.db).SelectContext(ctx, &entries, `
		SELECT `+entryColumns+` FROM audit_log_entries
		WHERE (tx_id, seq) > ($1, $2)
			AND tx_id < pg_snapshot_xmin(pg_current_snapshot())::text::bigint
		ORDER BY tx_id ASC, seq ASC
		LIMIT $3
	`, cursor.TxID, cursor.Seq, limit)
	return entries, err
}
