package escalation

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

// RuleFilter narrows rule listings
type RuleFilter struct {
	ViolationType string
	ActiveOnly    bool
}

// Repository defines escalation data access
type Repository interface {
	CreateRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, id uuid.UUID) (*Rule, error)
	UpdateRule(ctx context.Context, rule *Rule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	ListRules(ctx context.Context, filter RuleFilter) ([]*Rule, error)
	CountRules(ctx context.Context) (int, error)

	InsertViolation(ctx context.Context, v *Violation) error
	ListViolations(ctx context.Context, actorID uuid.UUID, violationType string) ([]Violation, error)
	VoidViolationsByAction(ctx context.Context, actionID uuid.UUID, at time.Time) (int64, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates a postgres escalation repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const ruleColumns = `id, violation_type, severity_level, violation_count_threshold, time_window_days,
	consequence_type, consequence_duration_minutes, court_required, auto_escalate,
	points_deducted, is_active, created_at, updated_at`

func (r *repository) CreateRule(ctx context.Context, rule *Rule) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO escalation_rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		rule.ID, rule.ViolationType, rule.Severity, rule.Threshold, rule.TimeWindowDays,
		rule.Consequence, rule.DurationMinutes, rule.CourtRequired, rule.AutoEscalate,
		rule.Points, rule.Active, rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

func (r *repository) GetRule(ctx context.Context, id uuid.UUID) (*Rule, error) {
	var rule Rule
	err := database.Conn(ctx, r.db).GetContext(ctx, &rule, `SELECT `+ruleColumns+` FROM escalation_rules WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *repository) UpdateRule(ctx context.Context, rule *Rule) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE escalation_rules
		SET violation_type = $2, severity_level = $3, violation_count_threshold = $4,
			time_window_days = $5, consequence_type = $6, consequence_duration_minutes = $7,
			court_required = $8, auto_escalate = $9, points_deducted = $10, is_active = $11,
			updated_at = $12
		WHERE id = $1
	`,
		rule.ID, rule.ViolationType, rule.Severity, rule.Threshold, rule.TimeWindowDays,
		rule.Consequence, rule.DurationMinutes, rule.CourtRequired, rule.AutoEscalate,
		rule.Points, rule.Active, rule.UpdatedAt,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *repository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM escalation_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *repository) ListRules(ctx context.Context, filter RuleFilter) ([]*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM escalation_rules WHERE 1=1`
	args := []interface{}{}
	if filter.ViolationType != "" {
		args = append(args, filter.ViolationType)
		query += fmt.Sprintf(` AND violation_type = $%d`, len(args))
	}
	if filter.ActiveOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY violation_type, severity_level DESC, violation_count_threshold DESC, id`

	var rules []*Rule
	err := database.Conn(ctx, r.db).SelectContext(ctx, &rules, query, args...)
	return rules, err
}

func (r *repository) CountRules(ctx context.Context) (int, error) {
	var count int
	err := database.Conn(ctx, r.db).GetContext(ctx, &count, `SELECT COUNT(*) FROM escalation_rules`)
	return count, err
}

func (r *repository) InsertViolation(ctx context.Context, v *Violation) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO violations (id, actor_id, violation_type, action_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.ID, v.ActorID, v.ViolationType, v.ActionID, v.OccurredAt)
	return err
}

func (r *repository) ListViolations(ctx context.Context, actorID uuid.UUID, violationType string) ([]Violation, error) {
	var out []Violation
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out, `
		SELECT id, actor_id, violation_type, action_id, occurred_at, voided_at
		FROM violations
		WHERE actor_id = $1 AND violation_type = $2 AND voided_at IS NULL
		ORDER BY occurred_at
	`, actorID, violationType)
	return out, err
}

func (r *repository) VoidViolationsByAction(ctx context.Context, actionID uuid.UUID, at time.Time) (int64, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE violations SET voided_at = $2
		WHERE action_id = $1 AND voided_at IS NULL
	`, actionID, at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
