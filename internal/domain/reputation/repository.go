package reputation

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/citywatch/citywatch-api/internal/pkg/database"
)

// Repository defines reputation data access
type Repository interface {
	// Lock returns the record for update, creating it from start when
	// absent. Must run inside a unit of work.
	Lock(ctx context.Context, start *Record) (*Record, error)
	Get(ctx context.Context, actorID uuid.UUID, class ActorClass) (*Record, error)
	Save(ctx context.Context, rec *Record) error

	HasEvent(ctx context.Context, actorID uuid.UUID, class ActorClass, eventType EventType, referenceID uuid.UUID) (bool, error)
	InsertEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, actorID uuid.UUID, class ActorClass, limit, offset int) ([]*Event, error)
	CountEvents(ctx context.Context, actorID uuid.UUID, class ActorClass) (int, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates a postgres reputation repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const recordColumns = `actor_id, actor_class, current_score, lifetime_score, tier, violations_count,
	cases_handled, successful_resolutions, orders_fulfilled, orders_cancelled, priority_flag,
	created_at, updated_at`

func (r *repository) Lock(ctx context.Context, start *Record) (*Record, error) {
	q := database.Conn(ctx, r.db)
	if _, err := q.ExecContext(ctx, `
		INSERT INTO reputation_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, 0, 0, 0, 0, 0, $6, $7, $7)
		ON CONFLICT (actor_id, actor_class) DO NOTHING
	`, start.ActorID, start.ActorClass, start.CurrentScore, start.LifetimeScore, start.Tier, start.PriorityFlag, start.CreatedAt); err != nil {
		return nil, err
	}

	var rec Record
	err := q.GetContext(ctx, &rec, `
		SELECT `+recordColumns+`
		FROM reputation_records
		WHERE actor_id = $1 AND actor_class = $2
		FOR UPDATE
	`, start.ActorID, start.ActorClass)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) Get(ctx context.Context, actorID uuid.UUID, class ActorClass) (*Record, error) {
	var rec Record
	err := database.Conn(ctx, r.db).GetContext(ctx, &rec, `
		SELECT `+recordColumns+`
		FROM reputation_records
		WHERE actor_id = $1 AND actor_class = $2
	`, actorID, class)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) Save(ctx context.Context, rec *Record) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE reputation_records
		SET current_score = $3, lifetime_score = $4, tier = $5, violations_count = $6,
			cases_handled = $7, successful_resolutions = $8, orders_fulfilled = $9,
			orders_cancelled = $10, priority_flag = $11, updated_at = $12
		WHERE actor_id = $1 AND actor_class = $2
	`,
		rec.ActorID, rec.ActorClass, rec.CurrentScore, rec.LifetimeScore, rec.Tier, rec.ViolationsCount,
		rec.CasesHandled, rec.SuccessfulResolutions, rec.OrdersFulfilled, rec.OrdersCancelled,
		rec.PriorityFlag, rec.UpdatedAt,
	)
	return err
}

func (r *repository) HasEvent(ctx context.Context, actorID uuid.UUID, class ActorClass, eventType EventType, referenceID uuid.UUID) (bool, error) {
	var exists bool
	err := database.Conn(ctx, r.db).GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM reputation_events
			WHERE actor_id = $1 AND actor_class = $2 AND event_type = $3 AND reference_id = $4
		)
	`, actorID, class, eventType, referenceID)
	return exists, err
}

func (r *repository) InsertEvent(ctx context.Context, e *Event) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO reputation_events (id, actor_id, actor_class, event_type, delta, score_before, score_after, reason, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.ActorID, e.ActorClass, e.EventType, e.Delta, e.ScoreBefore, e.ScoreAfter, e.Reason, e.ReferenceID, e.CreatedAt)
	return err
}

func (r *repository) ListEvents(ctx context.Context, actorID uuid.UUID, class ActorClass, limit, offset int) ([]*Event, error) {
	var events []*Event
	err := database.Conn(ctx, r.db).SelectContext(ctx, &events, `
		SELECT id, actor_id, actor_class, event_type, delta, score_before, score_after, reason, reference_id, created_at
		FROM reputation_events
		WHERE actor_id = $1 AND actor_class = $2
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`, actorID, class, limit, offset)
	return events, err
}

func (r *repository) CountEvents(ctx context.Context, actorID uuid.UUID, class ActorClass) (int, error) {
	var count int
	err := database.Conn(ctx, r.db).GetContext(ctx, &count, `
		SELECT COUNT(*) FROM reputation_events WHERE actor_id = $1 AND actor_class = $2
	`, actorID, class)
	return count, err
}
