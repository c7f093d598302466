package reputation

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/citywatch/citywatch-api/internal/pkg/database"
)

func TestRepositoryLockInsertsThenLocksRow(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")
	repo := NewRepository(db)

	actor := uuid.New()
	now := time.Now()
	start := &Record{ActorID: actor, ActorClass: ClassOfficer, CurrentScore: 500, LifetimeScore: 500, Tier: "standard", CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (actor_id, actor_class) DO NOTHING")).
		WithArgs(actor, "officer", 500, 500, "standard", false, now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM reputation_records WHERE actor_id = $1 AND actor_class = $2 FOR UPDATE")).
		WithArgs(actor, "officer").
		WillReturnRows(sqlmock.NewRows([]string{
			"actor_id", "actor_class", "current_score", "lifetime_score", "tier", "violations_count",
			"cases_handled", "successful_resolutions", "orders_fulfilled", "orders_cancelled", "priority_flag",
			"created_at", "updated_at",
		}).AddRow(actor.String(), "officer", 512, 530, "trusted", 0, 9, 4, 0, 0, false, now, now))
	mock.ExpectCommit()

	var got *Record
	err = database.NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
		var err error
		got, err = repo.Lock(ctx, start)
		return err
	})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got.CurrentScore != 512 || got.CasesHandled != 9 {
		t.Fatalf("expected the existing row, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
