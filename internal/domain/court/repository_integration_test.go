package court

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citywatch/citywatch-api/internal/pkg/database"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.NewPostgres(context.Background(), dsn, database.PoolConfig{MaxOpenConns: 4})
	if err != nil {
		t.Skipf("db not available: %v", err)
	}
	schema, err := os.ReadFile("../../../migrations/000001_moderation_engine.up.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Exec("DELETE FROM court_referrals")
		database.ClosePostgres(db)
	})
	return db
}

func TestPostgresReferralLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	actor := uuid.New()

	expires := now.Add(-time.Minute)
	ref := &Referral{ID: uuid.New(), ActorID: actor, Status: StatusPending, CreatedAt: now, ExpiresAt: &expires}
	require.NoError(t, repo.Create(ctx, ref))

	dup := &Referral{ID: uuid.New(), ActorID: actor, Status: StatusPending, CreatedAt: now}
	assert.Error(t, repo.Create(ctx, dup), "second pending referral for the same actor and report")

	found, err := repo.FindPending(ctx, actor, nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, ref.ID, found.ID)

	overdue, err := repo.ListOverdue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	ok, err := repo.Resolve(ctx, ref.ID, RulingDismissed, nil, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Expire(ctx, ref.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "resolved referrals cannot expire")

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
