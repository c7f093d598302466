package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const healthTimeout = 2 * time.Second

// Health pings the configured backends. Backends that are nil are left
// out of the result. ok is false when any ping failed.
func Health(ctx context.Context, db *sqlx.DB, rdb *redis.Client) (status map[string]string, ok bool) {
	status = map[string]string{}
	ok = true

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if db != nil {
		status["postgres"] = "ok"
		if err := db.PingContext(ctx); err != nil {
			status["postgres"] = err.Error()
			ok = false
		}
	}
	if rdb != nil {
		status["redis"] = "ok"
		if err := rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
			ok = false
		}
	}
	return status, ok
}
