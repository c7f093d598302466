package database

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type Queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Transactor runs a function inside one logical unit of work.
// Nested calls join the outer unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type txState struct {
	tx    *sqlx.Tx
	hooks []func()
}

// Conn returns the transaction carried by ctx, or db when there is none.
func Conn(ctx context.Context, db *sqlx.DB) Queryer {
	if st, ok := ctx.Value(txKey{}).(*txState); ok && st.tx != nil {
		return st.tx
	}
	return db
}

// InTx reports whether ctx carries an open unit of work.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// AfterCommit schedules fn to run once the enclosing unit of work commits.
// Outside a unit of work fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		st.hooks = append(st.hooks, fn)
		return
	}
	fn()
}

// SQLTransactor opens read-committed postgres transactions.
type SQLTransactor struct {
	db *sqlx.DB
}

// NewTransactor creates a postgres-backed transactor
func NewTransactor(db *sqlx.DB) *SQLTransactor {
	return &SQLTransactor{db: db}
}

func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	st := &txState{tx: tx}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, hook := range st.hooks {
		hook()
	}
	return nil
}

// MemTransactor serializes units of work for the in-memory stores.
// It has no rollback: stores must validate before they write.
type MemTransactor struct {
	mu sync.Mutex
}

// NewMemTransactor creates an in-memory transactor
func NewMemTransactor() *MemTransactor {
	return &MemTransactor{}
}

func (t *MemTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	t.mu.Lock()
	st := &txState{}
	err := fn(context.WithValue(ctx, txKey{}, st))
	t.mu.Unlock()

	if err != nil {
		return err
	}
	for _, hook := range st.hooks {
		hook()
	}
	return nil
}
