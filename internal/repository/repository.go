// Package repository implements sqlx-backed persistence. Every repository
// accepts a DBTX so the same code runs against *sqlx.DB for plain reads
// and against *sqlx.Tx when a whole extract is reconciled inside one
// serializable transaction.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DBTX is the querier surface shared by *sqlx.DB and *sqlx.Tx.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// ErrDuplicate marks a unique-constraint violation, surfaced so callers
// can recover from concurrent-create races instead of crashing.
var ErrDuplicate = errors.New("duplicate key")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
