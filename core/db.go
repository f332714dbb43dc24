package core

import (
	"context"
	"database/sql"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}

	// TxBeginner starts the transactions services pass down to repositories.
	TxBeginner interface {
		Begin(ctx context.Context) (DBTransactor, error)
	}
)

// RollbackUnlessCommitted is deferred right after Begin.
// Rolling back a committed transaction is a no-op error we do not care about.
func RollbackUnlessCommitted(tx DBTransactor) {
	_ = tx.Rollback()
}
