package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

// postgres error codes
const uniqueViolation = "23505"

var errUnsupportedExec = errors.New("executor does not support sqlx extensions")

type repository struct {
	db *sqlx.DB
}

// getExec returns the executor passed by a service (usually a *sqlx.Tx) or the pool.
func (repo repository) getExec(svcExec []core.DBExecutor) (sqlx.ExtContext, error) {
	if len(svcExec) > 0 {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext, nil
		}
		return nil, errUnsupportedExec
	}
	return repo.db, nil
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

func checkAffected(res sql.Result, notFound error, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
