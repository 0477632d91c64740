package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
)

const uniqueViolation = "23505"

var errUnsupportedExec = errors.New("executor does not support sqlx")

// repo holds what every repository needs: a handle on the database, and the way to pick the
// executor (a transaction handed down by a service, or the database itself).
type repo struct {
	db *sqlx.DB
}

func (r repo) getExec(svcExec []core.DBExecutor) (sqlx.ExtContext, error) {
	if len(svcExec) > 0 && svcExec[0] != nil {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext, nil
		}
		return nil, errUnsupportedExec
	}
	return r.db, nil
}

// trapNoRowsErr maps sql.ErrNoRows to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

// where accumulates AND-ed conditions written with `?` placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// bind turns the `?` placeholders of query into postgres ones.
func bind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

func orderBy(ordering []core.DBOrdering, fallback string, allowed ...string) string {
	ordering = core.FilterOrderings(ordering, allowed...)
	if len(ordering) == 0 {
		return " ORDER BY " + fallback
	}
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		clauses = append(clauses, ord.String())
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

func stringsToArray(values interface{}) interface{} {
	return pq.Array(values)
}
