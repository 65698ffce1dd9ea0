package pgdb

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Код unique_violation в PostgreSQL.
const uniqueViolationCode = "23505"

func postgresDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
