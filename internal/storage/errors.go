package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// pgCode returns the SQLSTATE of err, or "" when err is not a Postgres error.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Missing relation or missing extension objects. Statistics queries that
// depend on optional extensions treat these as "no data".
func isUndefinedObject(err error) bool {
	switch pgCode(err) {
	case "42P01", "42883", "55000": // undefined_table, undefined_function, object_not_in_prerequisite_state
		return true
	}
	return false
}
