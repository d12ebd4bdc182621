package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsUniqueViolation reports whether the error is a unique-constraint
// violation, optionally scoped to a named constraint.
func IsUniqueViolation(err error, constraintName ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if len(constraintName) > 0 && constraintName[0] != "" {
		if !strings.Contains(msg, constraintName[0]) {
			return false
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// gorm drivers surface the violation as message text
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
