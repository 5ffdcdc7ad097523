package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure on the
// given column. An empty column matches any unique violation.
func IsUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	column = strings.ToLower(column)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return column == "" ||
			strings.Contains(strings.ToLower(pgErr.ConstraintName), column) ||
			strings.Contains(strings.ToLower(pgErr.Detail), "("+column+")")
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return column == ""
	}

	// sqlite: "UNIQUE constraint failed: users.email"
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique constraint failed") {
		return false
	}
	return column == "" || strings.Contains(msg, "."+column)
}

// IsNotFound reports whether err is gorm's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
