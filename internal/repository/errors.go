package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// notFoundIfMalformedID maps invalid_text_representation on a UUID key to
// sql.ErrNoRows.
func notFoundIfMalformedID(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation {
		return sql.ErrNoRows
	}
	return err
}
