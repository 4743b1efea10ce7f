package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicateEntry is returned when an insert violates a unique constraint.
var ErrDuplicateEntry = errors.New("duplicate entry")

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
