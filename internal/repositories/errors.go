package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var ErrDuplicate = errors.New("duplicate record")

// isUniqueViolation reports a Postgres 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
