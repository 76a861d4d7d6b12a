package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrUniqueViolation marks an insert rejected by a unique constraint.
// Services map it to a conflict so racing writers get the same contract
// as the pre-insert existence checks.
var ErrUniqueViolation = errors.New("unique constraint violation")

func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrUniqueViolation
	}
	return err
}
