package store

import (
	"database/sql"
	"errors"
	"fmt"

	"shop-service/internal/models"

	"github.com/lib/pq"
)

const (
	uniqueViolationCode      = "23505"
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
	checkViolationCode       = "23514"
)

// convertErr maps driver errors onto the service error kinds:
// sql.ErrNoRows becomes ErrNotFound, unique violations and serialization
// failures become ErrConflict, check violations become ErrInvalidState.
func convertErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, models.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolationCode, serializationFailureCode, deadlockDetectedCode:
			return fmt.Errorf("%s: %w: %s", msg, models.ErrConflict, pqErr.Message)
		case checkViolationCode:
			return fmt.Errorf("%s: %w: %s", msg, models.ErrInvalidState, pqErr.Message)
		}
	}

	return fmt.Errorf("%s: %w", msg, err)
}
