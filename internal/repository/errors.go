package repository

import (
	"errors"
	"fmt"

	apperrors "go-event-admission/pkg/app_errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATEs that mean the whole transaction is safe to retry from scratch.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// MapStoreError converts retryable Postgres failures into ErrTransientStore
// so the service layer can surface a single retryable error class. Other
// errors pass through unchanged.
func MapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s", apperrors.ErrTransientStore, pgErr.Message)
		}
	}
	return err
}
