package repository

import (
	"errors"
	"fmt"
	"testing"

	apperrors "go-event-admission/pkg/app_errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapStoreError_RetryableCodes(t *testing.T) {
	cases := []struct {
		name string
		code string
	}{
		{"serialization failure", "40001"},
		{"deadlock detected", "40P01"},
		{"lock not available", "55P03"},
	}

	for _, tc := range cases {
		err := MapStoreError(&pgconn.PgError{Code: tc.code, Message: tc.name})
		assert.ErrorIs(t, err, apperrors.ErrTransientStore, "code %s", tc.code)
	}
}

func TestMapStoreError_WrappedPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	wrapped := fmt.Errorf("commit failed: %w", pgErr)

	assert.ErrorIs(t, MapStoreError(wrapped), apperrors.ErrTransientStore)
}

func TestMapStoreError_PassThrough(t *testing.T) {
	assert.NoError(t, MapStoreError(nil))

	plain := errors.New("boom")
	assert.Same(t, plain, MapStoreError(plain))

	constraint := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	mapped := MapStoreError(constraint)
	assert.NotErrorIs(t, mapped, apperrors.ErrTransientStore)
	assert.Same(t, error(constraint), mapped)
}
