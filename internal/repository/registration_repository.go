package repository

import (
	"context"
	"fmt"
	"time"

	"go-event-admission/internal/model"
	apperrors "go-event-admission/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RegistrationRepository interface {
	FindByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*model.Registration, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, registration *model.Registration) (*model.Registration, error)
	FindByRegistrationIDWithLock(ctx context.Context, tx pgx.Tx, registrationID uuid.UUID) (*model.Registration, error)
	FindActiveBySessionAndEmail(ctx context.Context, tx pgx.Tx, sessionID int, email string) (*model.Registration, error)
	FindBySessionEmailStatus(ctx context.Context, tx pgx.Tx, sessionID int, email string, status model.RegistrationStatus) (*model.Registration, error)
	CountConfirmed(ctx context.Context, tx pgx.Tx, sessionID int) (int, error)
	HasScheduleConflict(ctx context.Context, tx pgx.Tx, email string, sessionID int, startsAt, endsAt time.Time) (bool, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id int, status model.RegistrationStatus, credential *string) (*model.Registration, error)
}

type RegistrationRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewRegistrationRepository(pool *pgxpool.Pool) RegistrationRepository {
	return &RegistrationRepositoryImpl{
		pool: pool,
	}
}

const registrationColumns = `id, registration_id, session_id, email, status,
		credential, created_at, updated_at`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(
		&reg.ID,
		&reg.RegistrationID,
		&reg.SessionID,
		&reg.Email,
		&reg.Status,
		&reg.Credential,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrRegistrationNotFound
		}
		return nil, MapStoreError(err)
	}
	return &reg, nil
}

func (r *RegistrationRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, registration *model.Registration) (*model.Registration, error) {
	query := `
		INSERT INTO registrations (registration_id, session_id, email, status, credential)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + registrationColumns

	if registration.RegistrationID == uuid.Nil {
		registration.RegistrationID = uuid.New()
	}

	created, err := scanRegistration(tx.QueryRow(ctx, query,
		registration.RegistrationID, registration.SessionID,
		registration.Email, registration.Status, registration.Credential,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}
	return created, nil
}

func (r *RegistrationRepositoryImpl) FindByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*model.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE registration_id = $1
	`
	return scanRegistration(r.pool.QueryRow(ctx, query, registrationID))
}

func (r *RegistrationRepositoryImpl) FindByRegistrationIDWithLock(ctx context.Context, tx pgx.Tx, registrationID uuid.UUID) (*model.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE registration_id = $1
		FOR UPDATE
	`
	return scanRegistration(tx.QueryRow(ctx, query, registrationID))
}

// FindActiveBySessionAndEmail returns the registrant's non-cancelled
// registration for the session, if any.
func (r *RegistrationRepositoryImpl) FindActiveBySessionAndEmail(ctx context.Context, tx pgx.Tx, sessionID int, email string) (*model.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE session_id = $1 AND email = $2 AND status != $3
	`
	return scanRegistration(tx.QueryRow(ctx, query, sessionID, email, model.RegistrationStatusCancelled))
}

func (r *RegistrationRepositoryImpl) FindBySessionEmailStatus(ctx context.Context, tx pgx.Tx, sessionID int, email string, status model.RegistrationStatus) (*model.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE session_id = $1 AND email = $2 AND status = $3
	`
	return scanRegistration(tx.QueryRow(ctx, query, sessionID, email, status))
}

// CountConfirmed recounts confirmed registrations from the table itself.
// This is the authoritative seat count; booked_count on the session row is
// display only.
func (r *RegistrationRepositoryImpl) CountConfirmed(ctx context.Context, tx pgx.Tx, sessionID int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM registrations
		WHERE session_id = $1 AND status = $2
	`

	var count int
	err := tx.QueryRow(ctx, query, sessionID, model.RegistrationStatusConfirmed).Scan(&count)
	if err != nil {
		return 0, MapStoreError(err)
	}

	return count, nil
}

// HasScheduleConflict reports whether the registrant holds a confirmed seat
// in another session whose time range overlaps [startsAt, endsAt).
func (r *RegistrationRepositoryImpl) HasScheduleConflict(ctx context.Context, tx pgx.Tx, email string, sessionID int, startsAt, endsAt time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM registrations r
			JOIN sessions s ON s.id = r.session_id
			WHERE r.email = $1
			  AND r.session_id != $2
			  AND r.status = $3
			  AND s.starts_at < $5
			  AND $4 < s.ends_at
		)
	`

	var conflict bool
	err := tx.QueryRow(ctx, query, email, sessionID,
		model.RegistrationStatusConfirmed, startsAt, endsAt).Scan(&conflict)
	if err != nil {
		return false, MapStoreError(err)
	}

	return conflict, nil
}

func (r *RegistrationRepositoryImpl) UpdateStatus(ctx context.Context, tx pgx.Tx, id int, status model.RegistrationStatus, credential *string) (*model.Registration, error) {
	query := `
		UPDATE registrations
		SET status = $1, credential = $2, updated_at = $3
		WHERE id = $4
		RETURNING ` + registrationColumns

	reg, err := scanRegistration(tx.QueryRow(ctx, query, status, credential, time.Now().UTC(), id))
	if err != nil {
		if err == apperrors.ErrRegistrationNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update registration status: %w", err)
	}

	return reg, nil
}

