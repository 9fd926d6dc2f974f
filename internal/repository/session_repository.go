package repository

import (
	"context"
	"time"

	"go-event-admission/internal/model"
	apperrors "go-event-admission/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) (*model.Session, error)
	FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.Session, error)

	// Transaction methods
	FindBySessionIDWithLock(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID) (*model.Session, error)
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int) (*model.Session, error)
	SetBookedCount(ctx context.Context, tx pgx.Tx, id int, count int) error
}

type SessionRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &SessionRepositoryImpl{
		pool: pool,
	}
}

const sessionColumns = `id, session_id, name, capacity, booked_count,
		starts_at, ends_at, registration_close_at, waitlist_close_at,
		status, created_at, updated_at`

func scanSession(row pgx.Row) (*model.Session, error) {
	var session model.Session
	err := row.Scan(
		&session.ID,
		&session.SessionID,
		&session.Name,
		&session.Capacity,
		&session.BookedCount,
		&session.StartsAt,
		&session.EndsAt,
		&session.RegistrationCloseAt,
		&session.WaitlistCloseAt,
		&session.Status,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, MapStoreError(err)
	}
	return &session, nil
}

func (r *SessionRepositoryImpl) Create(ctx context.Context, session *model.Session) (*model.Session, error) {
	query := `
		INSERT INTO sessions (
			session_id, name, capacity, booked_count,
			starts_at, ends_at, registration_close_at, waitlist_close_at, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + sessionColumns

	if session.SessionID == uuid.Nil {
		session.SessionID = uuid.New()
	}

	return scanSession(r.pool.QueryRow(ctx, query,
		session.SessionID, session.Name, session.Capacity, session.BookedCount,
		session.StartsAt, session.EndsAt, session.RegistrationCloseAt,
		session.WaitlistCloseAt, session.Status,
	))
}

func (r *SessionRepositoryImpl) FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE session_id = $1
	`
	return scanSession(r.pool.QueryRow(ctx, query, sessionID))
}

// FindBySessionIDWithLock locks the session row for the duration of the
// transaction. This lock is the per-session exclusive scope: every mutating
// admission path acquires it before reading any counts.
func (r *SessionRepositoryImpl) FindBySessionIDWithLock(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID) (*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE session_id = $1
		FOR UPDATE
	`
	return scanSession(tx.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int) (*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1
		FOR UPDATE
	`
	return scanSession(tx.QueryRow(ctx, query, id))
}

// SetBookedCount writes the display counter. Callers must hold the session
// row lock and must have derived count from the registrations table.
func (r *SessionRepositoryImpl) SetBookedCount(ctx context.Context, tx pgx.Tx, id int, count int) error {
	query := `
		UPDATE sessions
		SET booked_count = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := tx.Exec(ctx, query, count, time.Now().UTC(), id)
	if err != nil {
		return MapStoreError(err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}

	return nil
}
