package repository

import (
	"context"

	"go-event-admission/internal/model"
	apperrors "go-event-admission/pkg/app_errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WaitlistRepository interface {
	ListBySession(ctx context.Context, sessionID int) ([]*model.WaitlistEntry, error)
	CountBySession(ctx context.Context, sessionID int) (int, error)

	// Transaction methods
	Append(ctx context.Context, tx pgx.Tx, sessionID int, email string) (*model.WaitlistEntry, error)
	FirstWithLock(ctx context.Context, tx pgx.Tx, sessionID int) (*model.WaitlistEntry, error)
	RemoveAndCompact(ctx context.Context, tx pgx.Tx, entry *model.WaitlistEntry) error
}

type WaitlistRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewWaitlistRepository(pool *pgxpool.Pool) WaitlistRepository {
	return &WaitlistRepositoryImpl{
		pool: pool,
	}
}

const waitlistColumns = `id, session_id, email, position, created_at`

func scanWaitlistEntry(row pgx.Row) (*model.WaitlistEntry, error) {
	var entry model.WaitlistEntry
	err := row.Scan(
		&entry.ID,
		&entry.SessionID,
		&entry.Email,
		&entry.Position,
		&entry.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrWaitlistEntryNotFound
		}
		return nil, MapStoreError(err)
	}
	return &entry, nil
}

// Append inserts at the tail of the session's queue. Callers must hold the
// session row lock; the MAX(position) read is only safe under it.
func (r *WaitlistRepositoryImpl) Append(ctx context.Context, tx pgx.Tx, sessionID int, email string) (*model.WaitlistEntry, error) {
	query := `
		INSERT INTO waitlist_entries (session_id, email, position)
		SELECT $1, $2, COALESCE(MAX(position), 0) + 1
		FROM waitlist_entries
		WHERE session_id = $1
		RETURNING ` + waitlistColumns

	return scanWaitlistEntry(tx.QueryRow(ctx, query, sessionID, email))
}

// FirstWithLock locks and returns the head of the queue, or
// ErrWaitlistEntryNotFound when the queue is empty.
func (r *WaitlistRepositoryImpl) FirstWithLock(ctx context.Context, tx pgx.Tx, sessionID int) (*model.WaitlistEntry, error) {
	query := `
		SELECT ` + waitlistColumns + `
		FROM waitlist_entries
		WHERE session_id = $1
		ORDER BY position ASC
		LIMIT 1
		FOR UPDATE
	`

	return scanWaitlistEntry(tx.QueryRow(ctx, query, sessionID))
}

// RemoveAndCompact deletes the entry and closes the gap so positions stay a
// contiguous 1..N sequence.
func (r *WaitlistRepositoryImpl) RemoveAndCompact(ctx context.Context, tx pgx.Tx, entry *model.WaitlistEntry) error {
	result, err := tx.Exec(ctx, `DELETE FROM waitlist_entries WHERE id = $1`, entry.ID)
	if err != nil {
		return MapStoreError(err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrWaitlistEntryNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE waitlist_entries
		SET position = position - 1
		WHERE session_id = $1 AND position > $2
	`, entry.SessionID, entry.Position)
	if err != nil {
		return MapStoreError(err)
	}

	return nil
}

func (r *WaitlistRepositoryImpl) ListBySession(ctx context.Context, sessionID int) ([]*model.WaitlistEntry, error) {
	query := `
		SELECT ` + waitlistColumns + `
		FROM waitlist_entries
		WHERE session_id = $1
		ORDER BY position ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, MapStoreError(err)
	}
	defer rows.Close()

	entries := make([]*model.WaitlistEntry, 0)

	for rows.Next() {
		var entry model.WaitlistEntry
		err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.Email,
			&entry.Position,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, MapStoreError(err)
	}

	return entries, nil
}

func (r *WaitlistRepositoryImpl) CountBySession(ctx context.Context, sessionID int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM waitlist_entries WHERE session_id = $1`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, MapStoreError(err)
	}
	return count, nil
}
