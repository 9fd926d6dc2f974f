package notifier

import (
	"context"
	"time"

	"go-event-admission/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RetryStore is the durable queue of failed deliveries awaiting the sweeper.
type RetryStore interface {
	Record(ctx context.Context, n *model.Notification, sendErr error, nextAttemptAt time.Time) error
	ListPending(ctx context.Context) ([]*model.NotificationRetry, error)

	// Transaction methods
	ClaimDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]*model.NotificationRetry, error)
	MarkRetried(ctx context.Context, tx pgx.Tx, id int, sendErr error, nextAttemptAt time.Time, failed bool) error
	Delete(ctx context.Context, tx pgx.Tx, id int) error
}

type RetryStoreImpl struct {
	pool *pgxpool.Pool
}

func NewRetryStore(pool *pgxpool.Pool) RetryStore {
	return &RetryStoreImpl{
		pool: pool,
	}
}

const retryColumns = `id, kind, recipient, payload, attempts, last_error,
		next_attempt_at, failed, created_at, updated_at`

func (s *RetryStoreImpl) Record(ctx context.Context, n *model.Notification, sendErr error, nextAttemptAt time.Time) error {
	query := `
		INSERT INTO notification_retries (kind, recipient, payload, attempts, last_error, next_attempt_at)
		VALUES ($1, $2, $3, 1, $4, $5)
	`

	errMsg := ""
	if sendErr != nil {
		errMsg = sendErr.Error()
	}

	_, err := s.pool.Exec(ctx, query, n.Kind, n.Recipient, n.Payload, errMsg, nextAttemptAt)
	return err
}

// ClaimDue selects entries ready for another attempt. Runs on the sweep
// transaction: the row locks are held until the batch resolves, so SKIP
// LOCKED keeps concurrent sweepers from retrying the same entry twice.
func (s *RetryStoreImpl) ClaimDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]*model.NotificationRetry, error) {
	query := `
		SELECT ` + retryColumns + `
		FROM notification_retries
		WHERE next_attempt_at <= $1 AND NOT failed
		ORDER BY next_attempt_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*model.NotificationRetry, 0)

	for rows.Next() {
		var entry model.NotificationRetry
		err := rows.Scan(
			&entry.ID,
			&entry.Kind,
			&entry.Recipient,
			&entry.Payload,
			&entry.Attempts,
			&entry.LastError,
			&entry.NextAttemptAt,
			&entry.Failed,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *RetryStoreImpl) MarkRetried(ctx context.Context, tx pgx.Tx, id int, sendErr error, nextAttemptAt time.Time, failed bool) error {
	query := `
		UPDATE notification_retries
		SET attempts = attempts + 1,
		    last_error = $1,
		    next_attempt_at = $2,
		    failed = $3,
		    updated_at = $4
		WHERE id = $5
	`

	errMsg := ""
	if sendErr != nil {
		errMsg = sendErr.Error()
	}

	_, err := tx.Exec(ctx, query, errMsg, nextAttemptAt, failed, time.Now().UTC(), id)
	return err
}

func (s *RetryStoreImpl) Delete(ctx context.Context, tx pgx.Tx, id int) error {
	_, err := tx.Exec(ctx, `DELETE FROM notification_retries WHERE id = $1`, id)
	return err
}

func (s *RetryStoreImpl) ListPending(ctx context.Context) ([]*model.NotificationRetry, error) {
	query := `
		SELECT ` + retryColumns + `
		FROM notification_retries
		WHERE NOT failed
		ORDER BY next_attempt_at ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*model.NotificationRetry, 0)

	for rows.Next() {
		var entry model.NotificationRetry
		err := rows.Scan(
			&entry.ID,
			&entry.Kind,
			&entry.Recipient,
			&entry.Payload,
			&entry.Attempts,
			&entry.LastError,
			&entry.NextAttemptAt,
			&entry.Failed,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
