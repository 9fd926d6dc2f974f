package notifier

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"go-event-admission/internal/model"
	"go-event-admission/internal/notifier"
	"go-event-admission/test/internal/testutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	var cleanup func()
	var err error
	testDB, cleanup, err = testutil.SetupDBOnly()
	if err != nil {
		log.Fatalf("Failed to set up test database: %v", err)
	}

	code := m.Run()

	cleanup()
	os.Exit(code)
}

func truncateRetries(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(context.Background(), "TRUNCATE notification_retries RESTART IDENTITY")
	if err != nil {
		t.Fatalf("Failed to truncate notification_retries: %v", err)
	}
}

// claimDue claims and commits in its own transaction.
func claimDue(t *testing.T, store notifier.RetryStore, now time.Time, limit int) []*model.NotificationRetry {
	t.Helper()
	ctx := context.Background()
	tx, err := testDB.BeginTx(ctx, pgx.TxOptions{})
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	entries, err := store.ClaimDue(ctx, tx, now, limit)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	return entries
}

func markRetried(t *testing.T, store notifier.RetryStore, id int, sendErr error, nextAttemptAt time.Time, failed bool) {
	t.Helper()
	ctx := context.Background()
	tx, err := testDB.BeginTx(ctx, pgx.TxOptions{})
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	require.NoError(t, store.MarkRetried(ctx, tx, id, sendErr, nextAttemptAt, failed))
	require.NoError(t, tx.Commit(ctx))
}

// flakySink fails the first failures calls, then succeeds.
type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakySink) Send(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("smtp unavailable")
	}
	return nil
}

func testNotification() *model.Notification {
	return &model.Notification{
		Kind:      model.NotificationConfirmation,
		Recipient: "a@test.com",
		Payload:   `{"session_name":"Test Session"}`,
	}
}

func TestRetryStore_RecordAndClaim(t *testing.T) {
	truncateRetries(t)
	ctx := context.Background()
	store := notifier.NewRetryStore(testDB)

	require.NoError(t, store.Record(ctx, testNotification(), errors.New("boom"), time.Now().UTC().Add(-time.Second)))
	require.NoError(t, store.Record(ctx, testNotification(), errors.New("boom"), time.Now().UTC().Add(time.Hour)))

	due := claimDue(t, store, time.Now().UTC(), 10)
	require.Len(t, due, 1, "only entries past next_attempt_at are due")
	assert.Equal(t, model.NotificationConfirmation, due[0].Kind)
	assert.Equal(t, "a@test.com", due[0].Recipient)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, "boom", due[0].LastError)
}

func TestRetryStore_ClaimedRowsStayLockedUntilCommit(t *testing.T) {
	truncateRetries(t)
	ctx := context.Background()
	store := notifier.NewRetryStore(testDB)

	require.NoError(t, store.Record(ctx, testNotification(), errors.New("boom"), time.Now().UTC().Add(-time.Second)))

	first, err := testDB.BeginTx(ctx, pgx.TxOptions{})
	require.NoError(t, err)
	defer first.Rollback(ctx)

	claimed, err := store.ClaimDue(ctx, first, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// a second sweeper claiming while the first transaction is still open
	// must skip the locked row instead of double-sending it
	second, err := testDB.BeginTx(ctx, pgx.TxOptions{})
	require.NoError(t, err)
	defer second.Rollback(ctx)

	concurrent, err := store.ClaimDue(ctx, second, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Empty(t, concurrent)

	require.NoError(t, second.Rollback(ctx))
	require.NoError(t, first.Rollback(ctx))

	// once the claim is released the entry is claimable again
	due := claimDue(t, store, time.Now().UTC(), 10)
	assert.Len(t, due, 1)
}

func TestRetryStore_PermanentFailureExcludedFromClaim(t *testing.T) {
	truncateRetries(t)
	ctx := context.Background()
	store := notifier.NewRetryStore(testDB)

	require.NoError(t, store.Record(ctx, testNotification(), errors.New("boom"), time.Now().UTC().Add(-time.Second)))

	due := claimDue(t, store, time.Now().UTC(), 10)
	require.Len(t, due, 1)

	markRetried(t, store, due[0].ID, errors.New("still down"), time.Now().UTC().Add(-time.Second), true)

	due = claimDue(t, store, time.Now().UTC(), 10)
	assert.Empty(t, due, "permanently failed entries are never reclaimed")

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSweeper_DeliversAndDeletes(t *testing.T) {
	truncateRetries(t)
	ctx := context.Background()
	store := notifier.NewRetryStore(testDB)
	sink := &flakySink{failures: 0}

	require.NoError(t, store.Record(ctx, testNotification(), errors.New("boom"), time.Now().UTC().Add(-time.Second)))

	sweeper := notifier.NewRetrySweeper(testDB, store, sink, &notifier.SweeperConfig{
		SweepInterval:  time.Hour, // driven manually
		InitialBackoff: 50 * time.Millisecond,
		MaxAttempts:    3,
	})
	sweeper.SweepOnce(ctx)

	assert.Equal(t, 1, sink.calls)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "delivered entries are deleted")
}

func TestSweeper_BacksOffThenGivesUp(t *testing.T) {
	truncateRetries(t)
	ctx := context.Background()
	store := notifier.NewRetryStore(testDB)
	sink := &flakySink{failures: 100}

	require.NoError(t, store.Record(ctx, testNotification(), errors.New("boom"), time.Now().UTC().Add(-time.Second)))

	sweeper := notifier.NewRetrySweeper(testDB, store, sink, &notifier.SweeperConfig{
		SweepInterval:  time.Hour,
		InitialBackoff: time.Millisecond,
		MaxAttempts:    3,
	})

	// attempt 2: fails, backs off
	sweeper.SweepOnce(ctx)
	time.Sleep(10 * time.Millisecond)

	// attempt 3: fails and crosses MaxAttempts, marked permanent
	sweeper.SweepOnce(ctx)

	due := claimDue(t, store, time.Now().UTC().Add(time.Hour), 10)
	assert.Empty(t, due, "entry past the attempt limit is out of rotation")

	var attempts int
	var failed bool
	err := testDB.QueryRow(ctx, `SELECT attempts, failed FROM notification_retries`).Scan(&attempts, &failed)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, failed)
}

func TestSweeper_BackoffDoubles(t *testing.T) {
	sweeper := notifier.NewRetrySweeper(nil, nil, nil, &notifier.SweeperConfig{
		InitialBackoff: time.Minute,
		MaxAttempts:    5,
	})

	assert.Equal(t, time.Minute, sweeper.Backoff(1))
	assert.Equal(t, 2*time.Minute, sweeper.Backoff(2))
	assert.Equal(t, 4*time.Minute, sweeper.Backoff(3))
	assert.Equal(t, 8*time.Minute, sweeper.Backoff(4))
}
