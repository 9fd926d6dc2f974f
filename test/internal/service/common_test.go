package service

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"go-event-admission/internal/cache"
	"go-event-admission/internal/model"
	"go-event-admission/internal/notifier"
	"go-event-admission/internal/queue"
	"go-event-admission/internal/repository"
	"go-event-admission/internal/service"
	"go-event-admission/test/internal/testutil"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var (
	testDB  *pgxpool.Pool
	testRdb *redis.Client
)

func TestMain(m *testing.M) {
	var cleanup func()
	var err error
	testDB, testRdb, cleanup, err = testutil.Setup()
	if err != nil {
		log.Fatalf("Failed to set up test environment: %v", err)
	}

	log.Println("Running admission service tests...")

	code := m.Run()

	cleanup()
	os.Exit(code)
}

func setupTestWithTruncate(t *testing.T) func() {
	t.Helper()
	ctx := context.Background()

	_, err := testDB.Exec(ctx, "TRUNCATE sessions, registrations, waitlist_entries, notification_retries RESTART IDENTITY CASCADE")
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}

	if err := testRdb.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test redis: %v", err)
	}

	return func() {}
}

func newAdmissionService() service.AdmissionService {
	svc, _ := newAdmissionServiceWithQueue()
	return svc
}

func newAdmissionServiceWithQueue() (service.AdmissionService, queue.NotificationQueue) {
	sessionRepo := repository.NewSessionRepository(testDB)
	registrationRepo := repository.NewRegistrationRepository(testDB)
	waitlistRepo := repository.NewWaitlistRepository(testDB)

	notificationQueue := queue.NewMemoryNotificationQueue(256)
	retryStore := notifier.NewRetryStore(testDB)
	dispatcher := notifier.NewDispatcher(notificationQueue, retryStore, time.Minute)
	seatCache := cache.NewRedisSeatStatusCache(testRdb)

	svc := service.NewAdmissionService(
		testDB, sessionRepo, registrationRepo, waitlistRepo,
		service.NewCredentialIssuer(), dispatcher, seatCache,
	)
	return svc, notificationQueue
}

// drainNotifications reads everything currently buffered on the queue.
func drainNotifications(t *testing.T, q queue.NotificationQueue) []*model.Notification {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := q.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Failed to subscribe to notification queue: %v", err)
	}

	notifications := make([]*model.Notification, 0)
	for {
		select {
		case d := <-msgs:
			notifications = append(notifications, d.Data)
			d.Ack()
		case <-time.After(200 * time.Millisecond):
			return notifications
		}
	}
}

type sessionParams struct {
	capacity            int
	startsAt            time.Time
	endsAt              time.Time
	registrationCloseAt time.Time
	waitlistCloseAt     time.Time
	status              model.SessionStatus
}

func defaultSessionParams(capacity int) sessionParams {
	now := time.Now().UTC()
	return sessionParams{
		capacity:            capacity,
		startsAt:            now.Add(24 * time.Hour),
		endsAt:              now.Add(26 * time.Hour),
		registrationCloseAt: now.Add(23 * time.Hour),
		waitlistCloseAt:     now.Add(23 * time.Hour),
		status:              model.SessionStatusLive,
	}
}

func createTestSession(t *testing.T, params sessionParams) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	sessionID := uuid.New()
	query := `
		INSERT INTO sessions (
			session_id, name, capacity, booked_count,
			starts_at, ends_at, registration_close_at, waitlist_close_at, status
		)
		VALUES ($1, $2, $3, 0, $4, $5, $6, $7, $8)
	`
	_, err := testDB.Exec(ctx, query,
		sessionID, "Test Session", params.capacity,
		params.startsAt, params.endsAt,
		params.registrationCloseAt, params.waitlistCloseAt, params.status,
	)
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}

	return sessionID
}

func closeWaitlist(t *testing.T, sessionID uuid.UUID) {
	t.Helper()
	_, err := testDB.Exec(context.Background(),
		`UPDATE sessions SET waitlist_close_at = $1 WHERE session_id = $2`,
		time.Now().UTC().Add(-time.Minute), sessionID,
	)
	if err != nil {
		t.Fatalf("Failed to close waitlist: %v", err)
	}
}

func getSessionRow(t *testing.T, sessionID uuid.UUID) (id int, bookedCount int, capacity int) {
	t.Helper()
	err := testDB.QueryRow(context.Background(),
		`SELECT id, booked_count, capacity FROM sessions WHERE session_id = $1`,
		sessionID,
	).Scan(&id, &bookedCount, &capacity)
	if err != nil {
		t.Fatalf("Failed to read session row: %v", err)
	}
	return id, bookedCount, capacity
}

func countRegistrations(t *testing.T, sessionID uuid.UUID, status model.RegistrationStatus) int {
	t.Helper()
	var count int
	err := testDB.QueryRow(context.Background(), `
		SELECT COUNT(*)
		FROM registrations r
		JOIN sessions s ON s.id = r.session_id
		WHERE s.session_id = $1 AND r.status = $2
	`, sessionID, status).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count registrations: %v", err)
	}
	return count
}

func waitlistPositions(t *testing.T, sessionID uuid.UUID) []int {
	t.Helper()
	rows, err := testDB.Query(context.Background(), `
		SELECT w.position
		FROM waitlist_entries w
		JOIN sessions s ON s.id = w.session_id
		WHERE s.session_id = $1
		ORDER BY w.position ASC
	`, sessionID)
	if err != nil {
		t.Fatalf("Failed to list waitlist positions: %v", err)
	}
	defer rows.Close()

	positions := make([]int, 0)
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			t.Fatalf("Failed to scan position: %v", err)
		}
		positions = append(positions, p)
	}
	return positions
}

func waitlistEmails(t *testing.T, sessionID uuid.UUID) []string {
	t.Helper()
	rows, err := testDB.Query(context.Background(), `
		SELECT w.email
		FROM waitlist_entries w
		JOIN sessions s ON s.id = w.session_id
		WHERE s.session_id = $1
		ORDER BY w.position ASC
	`, sessionID)
	if err != nil {
		t.Fatalf("Failed to list waitlist emails: %v", err)
	}
	defer rows.Close()

	emails := make([]string, 0)
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			t.Fatalf("Failed to scan email: %v", err)
		}
		emails = append(emails, e)
	}
	return emails
}

func insertWaitlistEntry(t *testing.T, sessionID uuid.UUID, email string, position int) {
	t.Helper()
	_, err := testDB.Exec(context.Background(), `
		INSERT INTO waitlist_entries (session_id, email, position)
		SELECT id, $2, $3 FROM sessions WHERE session_id = $1
	`, sessionID, email, position)
	if err != nil {
		t.Fatalf("Failed to insert waitlist entry: %v", err)
	}
}

func registrationStatus(t *testing.T, registrationID uuid.UUID) model.RegistrationStatus {
	t.Helper()
	var status model.RegistrationStatus
	err := testDB.QueryRow(context.Background(),
		`SELECT status FROM registrations WHERE registration_id = $1`,
		registrationID,
	).Scan(&status)
	if err != nil {
		t.Fatalf("Failed to read registration status: %v", err)
	}
	return status
}
