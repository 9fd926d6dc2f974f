package repository

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"go-event-admission/test/internal/testutil"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
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

func setupTestWithTruncate(t *testing.T) func() {
	t.Helper()
	_, err := testDB.Exec(context.Background(),
		"TRUNCATE sessions, registrations, waitlist_entries RESTART IDENTITY CASCADE")
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
	return func() {}
}

func createTestSession(t *testing.T, capacity int) (int, uuid.UUID) {
	t.Helper()
	now := time.Now().UTC()
	sessionID := uuid.New()

	var id int
	err := testDB.QueryRow(context.Background(), `
		INSERT INTO sessions (
			session_id, name, capacity, booked_count,
			starts_at, ends_at, registration_close_at, waitlist_close_at, status
		)
		VALUES ($1, 'Repo Test Session', $2, 0, $3, $4, $5, $5, 'live')
		RETURNING id
	`, sessionID, capacity,
		now.Add(24*time.Hour), now.Add(26*time.Hour), now.Add(23*time.Hour),
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}

	return id, sessionID
}
