package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the publication state of a bookable session.
type SessionStatus string

const (
	SessionStatusDraft     SessionStatus = "draft"
	SessionStatusLive      SessionStatus = "live"
	SessionStatusCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusDraft, SessionStatusLive, SessionStatusCancelled:
		return true
	}
	return false
}

// Session is a bookable unit with a fixed seat capacity. BookedCount is a
// display value; admission decisions recount confirmed registrations inside
// the session's exclusive scope.
type Session struct {
	ID                  int           `json:"id" db:"id"`
	SessionID           uuid.UUID     `json:"session_id" db:"session_id"`
	Name                string        `json:"name" db:"name"`
	Capacity            int           `json:"capacity" db:"capacity"`
	BookedCount         int           `json:"booked_count" db:"booked_count"`
	StartsAt            time.Time     `json:"starts_at" db:"starts_at"`
	EndsAt              time.Time     `json:"ends_at" db:"ends_at"`
	RegistrationCloseAt time.Time     `json:"registration_close_at" db:"registration_close_at"`
	WaitlistCloseAt     time.Time     `json:"waitlist_close_at" db:"waitlist_close_at"`
	Status              SessionStatus `json:"status" db:"status"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`
}

// AcceptsRegistrations reports whether new registrations are admitted at t.
func (s *Session) AcceptsRegistrations(t time.Time) bool {
	return s.Status == SessionStatusLive && t.Before(s.RegistrationCloseAt)
}

// WaitlistOpen reports whether freed seats may still be filled from the
// waitlist at t.
func (s *Session) WaitlistOpen(t time.Time) bool {
	return t.Before(s.WaitlistCloseAt)
}

// SeatStatus is the read-path snapshot for a session. Eventually consistent;
// never an input to admission decisions.
type SeatStatus struct {
	SessionID      uuid.UUID `json:"session_id"`
	Capacity       int       `json:"capacity"`
	BookedCount    int       `json:"booked_count"`
	WaitlistLength int       `json:"waitlist_length"`
}
