package model

import "time"

// WaitlistEntry is one pending registrant in a session's arrival-ordered
// queue. Positions within a session are 1-based and gap-free; the admission
// service compacts them on every removal.
type WaitlistEntry struct {
	ID        int       `json:"id" db:"id"`
	SessionID int       `json:"session_id" db:"session_id"`
	Email     string    `json:"email" db:"email"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
