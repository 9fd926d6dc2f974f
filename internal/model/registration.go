package model

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	RegistrationStatusConfirmed  RegistrationStatus = "confirmed"
	RegistrationStatusWaitlisted RegistrationStatus = "waitlisted"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
)

func (s RegistrationStatus) IsValid() bool {
	switch s {
	case RegistrationStatusConfirmed, RegistrationStatusWaitlisted, RegistrationStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo checks whether the target state is reachable from s.
// Cancelled is terminal.
func (s RegistrationStatus) CanTransitionTo(target RegistrationStatus) bool {
	transitions := map[RegistrationStatus][]RegistrationStatus{
		RegistrationStatusConfirmed:  {RegistrationStatusCancelled},
		RegistrationStatusWaitlisted: {RegistrationStatusConfirmed, RegistrationStatusCancelled},
		RegistrationStatusCancelled:  {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == target {
			return true
		}
	}
	return false
}

// Registration records one registrant's standing for a session. Credential
// is set only while the registration is confirmed.
type Registration struct {
	ID             int                `json:"id" db:"id"`
	RegistrationID uuid.UUID          `json:"registration_id" db:"registration_id"`
	SessionID      int                `json:"session_id" db:"session_id"`
	Email          string             `json:"email" db:"email"`
	Status         RegistrationStatus `json:"status" db:"status"`
	Credential     *string            `json:"credential,omitempty" db:"credential"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the registration still occupies a seat or a
// waitlist slot.
func (r *Registration) IsActive() bool {
	return r.Status != RegistrationStatusCancelled
}

// RegisterRequest is the inbound payload for a registration attempt.
type RegisterRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

// RegistrationOutcome is the definitive result of a registration attempt:
// always confirmed or waitlisted, never pending.
type RegistrationOutcome struct {
	RegistrationID   uuid.UUID          `json:"registration_id"`
	Status           RegistrationStatus `json:"status"`
	Credential       *string            `json:"credential,omitempty"`
	WaitlistPosition *int               `json:"waitlist_position,omitempty"`
}

// PromotedRef identifies the registrant promoted off the waitlist by a
// cancellation, for notification purposes.
type PromotedRef struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	Email          string    `json:"email"`
}

// CancelResult reports the outcome of a cancellation. Promoted is nil when
// no waitlist entry was eligible.
type CancelResult struct {
	RegistrationID uuid.UUID    `json:"registration_id"`
	Promoted       *PromotedRef `json:"promoted,omitempty"`
}
