package model

import "time"

// NotificationKind distinguishes the outbound messages the admission flow
// produces.
type NotificationKind string

const (
	NotificationConfirmation NotificationKind = "confirmation"
	NotificationWaitlisted   NotificationKind = "waitlisted"
	NotificationCancellation NotificationKind = "cancellation"
	NotificationPromotion    NotificationKind = "promotion"
)

func (k NotificationKind) IsValid() bool {
	switch k {
	case NotificationConfirmation, NotificationWaitlisted, NotificationCancellation, NotificationPromotion:
		return true
	}
	return false
}

// Notification is a best-effort outbound message. It is published after the
// booking transaction commits and never participates in it.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Recipient string           `json:"recipient"`
	Payload   string           `json:"payload"`
}

// NotificationRetry is a durable record of a failed delivery awaiting the
// sweeper. Failed marks entries past the attempt limit; they are kept for
// inspection, never retried.
type NotificationRetry struct {
	ID            int              `json:"id" db:"id"`
	Kind          NotificationKind `json:"kind" db:"kind"`
	Recipient     string           `json:"recipient" db:"recipient"`
	Payload       string           `json:"payload" db:"payload"`
	Attempts      int              `json:"attempts" db:"attempts"`
	LastError     string           `json:"last_error" db:"last_error"`
	NextAttemptAt time.Time        `json:"next_attempt_at" db:"next_attempt_at"`
	Failed        bool             `json:"failed" db:"failed"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}
