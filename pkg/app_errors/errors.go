package apperrors

import "errors"

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrWaitlistEntryNotFound = errors.New("waitlist entry not found")
	ErrRegistrationClosed    = errors.New("registration closed")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrScheduleConflict      = errors.New("schedule conflict")
	ErrInvalidState          = errors.New("invalid registration state")
	ErrCapacityInvariant     = errors.New("capacity invariant violated")
	ErrTransientStore        = errors.New("transient store error")
	ErrInvalidInput          = errors.New("invalid input")
)
