package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionAcceptsRegistrations(t *testing.T) {
	now := time.Now().UTC()
	session := &Session{
		Status:              SessionStatusLive,
		RegistrationCloseAt: now.Add(time.Hour),
	}

	assert.True(t, session.AcceptsRegistrations(now))
	assert.False(t, session.AcceptsRegistrations(now.Add(2*time.Hour)))

	session.Status = SessionStatusDraft
	assert.False(t, session.AcceptsRegistrations(now))

	session.Status = SessionStatusCancelled
	assert.False(t, session.AcceptsRegistrations(now))
}

func TestSessionWaitlistOpen(t *testing.T) {
	now := time.Now().UTC()
	session := &Session{WaitlistCloseAt: now.Add(time.Minute)}

	assert.True(t, session.WaitlistOpen(now))
	assert.False(t, session.WaitlistOpen(now.Add(2*time.Minute)))
}
