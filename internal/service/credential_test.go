package service

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCredentialIssuer_TokensAreUniquePerIssue(t *testing.T) {
	issuer := NewCredentialIssuer()
	registrationID := uuid.New()
	sessionID := uuid.New()

	first := issuer.Issue(registrationID, sessionID)
	second := issuer.Issue(registrationID, sessionID)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second, "reissued credentials must differ")
}

func TestCredentialIssuer_TokenEmbedsIdentifiers(t *testing.T) {
	issuer := NewCredentialIssuer()
	registrationID := uuid.New()
	sessionID := uuid.New()

	token := issuer.Issue(registrationID, sessionID)

	parts := strings.Split(token, ".")
	assert.Len(t, parts, 3)
	assert.Equal(t, sessionID.String(), parts[0])
	assert.Equal(t, registrationID.String(), parts[1])
}
