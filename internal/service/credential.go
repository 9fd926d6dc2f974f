package service

import (
	"fmt"

	"github.com/google/uuid"
)

// CredentialIssuer mints the opaque token embedded in a confirmed
// registrant's QR code. Issuance is pure; rendering and delivery live
// elsewhere.
type CredentialIssuer interface {
	Issue(registrationID, sessionID uuid.UUID) string
}

type CredentialIssuerImpl struct{}

func NewCredentialIssuer() CredentialIssuer {
	return &CredentialIssuerImpl{}
}

func (i *CredentialIssuerImpl) Issue(registrationID, sessionID uuid.UUID) string {
	return fmt.Sprintf("%s.%s.%s", sessionID, registrationID, uuid.New())
}
