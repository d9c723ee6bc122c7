package service

import (
	"errors"
	"time"

	"github.com/noah-isme/onboarding-api/internal/dto"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
	"github.com/noah-isme/onboarding-api/pkg/storage"
)

// publicLinkSubject is the signer subject of every checklist link token.
const publicLinkSubject = "checklist"

// LinkService issues and resolves public checklist links.
type LinkService struct {
	signer *storage.SignedURLSigner
}

// NewLinkService constructs a LinkService.
func NewLinkService(signer *storage.SignedURLSigner) *LinkService {
	return &LinkService{signer: signer}
}

// Issue returns a signed token granting access to the employee's checklist.
func (s *LinkService) Issue(employeeID string) (*dto.PublicLink, error) {
	token, expiresAt, err := s.signer.Generate(publicLinkSubject, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue checklist link")
	}
	return &dto.PublicLink{Token: token, ExpiresAt: expiresAt.UTC().Format(time.RFC3339)}, nil
}

// Resolve returns the employee a link token was issued for.
func (s *LinkService) Resolve(token string) (string, error) {
	subject, employeeID, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return "", appErrors.Clone(appErrors.ErrUnauthorized, "checklist link expired")
		}
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid checklist link")
	}
	if subject != publicLinkSubject {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid checklist link")
	}
	return employeeID, nil
}
