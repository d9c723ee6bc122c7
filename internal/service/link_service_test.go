package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
	"github.com/noah-isme/onboarding-api/pkg/storage"
)

func TestLinkServiceRoundTrip(t *testing.T) {
	signer := storage.NewSignedURLSigner("link-secret", time.Hour)
	svc := NewLinkService(signer)

	link, err := svc.Issue("emp-1")
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)
	_, err = time.Parse(time.RFC3339, link.ExpiresAt)
	require.NoError(t, err)

	employeeID, err := svc.Resolve(link.Token)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", employeeID)
}

func TestLinkServiceRejectsForeignTokens(t *testing.T) {
	signer := storage.NewSignedURLSigner("link-secret", time.Hour)
	svc := NewLinkService(signer)

	documentToken, _, err := signer.Generate("item-1", "item-1/file.pdf")
	require.NoError(t, err)
	_, err = svc.Resolve(documentToken)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	other, err := NewLinkService(storage.NewSignedURLSigner("other-secret", time.Hour)).Issue("emp-1")
	require.NoError(t, err)
	_, err = svc.Resolve(other.Token)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.Resolve("")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
