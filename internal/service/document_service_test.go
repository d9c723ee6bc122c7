package service

import (
	"bytes"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/onboarding-api/internal/models"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
	"github.com/noah-isme/onboarding-api/pkg/storage"
)

var samplePNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newDocumentServiceForTest(t *testing.T, maxSize int64) *DocumentService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewDocumentService(store, storage.NewSignedURLSigner("doc-secret", time.Hour), DocumentConfig{APIPrefix: "/api/v1/", MaxSize: maxSize})
}

func TestDocumentServiceSaveAndDownload(t *testing.T) {
	svc := newDocumentServiceForTest(t, 0)

	ref, err := svc.Save("item-1", models.DocumentKindPDF, " contract.pdf ", bytes.NewReader(samplePDF))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref.URL, models.StoredDocumentPrefix+"item-1/"))
	assert.True(t, strings.HasSuffix(ref.URL, ".pdf"))
	assert.Equal(t, "contract.pdf", ref.Name)

	item := &models.ChecklistItem{ID: "item-1", RequiresDocument: true, DocumentURL: &ref.URL, DocumentName: &ref.Name}
	link, err := svc.Link(item)
	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/onboarding/documents/download?token="))

	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	file, name, err := svc.Open(parsed.Query().Get("token"))
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, content)
	assert.True(t, strings.HasSuffix(name, ".pdf"))

	require.NoError(t, svc.Discard(ref))
	_, _, err = svc.Open(parsed.Query().Get("token"))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDocumentServiceKindChecks(t *testing.T) {
	svc := newDocumentServiceForTest(t, 0)

	_, err := svc.Save("item-1", models.DocumentKindPDF, "photo.png", bytes.NewReader(samplePNG))
	require.ErrorIs(t, err, appErrors.ErrValidation)

	ref, err := svc.Save("item-1", models.DocumentKindImage, "", bytes.NewReader(samplePNG))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref.Name, ".png"))

	_, err = svc.Save("item-1", models.DocumentKindImage, "c.pdf", bytes.NewReader(samplePDF))
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Save("item-1", models.DocumentKindNone, "notes.txt", strings.NewReader("anything goes"))
	require.NoError(t, err)

	_, err = svc.Save("item-1", models.DocumentKindNone, "empty", strings.NewReader(""))
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDocumentServiceSizeLimit(t *testing.T) {
	svc := newDocumentServiceForTest(t, 64)
	payload := append(append([]byte{}, samplePDF...), bytes.Repeat([]byte("x"), 128)...)
	_, err := svc.Save("item-1", models.DocumentKindPDF, "big.pdf", bytes.NewReader(payload))
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDocumentServiceExternalLink(t *testing.T) {
	svc := newDocumentServiceForTest(t, 0)
	external := "https://files.example.com/contract.pdf"
	link, err := svc.Link(&models.ChecklistItem{ID: "item-1", DocumentURL: &external})
	require.NoError(t, err)
	assert.Equal(t, external, link.URL)
	assert.Nil(t, link.ExpiresAt)
	assert.NoError(t, svc.Discard(DocumentRef{URL: external}))

	_, err = svc.Link(&models.ChecklistItem{ID: "item-2"})
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, _, err = svc.Open("not-a-token")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
