package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/noah-isme/onboarding-api/internal/dto"
	"github.com/noah-isme/onboarding-api/internal/models"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
	"github.com/noah-isme/onboarding-api/pkg/storage"
)

const sniffLength = 3072

type documentStorage interface {
	SaveStream(filename string, r io.Reader, limit int64) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// DocumentConfig tunes document handling.
type DocumentConfig struct {
	APIPrefix string
	MaxSize   int64
}

// DocumentService stores uploaded documents and issues signed download links.
type DocumentService struct {
	storage documentStorage
	signer  *storage.SignedURLSigner
	cfg     DocumentConfig
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(store documentStorage, signer *storage.SignedURLSigner, cfg DocumentConfig) *DocumentService {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10 * 1024 * 1024
	}
	cfg.APIPrefix = strings.TrimRight(cfg.APIPrefix, "/")
	return &DocumentService{storage: store, signer: signer, cfg: cfg}
}

// Save sniffs the upload, checks it against kind and stores it under the item.
func (s *DocumentService) Save(itemID string, kind models.DocumentKind, name string, r io.Reader) (DocumentRef, error) {
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return DocumentRef{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	if n == 0 {
		return DocumentRef{}, appErrors.Clone(appErrors.ErrValidation, "uploaded document is empty")
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	if !kindAccepts(kind, mt) {
		return DocumentRef{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("document must be a %s file, got %s", kind, mt.String()))
	}

	filename := path.Join(itemID, uuid.NewString()+mt.Extension())
	stored, err := s.storage.SaveStream(filename, io.MultiReader(bytes.NewReader(head), r), s.cfg.MaxSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return DocumentRef{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("document exceeds %d bytes", s.cfg.MaxSize))
		}
		return DocumentRef{}, appErrors.Transient(err, "document storage unavailable")
	}

	if name = strings.TrimSpace(name); name == "" {
		name = path.Base(stored)
	}
	return DocumentRef{URL: models.StoredDocumentPrefix + stored, Name: name}, nil
}

// Discard removes a stored document; external references are ignored.
func (s *DocumentService) Discard(ref DocumentRef) error {
	if !strings.HasPrefix(ref.URL, models.StoredDocumentPrefix) {
		return nil
	}
	return s.storage.Delete(strings.TrimPrefix(ref.URL, models.StoredDocumentPrefix))
}

// Link returns a download location for the item's document.
func (s *DocumentService) Link(item *models.ChecklistItem) (*dto.DocumentLink, error) {
	if !item.HasDocument() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no document uploaded for item")
	}
	link := &dto.DocumentLink{DocumentName: deref(item.DocumentName)}
	if !item.HasStoredDocument() {
		link.URL = *item.DocumentURL
		return link, nil
	}
	token, expiresAt, err := s.signer.Generate(item.ID, item.StoredDocumentRef())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign document link")
	}
	expires := expiresAt.UTC().Format(time.RFC3339)
	link.URL = fmt.Sprintf("%s/onboarding/documents/download?token=%s", s.cfg.APIPrefix, token)
	link.ExpiresAt = &expires
	return link, nil
}

// Open validates a download token and opens the referenced file.
func (s *DocumentService) Open(token string) (*os.File, string, error) {
	_, ref, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	file, err := s.storage.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, "", appErrors.Transient(err, "document storage unavailable")
	}
	return file, path.Base(ref), nil
}

func kindAccepts(kind models.DocumentKind, mt *mimetype.MIME) bool {
	switch kind {
	case models.DocumentKindPDF:
		return mt.Is("application/pdf")
	case models.DocumentKindImage:
		return strings.HasPrefix(mt.String(), "image/")
	default:
		return true
	}
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
