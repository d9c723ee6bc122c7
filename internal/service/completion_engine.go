package service

import (
	"strings"
	"time"

	"github.com/noah-isme/onboarding-api/internal/models"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
)

// DocumentRef is a document reference to attach to an item.
type DocumentRef struct {
	URL  string
	Name string
}

// CompletionEngine guards item state transitions. Each method mutates the item in
// place and reports whether anything changed; it never touches aggregate progress.
type CompletionEngine struct{}

// AttemptComplete moves a pending item to completed once its gates are satisfied.
// Completing an already completed item is a no-op.
func (CompletionEngine) AttemptComplete(item *models.ChecklistItem, doc *DocumentRef, actor string, now time.Time) (bool, error) {
	if item.IsCompleted {
		return false, nil
	}
	hasDocument := item.HasDocument() || (doc != nil && strings.TrimSpace(doc.URL) != "")
	if item.RequiresDocument && !hasDocument {
		return false, appErrors.ErrDocumentRequired
	}
	if item.RequiresPsychometricTest && !item.PsychometricTestCompleted {
		return false, appErrors.ErrAssessmentRequired
	}
	if doc != nil && strings.TrimSpace(doc.URL) != "" {
		setDocument(item, *doc)
	}
	item.IsCompleted = true
	item.CompletedAt = timePtr(now)
	item.CompletedBy = stringPtr(actor)
	item.UpdatedAt = now
	return true, nil
}

// StoreDocument records a document reference. Replacing an unverified document
// clears its verification state; a verified document is frozen.
func (CompletionEngine) StoreDocument(item *models.ChecklistItem, doc DocumentRef, now time.Time) (bool, error) {
	if !item.RequiresDocument {
		return false, appErrors.Clone(appErrors.ErrInvalidTransition, "item does not accept documents")
	}
	if strings.TrimSpace(doc.URL) == "" {
		return false, appErrors.ErrDocumentRequired
	}
	if item.IsDocumentVerified {
		return false, appErrors.Clone(appErrors.ErrInvalidTransition, "verified document cannot be replaced")
	}
	if item.HasDocument() && *item.DocumentURL == doc.URL && item.DocumentName != nil && *item.DocumentName == doc.Name {
		return false, nil
	}
	setDocument(item, doc)
	item.VerifiedBy = nil
	item.VerifiedAt = nil
	item.VerificationNotes = nil
	item.UpdatedAt = now
	return true, nil
}

// RecordPsychometricResult stores a test outcome. It never completes the item.
func (CompletionEngine) RecordPsychometricResult(item *models.ChecklistItem, attemptID int64, score float64, now time.Time) (bool, error) {
	if !item.RequiresPsychometricTest {
		return false, appErrors.Clone(appErrors.ErrInvalidTransition, "item does not require an assessment")
	}
	if item.IsCompleted {
		return false, appErrors.Clone(appErrors.ErrInvalidTransition, "item already completed")
	}
	if score < 0 || score > 100 {
		return false, appErrors.Clone(appErrors.ErrValidation, "score must be between 0 and 100")
	}
	if item.PsychometricTestCompleted && item.PsychometricTestAttemptID != nil && *item.PsychometricTestAttemptID == attemptID &&
		item.PsychometricTestScore != nil && *item.PsychometricTestScore == score {
		return false, nil
	}
	item.PsychometricTestCompleted = true
	item.PsychometricTestAttemptID = &attemptID
	item.PsychometricTestScore = &score
	item.UpdatedAt = now
	return true, nil
}

// VerifyDocument records HR verification of the stored document. It leaves completion untouched.
func (CompletionEngine) VerifyDocument(item *models.ChecklistItem, notes, verifier string, now time.Time) (bool, error) {
	if !item.RequiresDocument {
		return false, appErrors.Clone(appErrors.ErrInvalidTransition, "item does not require a document")
	}
	if !item.HasDocument() {
		return false, appErrors.ErrDocumentRequired
	}
	item.IsDocumentVerified = true
	item.VerifiedBy = stringPtr(verifier)
	item.VerifiedAt = timePtr(now)
	if notes = strings.TrimSpace(notes); notes != "" {
		item.VerificationNotes = &notes
	} else {
		item.VerificationNotes = nil
	}
	item.UpdatedAt = now
	return true, nil
}

func setDocument(item *models.ChecklistItem, doc DocumentRef) {
	url := doc.URL
	name := strings.TrimSpace(doc.Name)
	item.DocumentURL = &url
	item.DocumentName = &name
	item.IsDocumentVerified = false
}

func stringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
