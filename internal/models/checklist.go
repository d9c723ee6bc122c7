package models

import (
	"strings"
	"time"
)

// DocumentKind restricts the accepted upload type for a checklist item.
type DocumentKind string

const (
	DocumentKindNone  DocumentKind = ""
	DocumentKindPDF   DocumentKind = "pdf"
	DocumentKindImage DocumentKind = "image"
)

// Valid reports whether the kind is known.
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentKindNone, DocumentKindPDF, DocumentKindImage:
		return true
	}
	return false
}

// TemplateItem is an immutable catalog definition of an onboarding task.
type TemplateItem struct {
	Key                      string       `yaml:"key" json:"key"`
	Title                    string       `yaml:"title" json:"title"`
	Description              string       `yaml:"description" json:"description"`
	Order                    int          `yaml:"order" json:"order"`
	DueOffsetDays            int          `yaml:"dueOffsetDays" json:"due_offset_days"`
	RequiresDocument         bool         `yaml:"requiresDocument" json:"requires_document"`
	DocumentKind             DocumentKind `yaml:"documentKind" json:"document_kind,omitempty"`
	RequiresPsychometricTest bool         `yaml:"requiresPsychometricTest" json:"requires_psychometric_test"`
	TestID                   *int64       `yaml:"testId" json:"test_id,omitempty"`
}

// StoredDocumentPrefix marks document references that live in local document storage.
const StoredDocumentPrefix = "stored://"

// ChecklistItem is the per-employee state of one template item.
type ChecklistItem struct {
	ID                        string       `db:"id" json:"id"`
	ChecklistID               string       `db:"checklist_id" json:"checklist_id"`
	Position                  int          `db:"position" json:"position"`
	TemplateRef               string       `db:"template_ref" json:"template_ref"`
	Title                     string       `db:"title" json:"title"`
	Description               string       `db:"description" json:"description"`
	SortOrder                 int          `db:"sort_order" json:"order"`
	DueDate                   time.Time    `db:"due_date" json:"due_date"`
	RequiresDocument          bool         `db:"requires_document" json:"requires_document"`
	DocumentKind              DocumentKind `db:"document_kind" json:"document_kind,omitempty"`
	RequiresPsychometricTest  bool         `db:"requires_psychometric_test" json:"requires_psychometric_test"`
	TestID                    *int64       `db:"test_id" json:"test_id,omitempty"`
	IsCompleted               bool         `db:"is_completed" json:"is_completed"`
	CompletedBy               *string      `db:"completed_by" json:"completed_by,omitempty"`
	CompletedAt               *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	DocumentURL               *string      `db:"document_url" json:"document_url,omitempty"`
	DocumentName              *string      `db:"document_name" json:"document_name,omitempty"`
	IsDocumentVerified        bool         `db:"is_document_verified" json:"is_document_verified"`
	VerifiedBy                *string      `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt                *time.Time   `db:"verified_at" json:"verified_at,omitempty"`
	VerificationNotes         *string      `db:"verification_notes" json:"verification_notes,omitempty"`
	PsychometricTestAttemptID *int64       `db:"psychometric_test_attempt_id" json:"psychometric_test_attempt_id,omitempty"`
	PsychometricTestCompleted bool         `db:"psychometric_test_completed" json:"psychometric_test_completed"`
	PsychometricTestScore     *float64     `db:"psychometric_test_score" json:"psychometric_test_score,omitempty"`
	UpdatedAt                 time.Time    `db:"updated_at" json:"updated_at"`
	IsOverdue                 bool         `db:"-" json:"is_overdue"`
}

// HasDocument reports whether a document reference is stored on the item.
func (i *ChecklistItem) HasDocument() bool {
	return i.DocumentURL != nil && strings.TrimSpace(*i.DocumentURL) != ""
}

// HasStoredDocument reports whether the document lives in local storage rather than an external URL.
func (i *ChecklistItem) HasStoredDocument() bool {
	return i.HasDocument() && strings.HasPrefix(*i.DocumentURL, StoredDocumentPrefix)
}

// StoredDocumentRef returns the storage-relative file name of a stored document.
func (i *ChecklistItem) StoredDocumentRef() string {
	if !i.HasStoredDocument() {
		return ""
	}
	return strings.TrimPrefix(*i.DocumentURL, StoredDocumentPrefix)
}

// MarkOverdue sets IsOverdue relative to now.
func (i *ChecklistItem) MarkOverdue(now time.Time) {
	i.IsOverdue = !i.IsCompleted && now.After(i.DueDate)
}

// Progress is the aggregate completion state of a checklist.
type Progress struct {
	TotalItems     int `db:"total_items" json:"total_items"`
	CompletedItems int `db:"completed_items" json:"completed_items"`
	Percentage     int `db:"percentage" json:"percentage"`
}

// Complete reports whether every item is completed. It compares counts, not the
// rounded percentage, which can reach 100 early on very long checklists.
func (p Progress) Complete() bool {
	return p.TotalItems > 0 && p.CompletedItems == p.TotalItems
}

// ChecklistInstance is the onboarding checklist owned by one employee.
type ChecklistInstance struct {
	ID             string     `db:"id" json:"id"`
	EmployeeID     string     `db:"employee_id" json:"employee_id"`
	Role           string     `db:"role" json:"role"`
	Department     *string    `db:"department" json:"department,omitempty"`
	CatalogVersion string     `db:"catalog_version" json:"catalog_version"`
	Progress
	ActivatedAt *time.Time      `db:"activated_at" json:"activated_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	Items       []ChecklistItem `db:"-" json:"items,omitempty"`
}

// Retired reports whether the checklist reached full completion and is read-only.
func (c *ChecklistInstance) Retired() bool {
	return c.Progress.Complete()
}

// ChecklistStatus filters the HR overview.
type ChecklistStatus string

const (
	ChecklistStatusInProgress ChecklistStatus = "in_progress"
	ChecklistStatusCompleted  ChecklistStatus = "completed"
)

// ChecklistFilter captures listing criteria for the HR overview.
type ChecklistFilter struct {
	Role       string
	Department string
	Status     ChecklistStatus
	Page       int
	PageSize   int
}

// ActivationSignal is emitted once when a checklist reaches 100%.
type ActivationSignal struct {
	ChecklistID string    `json:"checklist_id"`
	EmployeeID  string    `json:"employee_id"`
	ActivatedAt time.Time `json:"activated_at"`
}

// ItemMutationResult is returned by toggle and upload operations.
type ItemMutationResult struct {
	Item         ChecklistItem `json:"item"`
	Message      string        `json:"message"`
	AllCompleted bool          `json:"all_completed"`
	Progress     Progress      `json:"progress"`
}
