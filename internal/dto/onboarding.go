package dto

import "github.com/noah-isme/onboarding-api/internal/models"

// CreateChecklistRequest instantiates a checklist. Role and department default to the employee's account data.
type CreateChecklistRequest struct {
	EmployeeID string  `json:"employee_id" validate:"required,max=64"`
	Role       string  `json:"role" validate:"omitempty,max=64"`
	Department *string `json:"department" validate:"omitempty,max=64"`
}

// CreateChecklistResponse carries the new checklist and its shareable link.
type CreateChecklistResponse struct {
	Checklist  *models.ChecklistInstance `json:"checklist"`
	PublicLink *PublicLink               `json:"public_link,omitempty"`
}

// PublicLink is a signed token granting the employee access without a session.
type PublicLink struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// ToggleItemRequest marks an item completed.
type ToggleItemRequest struct {
	IsCompleted *bool `json:"is_completed" validate:"required"`
}

// UploadDocumentRequest attaches an externally hosted document to an item.
type UploadDocumentRequest struct {
	DocumentURL  string `json:"document_url" validate:"required,http_url,max=2048"`
	DocumentName string `json:"document_name" validate:"omitempty,max=255"`
}

// RecordAssessmentRequest reports a psychometric test outcome.
type RecordAssessmentRequest struct {
	AttemptID int64    `json:"attempt_id" validate:"required,gt=0"`
	Score     *float64 `json:"score" validate:"required,gte=0,lte=100"`
}

// VerifyDocumentRequest records HR verification of an uploaded document.
type VerifyDocumentRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// DocumentLink points at a downloadable document.
type DocumentLink struct {
	URL          string  `json:"url"`
	DocumentName string  `json:"document_name,omitempty"`
	ExpiresAt    *string `json:"expires_at,omitempty"`
}

// ChecklistQuery holds HR overview query parameters.
type ChecklistQuery struct {
	Role       string `form:"role" validate:"omitempty,max=64"`
	Department string `form:"department" validate:"omitempty,max=64"`
	Status     string `form:"status" validate:"omitempty,oneof=in_progress completed"`
	Page       int    `form:"page" validate:"omitempty,gte=1"`
	PageSize   int    `form:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// TemplatePreview is the composed catalog for a role/department pair.
type TemplatePreview struct {
	CatalogVersion string                `json:"catalog_version"`
	Role           string                `json:"role"`
	Department     *string               `json:"department,omitempty"`
	Items          []models.TemplateItem `json:"items"`
}
