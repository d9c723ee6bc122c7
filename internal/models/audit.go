package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionChecklistCreate   = "CHECKLIST_CREATE"
	AuditActionItemComplete      = "CHECKLIST_ITEM_COMPLETE"
	AuditActionDocumentUpload    = "CHECKLIST_DOCUMENT_UPLOAD"
	AuditActionAssessmentRecord  = "CHECKLIST_ASSESSMENT_RECORD"
	AuditActionDocumentVerify    = "CHECKLIST_DOCUMENT_VERIFY"
	AuditActionChecklistExport   = "CHECKLIST_EXPORT"
	AuditActionAccountActivation = "ACCOUNT_ACTIVATION"
	AuditActionDocumentDownload  = "CHECKLIST_DOCUMENT_DOWNLOAD"
)

// Audit resources.
const (
	AuditResourceChecklist     = "onboarding_checklist"
	AuditResourceChecklistItem = "onboarding_checklist_item"
	AuditResourceUser          = "user"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	RequestID  *string   `db:"request_id" json:"request_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
