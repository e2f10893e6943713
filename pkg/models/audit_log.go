package models

import "time"

// Audit action names recorded by the engine. Kept as constants so entries
// stay greppable across services and storage.
const (
	AuditDocumentCreateDraft   = "Document.CreateDraft"
	AuditDocumentUpdateDraft   = "Document.UpdateDraft"
	AuditDocumentSubmit        = "Document.SubmitForApproval"
	AuditDocumentApproved      = "Document.Approved"
	AuditDocumentRejected      = "Document.Rejected"
	AuditDocumentReopen        = "Document.ReopenAsDraft"
	AuditDocumentArchive       = "Document.Archive"
	AuditReviewTaskApprove     = "ReviewTask.Approve"
	AuditReviewTaskReject      = "ReviewTask.Reject"
	AuditReviewTaskNextStep    = "ReviewTask.CreateNextStep"
	AuditReviewTaskCancelOther = "ReviewTask.CancelOthers"
	AuditFlowTemplateUpsert    = "FlowTemplate.Upsert"
	AuditFlowTemplateDisable   = "FlowTemplate.Deactivate"
)

// AuditLogEntry is a process-wide append-only record written in the same
// transaction as the state change it documents. Metadata is opaque to the
// engine; it is serialized verbatim for storage and display.
type AuditLogEntry struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
