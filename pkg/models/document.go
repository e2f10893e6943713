// Package models defines the core domain models for the document approval workflow.
package models

import "time"

// DocumentStatus represents the lifecycle state of a document.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "Draft"     // Editable by its owner
	DocumentStatusSubmitted DocumentStatus = "Submitted" // Transient, advanced to InReview in the same transaction
	DocumentStatusInReview  DocumentStatus = "InReview"  // Waiting on review tasks
	DocumentStatusApproved  DocumentStatus = "Approved"  // Terminal outcome of a review cycle
	DocumentStatusRejected  DocumentStatus = "Rejected"  // Terminal for the cycle, reopenable as Draft
	DocumentStatusArchived  DocumentStatus = "Archived"  // Terminal, reachable from Approved only
)

// legalTransitions is the closed transition table of the document state
// machine. Submitted never rests: submission walks Draft -> Submitted ->
// InReview inside one transaction.
var legalTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentStatusDraft:     {DocumentStatusSubmitted},
	DocumentStatusSubmitted: {DocumentStatusInReview},
	DocumentStatusInReview:  {DocumentStatusApproved, DocumentStatusRejected},
	DocumentStatusRejected:  {DocumentStatusDraft},
	DocumentStatusApproved:  {DocumentStatusArchived},
}

// CanTransition reports whether the document state machine allows moving
// from one status to another.
func CanTransition(from, to DocumentStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// Document is the subject under review. It is owned by its owner while in
// Draft and by the workflow engine once submitted.
type Document struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"           validate:"required,min=1"`
	OwnerID          string         `json:"owner_id"`
	Status           DocumentStatus `json:"status"`
	CurrentVersionID string         `json:"current_version_id,omitempty"`
	FlowTemplateID   string         `json:"flow_template_id,omitempty"` // Set at submission, meaningful while a cycle is active
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsTerminal reports whether no further review activity is possible without
// an explicit owner or admin action.
func (d *Document) IsTerminal() bool {
	switch d.Status {
	case DocumentStatusApproved, DocumentStatusRejected, DocumentStatusArchived:
		return true
	default:
		return false
	}
}
