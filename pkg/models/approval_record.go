package models

import "time"

// ApprovalAction is the decision recorded by one reviewer.
type ApprovalAction string

const (
	ApprovalActionApproved ApprovalAction = "Approved"
	ApprovalActionRejected ApprovalAction = "Rejected"
)

// ApprovalRecord is an append-only ledger entry for one explicit reviewer
// decision. Exactly one record exists per task that reached a terminal status
// through an action; cancelled tasks produce none. Records are never mutated
// or deleted.
type ApprovalRecord struct {
	ID                string         `json:"id"`
	DocumentID        string         `json:"document_id"`
	DocumentVersionID string         `json:"document_version_id"`
	ReviewTaskID      string         `json:"review_task_id"`
	ActorID           string         `json:"actor_id"`
	Action            ApprovalAction `json:"action"`
	Reason            string         `json:"reason,omitempty"` // Required when Action is Rejected
	CreatedAt         time.Time      `json:"created_at"`
}
