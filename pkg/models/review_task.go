package models

import "time"

// ReviewTaskStatus represents the lifecycle state of a review task.
type ReviewTaskStatus string

const (
	ReviewTaskStatusPending   ReviewTaskStatus = "Pending"
	ReviewTaskStatusApproved  ReviewTaskStatus = "Approved"
	ReviewTaskStatusRejected  ReviewTaskStatus = "Rejected"
	ReviewTaskStatusCancelled ReviewTaskStatus = "Cancelled" // Sibling of a rejection; no approval record
)

// ReviewTask is one assignee's obligation for one step of one submission
// cycle. At most one Pending task may exist per (document, assignee, stepKey);
// a task moves from Pending to a terminal status exactly once and is never
// deleted.
type ReviewTask struct {
	ID                string           `json:"id"`
	DocumentID        string           `json:"document_id"`
	DocumentVersionID string           `json:"document_version_id"` // The locked snapshot under review
	AssigneeID        string           `json:"assignee_id"`
	StepKey           string           `json:"step_key"`
	Mode              StepMode         `json:"mode"` // Copied from the step at creation time
	Status            ReviewTaskStatus `json:"status"`
	ActedAt           *time.Time       `json:"acted_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// IsTerminal reports whether the task can no longer be acted on.
func (t *ReviewTask) IsTerminal() bool {
	return t.Status != ReviewTaskStatusPending
}
