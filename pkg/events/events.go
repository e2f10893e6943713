// Package events defines event types and structures for document approval
// lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/docflow/pkg/models"
)

type EventType string

// Topic carries every docflow lifecycle event.
const Topic = "docflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Document lifecycle events.
	DocumentSubmittedEvent EventType = "document.submitted"
	DocumentApprovedEvent  EventType = "document.approved"
	DocumentRejectedEvent  EventType = "document.rejected"
	DocumentReopenedEvent  EventType = "document.reopened"
	DocumentArchivedEvent  EventType = "document.archived"

	// Review task events.
	ReviewTasksCreatedEvent EventType = "review.tasks.created"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	DocumentID string    `json:"document_id"`
	ActorID    string    `json:"actor_id,omitempty"`
}

type DocumentSubmitted struct {
	BaseEvent

	FlowTemplateID  string `json:"flow_template_id"`
	LockedVersionID string `json:"locked_version_id"`
	FirstStepKey    string `json:"first_step_key"`
	CreatedTasks    int    `json:"created_tasks"`
}

func (e DocumentSubmitted) GetType() EventType {
	return DocumentSubmittedEvent
}

type DocumentApproved struct {
	BaseEvent

	FinalStepKey string `json:"final_step_key"`
}

func (e DocumentApproved) GetType() EventType {
	return DocumentApprovedEvent
}

type DocumentRejected struct {
	BaseEvent

	StepKey        string `json:"step_key"`
	Reason         string `json:"reason"`
	CancelledTasks int64  `json:"cancelled_tasks"`
}

func (e DocumentRejected) GetType() EventType {
	return DocumentRejectedEvent
}

type DocumentReopened struct {
	BaseEvent

	NewVersionNo int `json:"new_version_no"`
}

func (e DocumentReopened) GetType() EventType {
	return DocumentReopenedEvent
}

type DocumentArchived struct {
	BaseEvent
}

func (e DocumentArchived) GetType() EventType {
	return DocumentArchivedEvent
}

type ReviewTasksCreated struct {
	BaseEvent

	StepKey      string          `json:"step_key"`
	Mode         models.StepMode `json:"mode"`
	CreatedTasks int             `json:"created_tasks"`
}

func (e ReviewTasksCreated) GetType() EventType {
	return ReviewTasksCreatedEvent
}
