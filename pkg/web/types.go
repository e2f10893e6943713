// Package web provides HTTP handlers and request/response types for the
// document approval API.
package web

import "github.com/dukex/docflow/pkg/models"

// CreateDocumentRequest is the request body for creating a draft.
type CreateDocumentRequest struct {
	Title   string `json:"title"   validate:"required,min=1"`
	Content string `json:"content"`
}

// UpdateDocumentRequest is the request body for editing a draft. Fields are
// optional to support partial updates.
type UpdateDocumentRequest struct {
	Title   *string `json:"title,omitempty"   validate:"omitempty,min=1"`
	Content *string `json:"content,omitempty"`
}

// SubmitDocumentRequest is the request body for starting a review cycle.
type SubmitDocumentRequest struct {
	FlowTemplateID string `json:"flow_template_id" validate:"required"`
}

// RejectTaskRequest is the request body for rejecting a review task.
type RejectTaskRequest struct {
	Reason string `json:"reason" validate:"required,min=1"`
}

// FlowStepRequest is one step of a template definition payload.
type FlowStepRequest struct {
	StepKey     string   `json:"step_key"     validate:"required,max=64"`
	OrderIndex  int      `json:"order_index"`
	Mode        string   `json:"mode"         validate:"required,oneof=Serial Parallel"`
	AssigneeIDs []string `json:"assignee_ids" validate:"required,min=1"`
}

// UpsertTemplateRequest is the request body for creating or replacing a flow
// template.
type UpsertTemplateRequest struct {
	Name     string            `json:"name"      validate:"required,min=1"`
	IsActive bool              `json:"is_active"`
	Steps    []FlowStepRequest `json:"steps"     validate:"required,min=1,dive"`
}

// DomainSteps converts the payload steps to domain steps.
func (r UpsertTemplateRequest) DomainSteps() []*models.FlowStep {
	steps := make([]*models.FlowStep, 0, len(r.Steps))

	for _, step := range r.Steps {
		steps = append(steps, &models.FlowStep{
			StepKey:     step.StepKey,
			OrderIndex:  step.OrderIndex,
			Mode:        models.StepMode(step.Mode),
			AssigneeIDs: step.AssigneeIDs,
		})
	}

	return steps
}
