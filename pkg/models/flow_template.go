package models

import "time"

// StepMode determines how a flow step's assignees gate progression.
type StepMode string

const (
	StepModeSerial   StepMode = "Serial"   // Exactly one assignee; their approval completes the step
	StepModeParallel StepMode = "Parallel" // One or more assignees; all must approve
)

// MaxStepKeyLength bounds the stepKey identifier within a template.
const MaxStepKeyLength = 64

// FlowTemplate is an ordered, admin-managed review flow definition.
// Templates are never deleted; they are superseded by IsActive=false.
type FlowTemplate struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"      validate:"required,min=1"`
	IsActive  bool        `json:"is_active"`
	Steps     []*FlowStep `json:"steps"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// FlowStep is one stage of a template, executed in OrderIndex order.
// A step belongs to exactly one template.
type FlowStep struct {
	StepKey     string   `json:"step_key"     validate:"required,max=64"`
	OrderIndex  int      `json:"order_index"`
	Mode        StepMode `json:"mode"         validate:"required,oneof=Serial Parallel"`
	AssigneeIDs []string `json:"assignee_ids" validate:"required,min=1"`
}
