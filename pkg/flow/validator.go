// Package flow implements template validation and the pure step progression
// engine for review flows.
package flow

import (
	"errors"
	"fmt"

	"github.com/dukex/docflow/pkg/models"
)

// Structural validation errors. They all indicate a malformed template
// definition, as opposed to a well-formed template that is merely unusable.
var (
	ErrTemplateNoSteps     = errors.New("template must have at least one step")
	ErrEmptyStepKey        = errors.New("step key must not be empty")
	ErrStepKeyTooLong      = errors.New("step key exceeds maximum length")
	ErrDuplicateStepKey    = errors.New("duplicate step key in template")
	ErrStepNoAssignees     = errors.New("step must have at least one assignee")
	ErrSerialAssigneeCount = errors.New("serial step must have exactly one assignee")

	// ErrTemplateInactive marks a structurally valid template that cannot
	// back a submission. Distinct from the structural errors above.
	ErrTemplateInactive = errors.New("template is not active")
)

// ValidateTemplate checks the structural invariants of a template's step
// list. It is a pure check over the in-memory description; no side effects.
func ValidateTemplate(template *models.FlowTemplate) error {
	if template == nil || len(template.Steps) < 1 {
		return ErrTemplateNoSteps
	}

	seen := make(map[string]struct{}, len(template.Steps))

	for _, step := range template.Steps {
		if step.StepKey == "" {
			return ErrEmptyStepKey
		}

		if len(step.StepKey) > models.MaxStepKeyLength {
			return fmt.Errorf("step %q: %w", step.StepKey, ErrStepKeyTooLong)
		}

		if _, dup := seen[step.StepKey]; dup {
			return fmt.Errorf("step %q: %w", step.StepKey, ErrDuplicateStepKey)
		}

		seen[step.StepKey] = struct{}{}

		if len(step.AssigneeIDs) < 1 {
			return fmt.Errorf("step %q: %w", step.StepKey, ErrStepNoAssignees)
		}

		if step.Mode == models.StepModeSerial && len(step.AssigneeIDs) != 1 {
			return fmt.Errorf("step %q: %w", step.StepKey, ErrSerialAssigneeCount)
		}
	}

	return nil
}

// ValidateForSubmission gates submission: the template must be structurally
// valid and active. An inactive template fails with ErrTemplateInactive so
// callers can report "template unusable" rather than a structural error.
func ValidateForSubmission(template *models.FlowTemplate) error {
	if err := ValidateTemplate(template); err != nil {
		return err
	}

	if !template.IsActive {
		return ErrTemplateInactive
	}

	return nil
}
