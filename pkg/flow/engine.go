package flow

import (
	"sort"

	"github.com/dukex/docflow/pkg/models"
)

// NormalizeSteps returns a copy of the step list sorted by OrderIndex. Ties
// break on StepKey so the order is total even when indices collide. All other
// engine functions expect a normalized list.
func NormalizeSteps(steps []*models.FlowStep) []*models.FlowStep {
	normalized := make([]*models.FlowStep, len(steps))
	copy(normalized, steps)

	sort.SliceStable(normalized, func(i, j int) bool {
		if normalized[i].OrderIndex != normalized[j].OrderIndex {
			return normalized[i].OrderIndex < normalized[j].OrderIndex
		}

		return normalized[i].StepKey < normalized[j].StepKey
	})

	return normalized
}

// InitialAssignees returns the assignees who receive a task when the given
// step opens. The result is sorted so task creation order is deterministic.
func InitialAssignees(step *models.FlowStep) []string {
	assignees := make([]string, len(step.AssigneeIDs))
	copy(assignees, step.AssigneeIDs)
	sort.Strings(assignees)

	return assignees
}

// IsStepComplete reports whether a step is finished given the statuses of its
// tasks. Serial completes when its single task is approved; Parallel when
// every task is approved. A rejection never completes a step; the reject path
// short-circuits the whole document instead.
func IsStepComplete(mode models.StepMode, taskStatuses []models.ReviewTaskStatus) bool {
	if len(taskStatuses) == 0 {
		return false
	}

	switch mode {
	case models.StepModeSerial:
		return taskStatuses[0] == models.ReviewTaskStatusApproved
	case models.StepModeParallel:
		for _, status := range taskStatuses {
			if status != models.ReviewTaskStatusApproved {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// NextStep returns the step following the completed one in a normalized step
// list, or nil if the completed step was last. An unknown step key also
// returns nil.
func NextStep(steps []*models.FlowStep, completedStepKey string) *models.FlowStep {
	for i, step := range steps {
		if step.StepKey == completedStepKey {
			if i+1 < len(steps) {
				return steps[i+1]
			}

			return nil
		}
	}

	return nil
}

// FindStep returns the step with the given key, or nil when absent.
func FindStep(steps []*models.FlowStep, stepKey string) *models.FlowStep {
	for _, step := range steps {
		if step.StepKey == stepKey {
			return step
		}
	}

	return nil
}
