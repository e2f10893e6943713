package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/docflow/pkg/eventbus"
	"github.com/dukex/docflow/pkg/events"
	"github.com/dukex/docflow/pkg/flow"
	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/otelhelper"
	"github.com/dukex/docflow/pkg/persistence"
)

// ReviewAction is the decision a reviewer takes on a pending task.
type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "Approve"
	ReviewActionReject  ReviewAction = "Reject"
)

// ActResult reports what one review action did to the document.
type ActResult struct {
	Task           *models.ReviewTask    `json:"task"`
	DocumentStatus models.DocumentStatus `json:"document_status"`
	NextStepKey    string                `json:"next_step_key,omitempty"`
	NextStepMode   models.StepMode       `json:"next_step_mode,omitempty"`
	CreatedTasks   int                   `json:"created_tasks"`
	CancelledTasks int64                 `json:"cancelled_tasks"`
}

// Review processes reviewer decisions. The guarded Pending -> terminal task
// update is the exactly-once arbiter: of N concurrent actions on one task,
// one flips the row and runs the progression, the rest lose the update and
// fail with a conflict having changed nothing.
type Review struct {
	persistence persistence.Persistence
	audit       *Audit
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewReview creates the review service.
func NewReview(
	persistence persistence.Persistence,
	audit *Audit,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Review {
	return &Review{
		persistence: persistence,
		audit:       audit,
		publisher:   publisher,
		tracer:      otel.Tracer("docflow.review"),
		logger:      logger.With("service", "review"),
	}
}

// ListPending returns the actor's open review tasks, oldest first.
func (s *Review) ListPending(ctx context.Context, actor models.Actor) ([]*models.ReviewTask, error) {
	return s.persistence.Tasks().ListPendingByAssignee(ctx, actor.ID)
}

// Act applies one reviewer decision to one task. A rejection requires a
// non-empty reason and is refused before anything is touched. Approval may
// complete the step and either open the next step's tasks or approve the
// document; rejection cancels the document's other pending tasks and rejects
// the document.
func (s *Review) Act(ctx context.Context, actor models.Actor, taskID string, action ReviewAction, reason string) (*ActResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "review.act",
		attribute.String(otelhelper.TaskIDKey, taskID),
		attribute.String(otelhelper.ActorIDKey, actor.ID),
		attribute.String(otelhelper.ActionKey, string(action)),
	)
	defer span.End()

	reason = strings.TrimSpace(reason)

	switch action {
	case ReviewActionApprove, ReviewActionReject:
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}

	if action == ReviewActionReject && reason == "" {
		return nil, ErrRejectReasonRequired
	}

	var result *ActResult

	err := s.persistence.WithinTx(ctx, func(tx persistence.Store) error {
		task, err := requireOwnedTask(ctx, tx, actor, taskID)
		if err != nil {
			return err
		}

		document, err := tx.Documents().GetByID(ctx, task.DocumentID)
		if err != nil {
			return err
		}

		if document.Status != models.DocumentStatusInReview {
			return fmt.Errorf("%w: document is not in review", ErrConflict)
		}

		if action == ReviewActionApprove {
			result, err = s.approve(ctx, tx, actor, task, document)
		} else {
			result, err = s.reject(ctx, tx, actor, task, document, reason)
		}

		return err
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	s.logger.InfoContext(ctx, "Review action applied",
		"task_id", taskID,
		"document_id", result.Task.DocumentID,
		"action", action,
		"document_status", result.DocumentStatus,
	)

	s.publishOutcome(ctx, actor, action, reason, result)

	return result, nil
}

func (s *Review) approve(ctx context.Context, tx persistence.Store, actor models.Actor, task *models.ReviewTask, document *models.Document) (*ActResult, error) {
	now := time.Now().UTC()

	flipped, err := tx.Tasks().MarkActed(ctx, task.ID, actor.ID, models.ReviewTaskStatusApproved, now)
	if err != nil {
		return nil, err
	}

	if !flipped {
		return nil, ErrTaskAlreadyActed
	}

	task.Status = models.ReviewTaskStatusApproved
	task.ActedAt = &now

	if err := s.appendRecord(ctx, tx, actor, task, models.ApprovalActionApproved, ""); err != nil {
		return nil, err
	}

	err = s.audit.Record(ctx, tx, actor, AuditEvent{
		Action:     models.AuditReviewTaskApprove,
		EntityType: EntityReviewTask,
		EntityID:   task.ID,
		Metadata:   map[string]any{"documentId": task.DocumentID, "stepKey": task.StepKey},
	})
	if err != nil {
		return nil, err
	}

	template, err := tx.Templates().GetByID(ctx, document.FlowTemplateID)
	if err != nil {
		return nil, fmt.Errorf("%w: document under review references missing template %s", ErrInternal, document.FlowTemplateID)
	}

	steps := flow.NormalizeSteps(template.Steps)

	currentStep := flow.FindStep(steps, task.StepKey)
	if currentStep == nil {
		return nil, fmt.Errorf("%w: task step %q not in template %s", ErrInternal, task.StepKey, template.ID)
	}

	siblings, err := tx.Tasks().ListByDocumentStep(ctx, task.DocumentID, task.StepKey)
	if err != nil {
		return nil, err
	}

	// Only this cycle's tasks gate progression; earlier cycles left terminal
	// tasks under the same step key, pinned to their own locked versions.
	statuses := make([]models.ReviewTaskStatus, 0, len(siblings))

	for _, sibling := range siblings {
		if sibling.DocumentVersionID == task.DocumentVersionID {
			statuses = append(statuses, sibling.Status)
		}
	}

	result := &ActResult{Task: task, DocumentStatus: models.DocumentStatusInReview}

	if !flow.IsStepComplete(currentStep.Mode, statuses) {
		return result, nil
	}

	next := flow.NextStep(steps, task.StepKey)
	if next != nil {
		tasks, err := buildStepTasks(task.DocumentID, task.DocumentVersionID, next, now)
		if err != nil {
			return nil, err
		}

		created, err := tx.Tasks().CreateBatch(ctx, tasks)
		if err != nil {
			return nil, err
		}

		err = s.audit.Record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditReviewTaskNextStep,
			EntityType: EntityDocument,
			EntityID:   task.DocumentID,
			Metadata:   map[string]any{"nextStepKey": next.StepKey, "createdTasksCount": created},
		})
		if err != nil {
			return nil, err
		}

		result.NextStepKey = next.StepKey
		result.NextStepMode = next.Mode
		result.CreatedTasks = created

		return result, nil
	}

	moved, err := tx.Documents().TransitionStatus(ctx, task.DocumentID, models.DocumentStatusInReview, models.DocumentStatusApproved)
	if err != nil {
		return nil, err
	}

	if !moved {
		return nil, fmt.Errorf("%w: document left InReview concurrently", ErrConflict)
	}

	err = s.audit.Record(ctx, tx, actor, AuditEvent{
		Action:     models.AuditDocumentApproved,
		EntityType: EntityDocument,
		EntityID:   task.DocumentID,
		Metadata:   map[string]any{"finalStepKey": task.StepKey},
	})
	if err != nil {
		return nil, err
	}

	result.DocumentStatus = models.DocumentStatusApproved

	return result, nil
}

func (s *Review) reject(ctx context.Context, tx persistence.Store, actor models.Actor, task *models.ReviewTask, document *models.Document, reason string) (*ActResult, error) {
	now := time.Now().UTC()

	flipped, err := tx.Tasks().MarkActed(ctx, task.ID, actor.ID, models.ReviewTaskStatusRejected, now)
	if err != nil {
		return nil, err
	}

	if !flipped {
		return nil, ErrTaskAlreadyActed
	}

	task.Status = models.ReviewTaskStatusRejected
	task.ActedAt = &now

	if err := s.appendRecord(ctx, tx, actor, task, models.ApprovalActionRejected, reason); err != nil {
		return nil, err
	}

	err = s.audit.Record(ctx, tx, actor, AuditEvent{
		Action:     models.AuditReviewTaskReject,
		EntityType: EntityReviewTask,
		EntityID:   task.ID,
		Metadata:   map[string]any{"documentId": task.DocumentID, "stepKey": task.StepKey, "reason": reason},
	})
	if err != nil {
		return nil, err
	}

	cancelled, err := tx.Tasks().CancelOtherPending(ctx, task.DocumentID, task.ID, now)
	if err != nil {
		return nil, err
	}

	moved, err := tx.Documents().TransitionStatus(ctx, task.DocumentID, models.DocumentStatusInReview, models.DocumentStatusRejected)
	if err != nil {
		return nil, err
	}

	if !moved {
		return nil, fmt.Errorf("%w: document left InReview concurrently", ErrConflict)
	}

	if cancelled > 0 {
		err = s.audit.Record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditReviewTaskCancelOther,
			EntityType: EntityDocument,
			EntityID:   task.DocumentID,
			Metadata:   map[string]any{"cancelledCount": cancelled},
		})
		if err != nil {
			return nil, err
		}
	}

	err = s.audit.Record(ctx, tx, actor, AuditEvent{
		Action:     models.AuditDocumentRejected,
		EntityType: EntityDocument,
		EntityID:   task.DocumentID,
		Metadata:   map[string]any{"stepKey": task.StepKey},
	})
	if err != nil {
		return nil, err
	}

	return &ActResult{
		Task:           task,
		DocumentStatus: models.DocumentStatusRejected,
		CancelledTasks: cancelled,
	}, nil
}

func (s *Review) appendRecord(ctx context.Context, tx persistence.Store, actor models.Actor, task *models.ReviewTask, action models.ApprovalAction, reason string) error {
	recordID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate record ID: %w", err)
	}

	return tx.Records().Create(ctx, &models.ApprovalRecord{
		ID:                recordID.String(),
		DocumentID:        task.DocumentID,
		DocumentVersionID: task.DocumentVersionID,
		ReviewTaskID:      task.ID,
		ActorID:           actor.ID,
		Action:            action,
		Reason:            reason,
		CreatedAt:         time.Now().UTC(),
	})
}

func (s *Review) publishOutcome(ctx context.Context, actor models.Actor, action ReviewAction, reason string, result *ActResult) {
	documentID := result.Task.DocumentID

	switch {
	case action == ReviewActionReject:
		publishEvent(ctx, s.publisher, s.logger, documentID, events.DocumentRejected{
			BaseEvent:      newBaseEvent(ctx, s.logger, events.DocumentRejectedEvent, documentID, actor.ID),
			StepKey:        result.Task.StepKey,
			Reason:         reason,
			CancelledTasks: result.CancelledTasks,
		})
	case result.DocumentStatus == models.DocumentStatusApproved:
		publishEvent(ctx, s.publisher, s.logger, documentID, events.DocumentApproved{
			BaseEvent:    newBaseEvent(ctx, s.logger, events.DocumentApprovedEvent, documentID, actor.ID),
			FinalStepKey: result.Task.StepKey,
		})
	case result.CreatedTasks > 0:
		publishEvent(ctx, s.publisher, s.logger, documentID, events.ReviewTasksCreated{
			BaseEvent:    newBaseEvent(ctx, s.logger, events.ReviewTasksCreatedEvent, documentID, actor.ID),
			StepKey:      result.NextStepKey,
			Mode:         result.NextStepMode,
			CreatedTasks: result.CreatedTasks,
		})
	}
}
