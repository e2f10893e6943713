package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

// Submission starts review cycles: it locks the draft content into an
// immutable version, walks the document to InReview and opens the first
// step's tasks, all in one transaction.
type Submission struct {
	persistence persistence.Persistence
	audit       *Audit
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewSubmission creates the submission service.
func NewSubmission(
	persistence persistence.Persistence,
	audit *Audit,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Submission {
	return &Submission{
		persistence: persistence,
		audit:       audit,
		publisher:   publisher,
		tracer:      otel.Tracer("docflow.submission"),
		logger:      logger.With("service", "submission"),
	}
}

// Submit starts a review cycle for a Draft document against the given flow
// template. The owner or an admin may submit. On success the document is
// InReview with Pending tasks for every assignee of the first step.
func (s *Submission) Submit(ctx context.Context, actor models.Actor, documentID, templateID string) (*models.Document, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "submission.submit",
		attribute.String(otelhelper.DocumentIDKey, documentID),
		attribute.String(otelhelper.TemplateIDKey, templateID),
		attribute.String(otelhelper.ActorIDKey, actor.ID),
	)
	defer span.End()

	var (
		document      *models.Document
		lockedVersion *models.DocumentVersion
		firstStep     *models.FlowStep
		createdTasks  int
	)

	err := s.persistence.WithinTx(ctx, func(tx persistence.Store) error {
		var err error

		document, err = requireVisibleDocument(ctx, tx, actor, documentID)
		if err != nil {
			return err
		}

		if document.OwnerID != actor.ID && !actor.IsAdmin() {
			return ErrForbidden
		}

		if document.Status != models.DocumentStatusDraft {
			return NewStateNotAllowed(document.Status, models.DocumentStatusSubmitted)
		}

		template, err := tx.Templates().GetByID(ctx, templateID)
		if err != nil {
			if persistence.IsTemplateNotFound(err) {
				return fmt.Errorf("%w: flow template not found", ErrValidation)
			}

			return err
		}

		steps := flow.NormalizeSteps(template.Steps)

		if err := flow.ValidateForSubmission(template); err != nil {
			if errors.Is(err, flow.ErrTemplateInactive) {
				return fmt.Errorf("%w: %s", ErrTemplateUnusable, err)
			}

			return fmt.Errorf("%w: %s", ErrValidation, err)
		}

		firstStep = steps[0]

		if document.CurrentVersionID == "" {
			return fmt.Errorf("%w: draft document %s has no current version", ErrInternal, document.ID)
		}

		draft, err := tx.Versions().GetByID(ctx, document.CurrentVersionID)
		if err != nil {
			if persistence.IsVersionNotFound(err) {
				return fmt.Errorf("%w: document %s points at missing version %s", ErrInternal, document.ID, document.CurrentVersionID)
			}

			return err
		}

		maxNo, err := tx.Versions().MaxVersionNo(ctx, document.ID)
		if err != nil {
			return err
		}

		versionID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate version ID: %w", err)
		}

		now := time.Now().UTC()
		lockedVersion = &models.DocumentVersion{
			ID:         versionID.String(),
			DocumentID: document.ID,
			VersionNo:  maxNo + 1,
			Content:    draft.Content,
			CreatedAt:  now,
		}

		if err := tx.Versions().Create(ctx, lockedVersion); err != nil {
			return err
		}

		// The guarded Draft -> Submitted update is the race arbiter: a
		// concurrent submit or edit path that already moved the document
		// loses here with a conflict instead of creating a second cycle.
		moved, err := tx.Documents().TransitionStatus(ctx, document.ID, models.DocumentStatusDraft, models.DocumentStatusSubmitted)
		if err != nil {
			return err
		}

		if !moved {
			return fmt.Errorf("%w: document left Draft concurrently", ErrConflict)
		}

		moved, err = tx.Documents().TransitionStatus(ctx, document.ID, models.DocumentStatusSubmitted, models.DocumentStatusInReview)
		if err != nil {
			return err
		}

		if !moved {
			return fmt.Errorf("%w: document left Submitted concurrently", ErrConflict)
		}

		if err := tx.Documents().SetCurrentVersion(ctx, document.ID, lockedVersion.ID); err != nil {
			return err
		}

		if err := tx.Documents().SetFlowTemplate(ctx, document.ID, template.ID); err != nil {
			return err
		}

		document.Status = models.DocumentStatusInReview
		document.CurrentVersionID = lockedVersion.ID
		document.FlowTemplateID = template.ID

		tasks, err := buildStepTasks(document.ID, lockedVersion.ID, firstStep, now)
		if err != nil {
			return err
		}

		createdTasks, err = tx.Tasks().CreateBatch(ctx, tasks)
		if err != nil {
			return err
		}

		return s.audit.Record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditDocumentSubmit,
			EntityType: EntityDocument,
			EntityID:   document.ID,
			Metadata: map[string]any{
				"templateId":        template.ID,
				"lockedVersionId":   lockedVersion.ID,
				"createdTasksCount": createdTasks,
			},
		})
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	s.logger.InfoContext(ctx, "Document submitted for approval",
		"document_id", document.ID,
		"template_id", templateID,
		"locked_version_id", lockedVersion.ID,
		"created_tasks", createdTasks,
	)

	publishEvent(ctx, s.publisher, s.logger, document.ID, events.DocumentSubmitted{
		BaseEvent:       newBaseEvent(ctx, s.logger, events.DocumentSubmittedEvent, document.ID, actor.ID),
		FlowTemplateID:  templateID,
		LockedVersionID: lockedVersion.ID,
		FirstStepKey:    firstStep.StepKey,
		CreatedTasks:    createdTasks,
	})

	return document, nil
}

// buildStepTasks materializes Pending tasks for every assignee of a step,
// pinned to the locked version under review.
func buildStepTasks(documentID, versionID string, step *models.FlowStep, now time.Time) ([]*models.ReviewTask, error) {
	assignees := flow.InitialAssignees(step)
	tasks := make([]*models.ReviewTask, 0, len(assignees))

	for _, assigneeID := range assignees {
		taskID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate task ID: %w", err)
		}

		tasks = append(tasks, &models.ReviewTask{
			ID:                taskID.String(),
			DocumentID:        documentID,
			DocumentVersionID: versionID,
			AssigneeID:        assigneeID,
			StepKey:           step.StepKey,
			Mode:              step.Mode,
			Status:            models.ReviewTaskStatusPending,
			CreatedAt:         now,
		})
	}

	return tasks, nil
}
