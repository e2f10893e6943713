package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/docflow/pkg/eventbus"
	"github.com/dukex/docflow/pkg/events"
	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
)

// Document implements the owner-facing document lifecycle: draft creation and
// editing, reopening a rejected document and archiving an approved one.
type Document struct {
	persistence persistence.Persistence
	audit       *Audit
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewDocument creates the document service. The publisher may be nil; events
// are then skipped.
func NewDocument(
	persistence persistence.Persistence,
	audit *Audit,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Document {
	return &Document{
		persistence: persistence,
		audit:       audit,
		publisher:   publisher,
		logger:      logger.With("service", "document"),
	}
}

// DraftUpdate carries the draft fields the owner wants to change. Nil fields
// are left untouched.
type DraftUpdate struct {
	Title   *string
	Content *string
}

// DocumentDetail aggregates everything the detail endpoint exposes about a
// visible document.
type DocumentDetail struct {
	Document *models.Document        `json:"document"`
	Versions []*models.DocumentVersion `json:"versions"`
	Tasks    []*models.ReviewTask      `json:"tasks"`
	Records  []*models.ApprovalRecord  `json:"records"`
	Audit    []*models.AuditLogEntry   `json:"audit"`
}

// CreateDraft creates a Draft document together with its version 1, so the
// document always has a current version.
func (s *Document) CreateDraft(ctx context.Context, actor models.Actor, title, content string) (*models.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	documentID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate document ID: %w", err)
	}

	versionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate version ID: %w", err)
	}

	now := time.Now().UTC()
	document := &models.Document{
		ID:               documentID.String(),
		Title:            title,
		OwnerID:          actor.ID,
		Status:           models.DocumentStatusDraft,
		CurrentVersionID: versionID.String(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	version := &models.DocumentVersion{
		ID:         versionID.String(),
		DocumentID: document.ID,
		VersionNo:  1,
		Content:    content,
		CreatedAt:  now,
	}

	err = s.persistence.WithinTx(ctx, func(tx persistence.Store) error {
		if err := tx.Documents().Create(ctx, document); err != nil {
			return err
		}

		if err := tx.Versions().Create(ctx, version); err != nil {
			return err
		}

		return s.audit.Record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditDocumentCreateDraft,
			EntityType: EntityDocument,
			EntityID:   document.ID,
			Metadata:   map[string]any{"title": title},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Draft created", "document_id", document.ID, "owner_id", actor.ID)

	return document, nil
}

// UpdateDraft edits the title and/or the live version content of a Draft
// document in place. Only the owner may edit; any other status conflicts.
func (s *Document) UpdateDraft(ctx context.Context, actor models.Actor, documentID string, update DraftUpdate) (*models.Document, error) {
	if update.Title == nil && update.Content == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	var document *models.Document

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
			return NewStateNotAllowed(document.Status, models.DocumentStatusDraft)
		}

		metadata := map[string]any{}

		if update.Title != nil {
			title := strings.TrimSpace(*update.Title)
			if err := tx.Documents().UpdateTitle(ctx, document.ID, title); err != nil {
				return err
			}

			document.Title = title
			metadata["title"] = title
		}

		if update.Content != nil {
			if document.CurrentVersionID == "" {
				return fmt.Errorf("%w: draft document %s has no current version", ErrInternal, document.ID)
			}

			if err := tx.Versions().UpdateContent(ctx, document.CurrentVersionID, *update.Content); err != nil {
				return err
			}

			metadata["content_changed"] = true
		}

		return s.audit.Record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditDocumentUpdateDraft,
			EntityType: EntityDocument,
			EntityID:   document.ID,
			Metadata:   metadata,
		})
	})
	if err != nil {
		return nil, err
	}

	return document, nil
}

// ReopenAsDraft moves a Rejected document back to Draft by copying the last
// reviewed content into a fresh version. Earlier versions and tasks stay
// untouched for the audit trail.
func (s *Document) ReopenAsDraft(ctx context.Context, actor models.Actor, documentID string) (*models.Document, error) {
	var (
		document  *models.Document
		versionNo int
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

		if document.Status != models.DocumentStatusRejected {
			return NewStateNotAllowed(document.Status, models.DocumentStatusDraft)
		}

		if document.CurrentVersionID == "" {
			return fmt.Errorf("%w: rejected document %s has no current version", ErrInternal, document.ID)
		}

		current, err := tx.Versions().GetByID(ctx, document.CurrentVersionID)
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

		versionNo = maxNo + 1
		version := &models.DocumentVersion{
			ID:         versionID.String(),
			DocumentID: document.ID,
			VersionNo:  versionNo,
			Content:    current.Content,
			CreatedAt:  time.Now().UTC(),
		}

		if err := tx.Versions().Create(ctx, version); err != nil {
			return err
		}

		moved, err := tx.Documents().TransitionStatus(ctx, document.ID, models.DocumentStatusRejected, models.DocumentStatusDraft)
		if err != nil {
			return err
		}

		if !moved {
			return fmt.Errorf("%w: document left Rejected concurrently", ErrConflict)
		}

		if err := tx.Documents().SetCurrentVersion(ctx, document.ID, version.ID); err != nil {
			return err
		}

		document.Status = models.DocumentStatusDraft
		document.CurrentVersionID = version.ID

		return s.audit.Record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditDocumentReopen,
			EntityType: EntityDocument,
			EntityID:   document.ID,
			Metadata:   map[string]any{"newVersionId": version.ID, "newVersionNo": versionNo},
		})
	})
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.publisher, s.logger, document.ID, events.DocumentReopened{
		BaseEvent:    newBaseEvent(ctx, s.logger, events.DocumentReopenedEvent, document.ID, actor.ID),
		NewVersionNo: versionNo,
	})

	return document, nil
}

// Archive retires an Approved document. Admin only; the operation itself is
// not secret, so a non-admin caller is told forbidden, not found.
func (s *Document) Archive(ctx context.Context, actor models.Actor, documentID string) (*models.Document, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	var document *models.Document

	err := s.persistence.WithinTx(ctx, func(tx persistence.Store) error {
		var err error

		document, err = requireVisibleDocument(ctx, tx, actor, documentID)
		if err != nil {
			return err
		}

		if document.Status != models.DocumentStatusApproved {
			return NewStateNotAllowed(document.Status, models.DocumentStatusArchived)
		}

		moved, err := tx.Documents().TransitionStatus(ctx, document.ID, models.DocumentStatusApproved, models.DocumentStatusArchived)
		if err != nil {
			return err
		}

		if !moved {
			return fmt.Errorf("%w: document left Approved concurrently", ErrConflict)
		}

		document.Status = models.DocumentStatusArchived

		return s.audit.Record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditDocumentArchive,
			EntityType: EntityDocument,
			EntityID:   document.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.publisher, s.logger, document.ID, events.DocumentArchived{
		BaseEvent: newBaseEvent(ctx, s.logger, events.DocumentArchivedEvent, document.ID, actor.ID),
	})

	return document, nil
}

// GetDetail returns the full picture of one visible document: its versions,
// tasks, approval records and audit trail.
func (s *Document) GetDetail(ctx context.Context, actor models.Actor, documentID string) (*DocumentDetail, error) {
	document, err := requireVisibleDocument(ctx, s.persistence, actor, documentID)
	if err != nil {
		return nil, err
	}

	versions, err := s.persistence.Versions().ListByDocument(ctx, document.ID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.persistence.Tasks().ListByDocument(ctx, document.ID)
	if err != nil {
		return nil, err
	}

	records, err := s.persistence.Records().ListByDocument(ctx, document.ID)
	if err != nil {
		return nil, err
	}

	audit, err := s.persistence.Audit().ListByEntity(ctx, EntityDocument, document.ID)
	if err != nil {
		return nil, err
	}

	return &DocumentDetail{
		Document: document,
		Versions: versions,
		Tasks:    tasks,
		Records:  records,
		Audit:    audit,
	}, nil
}

// ListVisible returns the documents the actor may see: everything for admins,
// owned documents for users, assigned documents for reviewers.
func (s *Document) ListVisible(ctx context.Context, actor models.Actor) ([]*models.Document, error) {
	if actor.IsAdmin() {
		return s.persistence.Documents().ListAll(ctx)
	}

	owned, err := s.persistence.Documents().ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if actor.Role != models.RoleReviewer {
		return owned, nil
	}

	assignedIDs, err := s.persistence.Tasks().ListDocumentIDsByAssignee(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(owned))
	for _, document := range owned {
		seen[document.ID] = true
	}

	missing := make([]string, 0, len(assignedIDs))

	for _, id := range assignedIDs {
		if !seen[id] {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return owned, nil
	}

	assigned, err := s.persistence.Documents().ListByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}

	return append(owned, assigned...), nil
}
