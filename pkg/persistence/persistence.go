// Package persistence defines the storage contracts for the approval
// workflow engine. The conditional-update primitives (affected-row reporting
// on status-guarded updates) are load-bearing: they carry the exactly-once
// semantics of review actions and document transitions, so every
// implementation must preserve them.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/docflow/pkg/models"
)

// Store groups the repositories of the engine. Inside WithinTx the returned
// repositories operate on the transaction; outside they auto-commit.
type Store interface {
	Documents() DocumentRepository
	Versions() DocumentVersionRepository
	Templates() FlowTemplateRepository
	Tasks() ReviewTaskRepository
	Records() ApprovalRecordRepository
	Audit() AuditLogRepository
}

// Persistence is the top-level storage handle.
type Persistence interface {
	Store

	// WithinTx runs fn inside one transaction. Any error from fn rolls the
	// whole transaction back; nothing fn wrote is visible afterwards.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DocumentRepository owns document rows and their status machine.
type DocumentRepository interface {
	Create(ctx context.Context, document *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	UpdateTitle(ctx context.Context, id, title string) error

	// TransitionStatus performs the guarded status update
	// (UPDATE ... WHERE id = $1 AND status = $from) and reports whether a
	// row was affected. A false return means the document was not in the
	// expected status; the caller lost a race or the transition is illegal.
	TransitionStatus(ctx context.Context, id string, from, to models.DocumentStatus) (bool, error)

	SetCurrentVersion(ctx context.Context, id, versionID string) error
	SetFlowTemplate(ctx context.Context, id, templateID string) error

	ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.Document, error)
	ListAll(ctx context.Context) ([]*models.Document, error)
}

// DocumentVersionRepository owns immutable content snapshots. UpdateContent
// exists only for the live draft version; submitted snapshots are never
// touched again.
type DocumentVersionRepository interface {
	Create(ctx context.Context, version *models.DocumentVersion) error
	GetByID(ctx context.Context, id string) (*models.DocumentVersion, error)
	MaxVersionNo(ctx context.Context, documentID string) (int, error)
	UpdateContent(ctx context.Context, id, content string) error
	ListByDocument(ctx context.Context, documentID string) ([]*models.DocumentVersion, error)
}

// FlowTemplateRepository owns templates and their steps. Save replaces the
// step list wholesale, matching how admins edit templates.
type FlowTemplateRepository interface {
	Save(ctx context.Context, template *models.FlowTemplate) error
	GetByID(ctx context.Context, id string) (*models.FlowTemplate, error)
	List(ctx context.Context) ([]*models.FlowTemplate, error)
	SetActive(ctx context.Context, id string, active bool) error

	// InUse reports whether any document currently references the template
	// for an active (InReview) cycle. Such templates must not be mutated.
	InUse(ctx context.Context, id string) (bool, error)
}

// ReviewTaskRepository owns review tasks. Tasks are created in batch, acted
// on exactly once via MarkActed, and never deleted.
type ReviewTaskRepository interface {
	// CreateBatch inserts the given Pending tasks, skipping any that would
	// duplicate a still-pending task for the same (document, assignee,
	// stepKey). It returns how many were actually created.
	CreateBatch(ctx context.Context, tasks []*models.ReviewTask) (int, error)

	GetByID(ctx context.Context, id string) (*models.ReviewTask, error)
	ListByDocument(ctx context.Context, documentID string) ([]*models.ReviewTask, error)
	ListByDocumentStep(ctx context.Context, documentID, stepKey string) ([]*models.ReviewTask, error)
	ListPendingByAssignee(ctx context.Context, assigneeID string) ([]*models.ReviewTask, error)
	ListDocumentIDsByAssignee(ctx context.Context, assigneeID string) ([]string, error)

	// MarkActed performs the exactly-once guard: a conditional update whose
	// predicate includes status = Pending and the expected assignee. It
	// reports whether the row was flipped; false means another request won.
	MarkActed(ctx context.Context, id, assigneeID string, to models.ReviewTaskStatus, actedAt time.Time) (bool, error)

	// CancelOtherPending cancels every other Pending task of the document
	// in one guarded bulk update and returns the cancelled count.
	CancelOtherPending(ctx context.Context, documentID, excludeTaskID string, actedAt time.Time) (int64, error)
}

// ApprovalRecordRepository is the append-only decision ledger.
type ApprovalRecordRepository interface {
	Create(ctx context.Context, record *models.ApprovalRecord) error
	ListByDocument(ctx context.Context, documentID string) ([]*models.ApprovalRecord, error)
}

// AuditLogRepository is the append-only audit trail. Append must run on the
// caller's transaction so the entry and the mutation it documents are atomic.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditLogEntry, error)
}
