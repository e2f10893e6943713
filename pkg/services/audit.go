package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
)

// Entity types referenced by audit entries.
const (
	EntityDocument     = "Document"
	EntityReviewTask   = "ReviewTask"
	EntityFlowTemplate = "FlowTemplate"
)

// AuditEvent describes one audit trail entry to be recorded.
type AuditEvent struct {
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]any
}

// Audit appends audit trail entries. Record must be called with the
// repositories of the caller's open transaction so the entry and the
// business mutation it documents commit or roll back together.
type Audit struct{}

// NewAudit creates the audit trail service.
func NewAudit() *Audit {
	return &Audit{}
}

// Record appends one immutable audit entry on the given store.
func (a *Audit) Record(ctx context.Context, store persistence.Store, actor models.Actor, event AuditEvent) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate audit entry ID: %w", err)
	}

	entry := &models.AuditLogEntry{
		ID:         id.String(),
		ActorID:    actor.ID,
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Metadata:   event.Metadata,
		CreatedAt:  time.Now().UTC(),
	}

	if err := store.Audit().Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}
