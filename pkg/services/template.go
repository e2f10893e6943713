package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dukex/docflow/pkg/flow"
	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
)

// FlowTemplate is the admin-facing template service. Templates are soft
// entities: they are created, replaced wholesale and deactivated, never
// deleted, so historical cycles keep a resolvable template reference.
type FlowTemplate struct {
	persistence persistence.Persistence
	audit       *Audit
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewFlowTemplate creates the template service.
func NewFlowTemplate(persistence persistence.Persistence, audit *Audit, logger *slog.Logger) *FlowTemplate {
	return &FlowTemplate{
		persistence: persistence,
		audit:       audit,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("service", "flow_template"),
	}
}

// UpsertTemplateInput describes a template create or replace. A zero
// TemplateID creates; a set one replaces that template's definition.
type UpsertTemplateInput struct {
	TemplateID string
	Name       string
	IsActive   bool
	Steps      []*models.FlowStep
}

// List returns every template, active and inactive.
func (s *FlowTemplate) List(ctx context.Context, actor models.Actor) ([]*models.FlowTemplate, error) {
	return s.persistence.Templates().List(ctx)
}

// Get returns one template by ID.
func (s *FlowTemplate) Get(ctx context.Context, actor models.Actor, templateID string) (*models.FlowTemplate, error) {
	template, err := s.persistence.Templates().GetByID(ctx, templateID)
	if err != nil {
		if persistence.IsTemplateNotFound(err) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return template, nil
}

// Upsert creates or replaces a template definition. Admin only. A template
// backing an active review cycle must not change under its reviewers, so the
// replace path conflicts while the template is in use.
func (s *FlowTemplate) Upsert(ctx context.Context, actor models.Actor, input UpsertTemplateInput) (*models.FlowTemplate, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: template name is required", ErrValidation)
	}

	now := time.Now().UTC()
	template := &models.FlowTemplate{
		ID:        input.TemplateID,
		Name:      name,
		IsActive:  input.IsActive,
		Steps:     flow.NormalizeSteps(input.Steps),
		UpdatedAt: now,
	}

	if err := s.validator.Struct(template); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if err := flow.ValidateTemplate(template); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	creating := template.ID == ""
	if creating {
		templateID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate template ID: %w", err)
		}

		template.ID = templateID.String()
		template.CreatedAt = now
	}

	err := s.persistence.WithinTx(ctx, func(tx persistence.Store) error {
		if !creating {
			existing, err := tx.Templates().GetByID(ctx, template.ID)
			if err != nil {
				if persistence.IsTemplateNotFound(err) {
					return ErrNotFound
				}

				return err
			}

			inUse, err := tx.Templates().InUse(ctx, template.ID)
			if err != nil {
				return err
			}

			if inUse {
				return ErrTemplateInUse
			}

			template.CreatedAt = existing.CreatedAt
		}

		if err := tx.Templates().Save(ctx, template); err != nil {
			return err
		}

		return s.audit.Record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditFlowTemplateUpsert,
			EntityType: EntityFlowTemplate,
			EntityID:   template.ID,
			Metadata: map[string]any{
				"name":      template.Name,
				"isActive":  template.IsActive,
				"stepCount": len(template.Steps),
				"created":   creating,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Flow template saved", "template_id", template.ID, "created", creating)

	return template, nil
}

// Deactivate retires a template from new submissions. Running cycles keep
// their already-created tasks and finish against the frozen definition.
func (s *FlowTemplate) Deactivate(ctx context.Context, actor models.Actor, templateID string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	err := s.persistence.WithinTx(ctx, func(tx persistence.Store) error {
		if _, err := tx.Templates().GetByID(ctx, templateID); err != nil {
			if persistence.IsTemplateNotFound(err) {
				return ErrNotFound
			}

			return err
		}

		if err := tx.Templates().SetActive(ctx, templateID, false); err != nil {
			return err
		}

		return s.audit.Record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditFlowTemplateDisable,
			EntityType: EntityFlowTemplate,
			EntityID:   templateID,
		})
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Flow template deactivated", "template_id", templateID)

	return nil
}
