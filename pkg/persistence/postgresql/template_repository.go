package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
)

// FlowTemplateRepository handles flow templates and their steps.
type FlowTemplateRepository struct {
	q querier
}

// Save upserts the template row and replaces its steps wholesale. Callers
// run it inside WithinTx so the replacement is atomic.
func (r *FlowTemplateRepository) Save(ctx context.Context, template *models.FlowTemplate) error {
	templateQuery := `
		INSERT INTO flow_templates (id, name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.ExecContext(ctx, templateQuery,
		template.ID,
		template.Name,
		template.IsActive,
		template.CreatedAt,
		template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save flow template: %w", err)
	}

	_, err = r.q.ExecContext(ctx, "DELETE FROM flow_template_steps WHERE template_id = $1", template.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	for _, step := range template.Steps {
		assigneesJSON, err := json.Marshal(step.AssigneeIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal assignees: %w", err)
		}

		_, err = r.q.ExecContext(ctx, `
			INSERT INTO flow_template_steps (template_id, step_key, order_index, mode, assignee_ids)
			VALUES ($1, $2, $3, $4, $5)
		`, template.ID, step.StepKey, step.OrderIndex, step.Mode, assigneesJSON)
		if err != nil {
			return fmt.Errorf("failed to insert step %q: %w", step.StepKey, err)
		}
	}

	return nil
}

func (r *FlowTemplateRepository) GetByID(ctx context.Context, id string) (*models.FlowTemplate, error) {
	query := `
		SELECT id, name, is_active, created_at, updated_at
		FROM flow_templates
		WHERE id = $1
	`

	var template models.FlowTemplate

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&template.ID,
		&template.Name,
		&template.IsActive,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to scan flow template: %w", err)
	}

	steps, err := r.loadSteps(ctx, template.ID)
	if err != nil {
		return nil, err
	}

	template.Steps = steps

	return &template, nil
}

func (r *FlowTemplateRepository) List(ctx context.Context) ([]*models.FlowTemplate, error) {
	query := `
		SELECT id, name, is_active, created_at, updated_at
		FROM flow_templates
		ORDER BY updated_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow templates: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	templates := make([]*models.FlowTemplate, 0)

	for rows.Next() {
		var template models.FlowTemplate

		err := rows.Scan(
			&template.ID,
			&template.Name,
			&template.IsActive,
			&template.CreatedAt,
			&template.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow template: %w", err)
		}

		templates = append(templates, &template)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flow templates: %w", err)
	}

	for _, template := range templates {
		steps, err := r.loadSteps(ctx, template.ID)
		if err != nil {
			return nil, err
		}

		template.Steps = steps
	}

	return templates, nil
}

func (r *FlowTemplateRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.q.ExecContext(ctx,
		"UPDATE flow_templates SET is_active = $1, updated_at = NOW() WHERE id = $2", active, id)
	if err != nil {
		return fmt.Errorf("failed to set template active flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrTemplateNotFound
	}

	return nil
}

func (r *FlowTemplateRepository) InUse(ctx context.Context, id string) (bool, error) {
	var inUse bool

	err := r.q.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM documents WHERE flow_template_id = $1 AND status = $2)",
		id, models.DocumentStatusInReview).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("failed to check template usage: %w", err)
	}

	return inUse, nil
}

func (r *FlowTemplateRepository) loadSteps(ctx context.Context, templateID string) ([]*models.FlowStep, error) {
	query := `
		SELECT step_key, order_index, mode, assignee_ids
		FROM flow_template_steps
		WHERE template_id = $1
		ORDER BY order_index ASC, step_key ASC
	`

	rows, err := r.q.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query template steps: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	steps := make([]*models.FlowStep, 0)

	for rows.Next() {
		var step models.FlowStep

		var mode string

		var assigneesJSON []byte

		err := rows.Scan(&step.StepKey, &step.OrderIndex, &mode, &assigneesJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template step: %w", err)
		}

		step.Mode = models.StepMode(mode)

		err = json.Unmarshal(assigneesJSON, &step.AssigneeIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal assignees: %w", err)
		}

		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating template steps: %w", err)
	}

	return steps, nil
}
