package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
)

// DocumentRepository handles document rows and their guarded status updates.
type DocumentRepository struct {
	q querier
}

func (r *DocumentRepository) Create(ctx context.Context, document *models.Document) error {
	query := `
		INSERT INTO documents (id, title, owner_id, status, current_version_id, flow_template_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		document.ID,
		document.Title,
		document.OwnerID,
		document.Status,
		document.CurrentVersionID,
		document.FlowTemplateID,
		document.CreatedAt,
		document.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `
		SELECT
			id
		  , title
		  , owner_id
		  , status
		  , COALESCE(current_version_id::text, '')
		  , COALESCE(flow_template_id::text, '')
		  , created_at
		  , updated_at
		FROM documents
		WHERE id = $1
	`

	document, err := scanDocument(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDocumentNotFound
		}

		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	return document, nil
}

func (r *DocumentRepository) UpdateTitle(ctx context.Context, id, title string) error {
	result, err := r.q.ExecContext(ctx,
		"UPDATE documents SET title = $1, updated_at = NOW() WHERE id = $2", title, id)
	if err != nil {
		return fmt.Errorf("failed to update document title: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrDocumentNotFound
	}

	return nil
}

// TransitionStatus is the conditional update guarding every document
// transition. The WHERE clause on the current status makes concurrent
// transitions race for the row; the loser observes zero affected rows.
func (r *DocumentRepository) TransitionStatus(ctx context.Context, id string, from, to models.DocumentStatus) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		"UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3", to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition document status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

func (r *DocumentRepository) SetCurrentVersion(ctx context.Context, id, versionID string) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE documents SET current_version_id = $1, updated_at = NOW() WHERE id = $2", versionID, id)
	if err != nil {
		return fmt.Errorf("failed to set current version: %w", err)
	}

	return nil
}

func (r *DocumentRepository) SetFlowTemplate(ctx context.Context, id, templateID string) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE documents SET flow_template_id = $1, updated_at = NOW() WHERE id = $2", templateID, id)
	if err != nil {
		return fmt.Errorf("failed to set flow template: %w", err)
	}

	return nil
}

func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	return r.list(ctx, `
		SELECT
			id
		  , title
		  , owner_id
		  , status
		  , COALESCE(current_version_id::text, '')
		  , COALESCE(flow_template_id::text, '')
		  , created_at
		  , updated_at
		FROM documents
		WHERE owner_id = $1
		ORDER BY updated_at DESC
	`, ownerID)
}

func (r *DocumentRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.Document, error) {
	return r.list(ctx, `
		SELECT
			id
		  , title
		  , owner_id
		  , status
		  , COALESCE(current_version_id::text, '')
		  , COALESCE(flow_template_id::text, '')
		  , created_at
		  , updated_at
		FROM documents
		WHERE id = ANY($1)
		ORDER BY updated_at DESC
	`, pq.Array(ids))
}

func (r *DocumentRepository) ListAll(ctx context.Context) ([]*models.Document, error) {
	return r.list(ctx, `
		SELECT
			id
		  , title
		  , owner_id
		  , status
		  , COALESCE(current_version_id::text, '')
		  , COALESCE(flow_template_id::text, '')
		  , created_at
		  , updated_at
		FROM documents
		ORDER BY updated_at DESC
	`)
}

func (r *DocumentRepository) list(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	documents := make([]*models.Document, 0)

	for rows.Next() {
		document, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		documents = append(documents, document)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return documents, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var document models.Document

	var status string

	err := row.Scan(
		&document.ID,
		&document.Title,
		&document.OwnerID,
		&status,
		&document.CurrentVersionID,
		&document.FlowTemplateID,
		&document.CreatedAt,
		&document.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	document.Status = models.DocumentStatus(status)

	return &document, nil
}
