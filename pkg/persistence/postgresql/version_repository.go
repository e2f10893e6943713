package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
)

// DocumentVersionRepository handles immutable content snapshots.
type DocumentVersionRepository struct {
	q querier
}

func (r *DocumentVersionRepository) Create(ctx context.Context, version *models.DocumentVersion) error {
	query := `
		INSERT INTO document_versions (id, document_id, version_no, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.ExecContext(ctx, query,
		version.ID,
		version.DocumentID,
		version.VersionNo,
		version.Content,
		version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document version: %w", err)
	}

	return nil
}

func (r *DocumentVersionRepository) GetByID(ctx context.Context, id string) (*models.DocumentVersion, error) {
	query := `
		SELECT id, document_id, version_no, content, created_at
		FROM document_versions
		WHERE id = $1
	`

	var version models.DocumentVersion

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&version.ID,
		&version.DocumentID,
		&version.VersionNo,
		&version.Content,
		&version.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrVersionNotFound
		}

		return nil, fmt.Errorf("failed to scan document version: %w", err)
	}

	return &version, nil
}

func (r *DocumentVersionRepository) MaxVersionNo(ctx context.Context, documentID string) (int, error) {
	var maxNo int

	err := r.q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version_no), 0) FROM document_versions WHERE document_id = $1", documentID).Scan(&maxNo)
	if err != nil {
		return 0, fmt.Errorf("failed to query max version number: %w", err)
	}

	return maxNo, nil
}

// UpdateContent mutates the live draft version in place. Submitted snapshots
// are never passed here; the service layer only edits the current version of
// a Draft document.
func (r *DocumentVersionRepository) UpdateContent(ctx context.Context, id, content string) error {
	result, err := r.q.ExecContext(ctx,
		"UPDATE document_versions SET content = $1 WHERE id = $2", content, id)
	if err != nil {
		return fmt.Errorf("failed to update version content: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrVersionNotFound
	}

	return nil
}

func (r *DocumentVersionRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.DocumentVersion, error) {
	query := `
		SELECT id, document_id, version_no, content, created_at
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version_no ASC
	`

	rows, err := r.q.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query document versions: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	versions := make([]*models.DocumentVersion, 0)

	for rows.Next() {
		var version models.DocumentVersion

		err := rows.Scan(
			&version.ID,
			&version.DocumentID,
			&version.VersionNo,
			&version.Content,
			&version.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document version: %w", err)
		}

		versions = append(versions, &version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document versions: %w", err)
	}

	return versions, nil
}
