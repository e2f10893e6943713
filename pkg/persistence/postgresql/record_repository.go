package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukex/docflow/pkg/models"
)

// ApprovalRecordRepository appends to the decision ledger. Records are never
// updated or deleted.
type ApprovalRecordRepository struct {
	q querier
}

func (r *ApprovalRecordRepository) Create(ctx context.Context, record *models.ApprovalRecord) error {
	query := `
		INSERT INTO approval_records (id, document_id, document_version_id, review_task_id, actor_id, action, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		record.ID,
		record.DocumentID,
		record.DocumentVersionID,
		record.ReviewTaskID,
		record.ActorID,
		record.Action,
		record.Reason,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert approval record: %w", err)
	}

	return nil
}

func (r *ApprovalRecordRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.ApprovalRecord, error) {
	query := `
		SELECT id, document_id, document_version_id, review_task_id, actor_id, action, reason, created_at
		FROM approval_records
		WHERE document_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.q.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval records: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	records := make([]*models.ApprovalRecord, 0)

	for rows.Next() {
		var record models.ApprovalRecord

		var action string

		var reason sql.NullString

		err := rows.Scan(
			&record.ID,
			&record.DocumentID,
			&record.DocumentVersionID,
			&record.ReviewTaskID,
			&record.ActorID,
			&action,
			&reason,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval record: %w", err)
		}

		record.Action = models.ApprovalAction(action)
		record.Reason = reason.String

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval records: %w", err)
	}

	return records, nil
}
