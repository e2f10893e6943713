package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukex/docflow/pkg/models"
)

// AuditLogRepository appends audit entries. Metadata is stored as JSONB and
// deserialized verbatim; no schema is enforced beyond serializability.
type AuditLogRepository struct {
	q querier
}

func (r *AuditLogRepository) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.q.ExecContext(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		metadataJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

func (r *AuditLogRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditLogEntry, error) {
	query := `
		SELECT id, actor_id, action, entity_type, entity_id, metadata, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.q.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	entries := make([]*models.AuditLogEntry, 0)

	for rows.Next() {
		var entry models.AuditLogEntry

		var metadataJSON []byte

		err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&metadataJSON,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if len(metadataJSON) > 0 {
			err = json.Unmarshal(metadataJSON, &entry.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
