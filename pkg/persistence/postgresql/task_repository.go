package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations, raised by the partial index on pending tasks.
const uniqueViolation = "23505"

// ReviewTaskRepository handles review tasks and the conditional updates that
// carry the exactly-once semantics.
type ReviewTaskRepository struct {
	q querier
}

// CreateBatch inserts pending tasks, skipping duplicates against the partial
// unique index on (document_id, assignee_id, step_key) WHERE status =
// 'Pending'. Returns the number of rows actually inserted.
func (r *ReviewTaskRepository) CreateBatch(ctx context.Context, tasks []*models.ReviewTask) (int, error) {
	query := `
		INSERT INTO review_tasks (id, document_id, document_version_id, assignee_id, step_key, mode, status, acted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8)
		ON CONFLICT (document_id, assignee_id, step_key) WHERE status = 'Pending' DO NOTHING
	`

	created := 0

	for _, task := range tasks {
		result, err := r.q.ExecContext(ctx, query,
			task.ID,
			task.DocumentID,
			task.DocumentVersionID,
			task.AssigneeID,
			task.StepKey,
			task.Mode,
			task.Status,
			task.CreatedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				continue
			}

			return created, fmt.Errorf("failed to insert review task: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("failed to read affected rows: %w", err)
		}

		created += int(affected)
	}

	return created, nil
}

func (r *ReviewTaskRepository) GetByID(ctx context.Context, id string) (*models.ReviewTask, error) {
	query := `
		SELECT
			id
		  , document_id
		  , document_version_id
		  , assignee_id
		  , step_key
		  , mode
		  , status
		  , acted_at
		  , created_at
		FROM review_tasks
		WHERE id = $1
	`

	task, err := scanTask(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTaskNotFound
		}

		return nil, fmt.Errorf("failed to scan review task: %w", err)
	}

	return task, nil
}

func (r *ReviewTaskRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.ReviewTask, error) {
	return r.list(ctx, `
		SELECT id, document_id, document_version_id, assignee_id, step_key, mode, status, acted_at, created_at
		FROM review_tasks
		WHERE document_id = $1
		ORDER BY created_at ASC, id ASC
	`, documentID)
}

func (r *ReviewTaskRepository) ListByDocumentStep(ctx context.Context, documentID, stepKey string) ([]*models.ReviewTask, error) {
	return r.list(ctx, `
		SELECT id, document_id, document_version_id, assignee_id, step_key, mode, status, acted_at, created_at
		FROM review_tasks
		WHERE document_id = $1 AND step_key = $2
		ORDER BY created_at ASC, id ASC
	`, documentID, stepKey)
}

func (r *ReviewTaskRepository) ListPendingByAssignee(ctx context.Context, assigneeID string) ([]*models.ReviewTask, error) {
	return r.list(ctx, `
		SELECT id, document_id, document_version_id, assignee_id, step_key, mode, status, acted_at, created_at
		FROM review_tasks
		WHERE assignee_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC
	`, assigneeID, models.ReviewTaskStatusPending)
}

func (r *ReviewTaskRepository) ListDocumentIDsByAssignee(ctx context.Context, assigneeID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT DISTINCT document_id FROM review_tasks WHERE assignee_id = $1 ORDER BY document_id", assigneeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignee documents: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	ids := make([]string, 0)

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignee documents: %w", err)
	}

	return ids, nil
}

// MarkActed flips one task from Pending to a terminal status. The predicate
// on status and assignee makes concurrent identical requests race for the
// row: exactly one sees an affected row, every other caller sees zero.
func (r *ReviewTaskRepository) MarkActed(ctx context.Context, id, assigneeID string, to models.ReviewTaskStatus, actedAt time.Time) (bool, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE review_tasks
		SET status = $1, acted_at = $2
		WHERE id = $3 AND assignee_id = $4 AND status = $5
	`, to, actedAt, id, assigneeID, models.ReviewTaskStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark review task acted: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

// CancelOtherPending cancels every other pending task of the document in one
// guarded bulk update.
func (r *ReviewTaskRepository) CancelOtherPending(ctx context.Context, documentID, excludeTaskID string, actedAt time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE review_tasks
		SET status = $1, acted_at = $2
		WHERE document_id = $3 AND id != $4 AND status = $5
	`, models.ReviewTaskStatusCancelled, actedAt, documentID, excludeTaskID, models.ReviewTaskStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel sibling tasks: %w", err)
	}

	cancelled, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return cancelled, nil
}

func (r *ReviewTaskRepository) list(ctx context.Context, query string, args ...any) ([]*models.ReviewTask, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query review tasks: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	tasks := make([]*models.ReviewTask, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review task: %w", err)
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review tasks: %w", err)
	}

	return tasks, nil
}

func scanTask(row rowScanner) (*models.ReviewTask, error) {
	var task models.ReviewTask

	var mode, status string

	var actedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.DocumentID,
		&task.DocumentVersionID,
		&task.AssigneeID,
		&task.StepKey,
		&mode,
		&status,
		&actedAt,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Mode = models.StepMode(mode)
	task.Status = models.ReviewTaskStatus(status)

	if actedAt.Valid {
		task.ActedAt = &actedAt.Time
	}

	return &task, nil
}
