package services

import (
	"context"
	"slices"

	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
)

// requireVisibleDocument loads a document while enforcing the visibility
// rules: admins see everything, owners see their own documents, reviewers see
// documents they hold or held a review task on. Anything else reads as not
// found so callers cannot probe for foreign document IDs.
func requireVisibleDocument(ctx context.Context, store persistence.Store, actor models.Actor, documentID string) (*models.Document, error) {
	document, err := store.Documents().GetByID(ctx, documentID)
	if err != nil {
		if persistence.IsDocumentNotFound(err) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if actor.IsAdmin() || document.OwnerID == actor.ID {
		return document, nil
	}

	assigned, err := store.Tasks().ListDocumentIDsByAssignee(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if slices.Contains(assigned, document.ID) {
		return document, nil
	}

	return nil, ErrNotFound
}

// requireOwnedTask loads a review task for the acting reviewer. A task that
// does not exist and a task assigned to someone else are indistinguishable to
// the caller.
func requireOwnedTask(ctx context.Context, store persistence.Store, actor models.Actor, taskID string) (*models.ReviewTask, error) {
	task, err := store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		if persistence.IsTaskNotFound(err) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if task.AssigneeID != actor.ID {
		return nil, ErrNotFound
	}

	return task, nil
}
