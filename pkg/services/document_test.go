package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/docflow/pkg/models"
)

func TestCreateDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	document, err := f.documents.CreateDraft(ctx, owner, "Quarterly report", "first cut")
	require.NoError(t, err)

	assert.Equal(t, models.DocumentStatusDraft, document.Status)
	assert.Equal(t, owner.ID, document.OwnerID)
	require.NotEmpty(t, document.CurrentVersionID)

	version, err := f.store.Versions().GetByID(ctx, document.CurrentVersionID)
	require.NoError(t, err)
	assert.Equal(t, 1, version.VersionNo)
	assert.Equal(t, "first cut", version.Content)

	assert.Contains(t, auditActions(t, f.store, EntityDocument, document.ID), models.AuditDocumentCreateDraft)
}

func TestCreateDraftRequiresTitle(t *testing.T) {
	f := newFixture(t)

	_, err := f.documents.CreateDraft(context.Background(), owner, "   ", "content")
	assert.True(t, IsValidationError(err))
}

func TestUpdateDraftEditsVersionInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	document, err := f.documents.CreateDraft(ctx, owner, "Quarterly report", "first cut")
	require.NoError(t, err)

	title := "Quarterly report v2"
	content := "second cut"

	updated, err := f.documents.UpdateDraft(ctx, owner, document.ID, DraftUpdate{Title: &title, Content: &content})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	versions, err := f.store.Versions().ListByDocument(ctx, document.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1, "draft edits must not create versions")
	assert.Equal(t, content, versions[0].Content)
}

func TestUpdateDraftLockedAfterSubmit(t *testing.T) {
	f := newFixture(t)
	document, _ := seedSubmitted(t, f)

	title := "too late"

	_, err := f.documents.UpdateDraft(context.Background(), owner, document.ID, DraftUpdate{Title: &title})
	require.Error(t, err)
	assert.True(t, IsConflictError(err))

	var stateErr *StateNotAllowedError

	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, models.DocumentStatusInReview, stateErr.Current)
}

func TestUpdateDraftByStrangerReadsAsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	document, err := f.documents.CreateDraft(ctx, owner, "Quarterly report", "")
	require.NoError(t, err)

	stranger := models.Actor{ID: "mallory", Role: models.RoleUser}
	title := "mine now"

	_, err = f.documents.UpdateDraft(ctx, stranger, document.ID, DraftUpdate{Title: &title})
	assert.True(t, IsNotFoundError(err), "foreign documents must be indistinguishable from absent ones")
}

func TestReopenAsDraftCopiesContentToNewVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	document, _ := seedSubmitted(t, f)

	task := pendingTaskFor(t, f, reviewerA)
	lockedVersionID := task.DocumentVersionID

	_, err := f.review.Act(ctx, reviewerA, task.ID, ReviewActionReject, "not ready")
	require.NoError(t, err)

	reopened, err := f.documents.ReopenAsDraft(ctx, owner, document.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusDraft, reopened.Status)
	assert.NotEqual(t, lockedVersionID, reopened.CurrentVersionID)

	locked, err := f.store.Versions().GetByID(ctx, lockedVersionID)
	require.NoError(t, err)

	fresh, err := f.store.Versions().GetByID(ctx, reopened.CurrentVersionID)
	require.NoError(t, err)
	assert.Equal(t, locked.Content, fresh.Content)
	assert.Equal(t, locked.VersionNo+1, fresh.VersionNo)
}

func TestReopenRequiresRejected(t *testing.T) {
	f := newFixture(t)
	document, _ := seedSubmitted(t, f)

	_, err := f.documents.ReopenAsDraft(context.Background(), owner, document.ID)
	assert.True(t, IsConflictError(err))
}

func TestArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	document, _ := seedSubmitted(t, f)

	_, err := f.review.Act(ctx, reviewerA, pendingTaskFor(t, f, reviewerA).ID, ReviewActionApprove, "")
	require.NoError(t, err)
	_, err = f.review.Act(ctx, reviewerB, pendingTaskFor(t, f, reviewerB).ID, ReviewActionApprove, "")
	require.NoError(t, err)
	_, err = f.review.Act(ctx, reviewerC, pendingTaskFor(t, f, reviewerC).ID, ReviewActionApprove, "")
	require.NoError(t, err)

	_, err = f.documents.Archive(ctx, owner, document.ID)
	assert.True(t, IsForbiddenError(err), "archive is admin only")

	archived, err := f.documents.Archive(ctx, admin, document.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusArchived, archived.Status)

	// Archived is terminal.
	_, err = f.documents.Archive(ctx, admin, document.ID)
	assert.True(t, IsConflictError(err))
}

func TestListVisible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	document, _ := seedSubmitted(t, f)

	_, err := f.documents.CreateDraft(ctx, models.Actor{ID: "someone-else", Role: models.RoleUser}, "Unrelated", "")
	require.NoError(t, err)

	ownerDocs, err := f.documents.ListVisible(ctx, owner)
	require.NoError(t, err)
	require.Len(t, ownerDocs, 1)
	assert.Equal(t, document.ID, ownerDocs[0].ID)

	reviewerDocs, err := f.documents.ListVisible(ctx, reviewerA)
	require.NoError(t, err)
	require.Len(t, reviewerDocs, 1)
	assert.Equal(t, document.ID, reviewerDocs[0].ID)

	adminDocs, err := f.documents.ListVisible(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, adminDocs, 2)
}

func TestGetDetailHidesForeignDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	document, _ := seedSubmitted(t, f)

	detail, err := f.documents.GetDetail(ctx, owner, document.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Versions, 2)
	assert.Len(t, detail.Tasks, 1)

	_, err = f.documents.GetDetail(ctx, models.Actor{ID: "mallory", Role: models.RoleUser}, document.ID)
	assert.True(t, IsNotFoundError(err))

	_, err = f.documents.GetDetail(ctx, owner, "no-such-id")
	assert.True(t, IsNotFoundError(err))
}
