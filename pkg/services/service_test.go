package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukex/docflow/pkg/log"
	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
	"github.com/dukex/docflow/pkg/persistence/memory"
)

// fixture wires every service against one in-memory store so tests exercise
// the real transactional flow end to end.
type fixture struct {
	store      *memory.Persistence
	documents  *Document
	submission *Submission
	review     *Review
	templates  *FlowTemplate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewPersistence()
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	audit := NewAudit()
	logger := log.WithModule("test")

	return &fixture{
		store:      store,
		documents:  NewDocument(store, audit, nil, logger),
		submission: NewSubmission(store, audit, nil, logger),
		review:     NewReview(store, audit, nil, logger),
		templates:  NewFlowTemplate(store, audit, logger),
	}
}

var (
	owner     = models.Actor{ID: "owner-1", Role: models.RoleUser}
	admin     = models.Actor{ID: "admin-1", Role: models.RoleAdmin}
	reviewerA = models.Actor{ID: "alice", Role: models.RoleReviewer}
	reviewerB = models.Actor{ID: "bob", Role: models.RoleReviewer}
	reviewerC = models.Actor{ID: "carol", Role: models.RoleReviewer}
)

// seedTemplate stores a serial(alice) -> parallel(bob, carol) template.
func seedTemplate(t *testing.T, f *fixture) *models.FlowTemplate {
	t.Helper()

	template, err := f.templates.Upsert(context.Background(), admin, UpsertTemplateInput{
		Name:     "Two stage review",
		IsActive: true,
		Steps: []*models.FlowStep{
			{StepKey: "legal", OrderIndex: 1, Mode: models.StepModeSerial, AssigneeIDs: []string{reviewerA.ID}},
			{StepKey: "board", OrderIndex: 2, Mode: models.StepModeParallel, AssigneeIDs: []string{reviewerB.ID, reviewerC.ID}},
		},
	})
	require.NoError(t, err)

	return template
}

// seedSubmitted creates a draft and submits it, returning the InReview
// document and its template.
func seedSubmitted(t *testing.T, f *fixture) (*models.Document, *models.FlowTemplate) {
	t.Helper()

	ctx := context.Background()
	template := seedTemplate(t, f)

	document, err := f.documents.CreateDraft(ctx, owner, "Quarterly report", "numbers go here")
	require.NoError(t, err)

	document, err = f.submission.Submit(ctx, owner, document.ID, template.ID)
	require.NoError(t, err)
	require.Equal(t, models.DocumentStatusInReview, document.Status)

	return document, template
}

func pendingTaskFor(t *testing.T, f *fixture, actor models.Actor) *models.ReviewTask {
	t.Helper()

	tasks, err := f.review.ListPending(context.Background(), actor)
	require.NoError(t, err)
	require.NotEmpty(t, tasks, "expected a pending task for %s", actor.ID)

	return tasks[0]
}

func auditActions(t *testing.T, store persistence.Store, entityType, entityID string) []string {
	t.Helper()

	entries, err := store.Audit().ListByEntity(context.Background(), entityType, entityID)
	require.NoError(t, err)

	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}

	return actions
}
