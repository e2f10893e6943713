package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/docflow/pkg/models"
)

func TestApproveSerialStepOpensNextStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	document, _ := seedSubmitted(t, f)

	task := pendingTaskFor(t, f, reviewerA)

	result, err := f.review.Act(ctx, reviewerA, task.ID, ReviewActionApprove, "")
	require.NoError(t, err)

	assert.Equal(t, models.DocumentStatusInReview, result.DocumentStatus)
	assert.Equal(t, "board", result.NextStepKey)
	assert.Equal(t, models.StepModeParallel, result.NextStepMode)
	assert.Equal(t, 2, result.CreatedTasks)

	tasks, err := f.store.Tasks().ListByDocument(ctx, document.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	records, err := f.store.Records().ListByDocument(ctx, document.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.ApprovalActionApproved, records[0].Action)

	assert.Contains(t, auditActions(t, f.store, EntityReviewTask, task.ID), models.AuditReviewTaskApprove)
	assert.Contains(t, auditActions(t, f.store, EntityDocument, document.ID), models.AuditReviewTaskNextStep)
}

func TestParallelStepWaitsForAllApprovals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	document, _ := seedSubmitted(t, f)

	_, err := f.review.Act(ctx, reviewerA, pendingTaskFor(t, f, reviewerA).ID, ReviewActionApprove, "")
	require.NoError(t, err)

	result, err := f.review.Act(ctx, reviewerB, pendingTaskFor(t, f, reviewerB).ID, ReviewActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusInReview, result.DocumentStatus, "one of two parallel approvals must not complete the step")
	assert.Zero(t, result.CreatedTasks)

	result, err = f.review.Act(ctx, reviewerC, pendingTaskFor(t, f, reviewerC).ID, ReviewActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusApproved, result.DocumentStatus)

	current, err := f.store.Documents().GetByID(ctx, document.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusApproved, current.Status)

	assert.Contains(t, auditActions(t, f.store, EntityDocument, document.ID), models.AuditDocumentApproved)
}

func TestRejectCancelsSiblingsAndRejectsDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	document, _ := seedSubmitted(t, f)

	_, err := f.review.Act(ctx, reviewerA, pendingTaskFor(t, f, reviewerA).ID, ReviewActionApprove, "")
	require.NoError(t, err)

	rejecting := pendingTaskFor(t, f, reviewerB)

	result, err := f.review.Act(ctx, reviewerB, rejecting.ID, ReviewActionReject, "numbers do not add up")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusRejected, result.DocumentStatus)
	assert.Equal(t, int64(1), result.CancelledTasks)

	tasks, err := f.store.Tasks().ListByDocument(ctx, document.ID)
	require.NoError(t, err)

	byStatus := map[models.ReviewTaskStatus]int{}
	for _, task := range tasks {
		byStatus[task.Status]++
	}

	assert.Equal(t, 1, byStatus[models.ReviewTaskStatusApproved])
	assert.Equal(t, 1, byStatus[models.ReviewTaskStatusRejected])
	assert.Equal(t, 1, byStatus[models.ReviewTaskStatusCancelled])
	assert.Zero(t, byStatus[models.ReviewTaskStatusPending])

	// Cancelled tasks leave no decision record.
	records, err := f.store.Records().ListByDocument(ctx, document.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	actions := auditActions(t, f.store, EntityDocument, document.ID)
	assert.Contains(t, actions, models.AuditReviewTaskCancelOther)
	assert.Contains(t, actions, models.AuditDocumentRejected)
}

func TestRejectWithoutSiblingsSkipsCancelAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	document, _ := seedSubmitted(t, f)

	result, err := f.review.Act(ctx, reviewerA, pendingTaskFor(t, f, reviewerA).ID, ReviewActionReject, "not ready")
	require.NoError(t, err)
	assert.Zero(t, result.CancelledTasks)

	actions := auditActions(t, f.store, EntityDocument, document.ID)
	assert.NotContains(t, actions, models.AuditReviewTaskCancelOther)
	assert.Contains(t, actions, models.AuditDocumentRejected)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	document, _ := seedSubmitted(t, f)

	task := pendingTaskFor(t, f, reviewerA)

	_, err := f.review.Act(ctx, reviewerA, task.ID, ReviewActionReject, "   ")
	require.ErrorIs(t, err, ErrRejectReasonRequired)

	// Refused before any mutation: the task is still pending and nothing
	// was recorded.
	current, err := f.store.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewTaskStatusPending, current.Status)

	records, err := f.store.Records().ListByDocument(ctx, document.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestActTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSubmitted(t, f)

	task := pendingTaskFor(t, f, reviewerA)

	_, err := f.review.Act(ctx, reviewerA, task.ID, ReviewActionApprove, "")
	require.NoError(t, err)

	_, err = f.review.Act(ctx, reviewerA, task.ID, ReviewActionApprove, "")
	assert.ErrorIs(t, err, ErrTaskAlreadyActed)
}

func TestActOnCancelledTaskConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSubmitted(t, f)

	_, err := f.review.Act(ctx, reviewerA, pendingTaskFor(t, f, reviewerA).ID, ReviewActionApprove, "")
	require.NoError(t, err)

	straggler := pendingTaskFor(t, f, reviewerC)

	_, err = f.review.Act(ctx, reviewerB, pendingTaskFor(t, f, reviewerB).ID, ReviewActionReject, "blocking issue")
	require.NoError(t, err)

	// A late approval on a task the rejection cancelled loses at the row.
	_, err = f.review.Act(ctx, reviewerC, straggler.ID, ReviewActionApprove, "")
	assert.True(t, IsConflictError(err))
}

func TestActOnForeignTaskReadsAsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSubmitted(t, f)

	task := pendingTaskFor(t, f, reviewerA)

	_, err := f.review.Act(ctx, reviewerB, task.ID, ReviewActionApprove, "")
	assert.True(t, IsNotFoundError(err), "a task assigned to someone else must read as absent")

	_, err = f.review.Act(ctx, reviewerA, "no-such-task", ReviewActionApprove, "")
	assert.True(t, IsNotFoundError(err))
}

func TestActExactlyOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	document, _ := seedSubmitted(t, f)

	task := pendingTaskFor(t, f, reviewerA)

	const attempts = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.review.Act(ctx, reviewerA, task.ID, ReviewActionApprove, "")

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				succeeded++
			case IsConflictError(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded, "exactly one action may win")
	assert.Equal(t, attempts-1, conflicts)

	// The winner's side effects happened once.
	records, err := f.store.Records().ListByDocument(ctx, document.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	tasks, err := f.store.Tasks().ListByDocument(ctx, document.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 3, "the next step opened exactly once")
}

func TestSecondCycleIgnoresFirstCycleTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	document, template := seedSubmitted(t, f)

	_, err := f.review.Act(ctx, reviewerA, pendingTaskFor(t, f, reviewerA).ID, ReviewActionReject, "not ready")
	require.NoError(t, err)

	_, err = f.documents.ReopenAsDraft(ctx, owner, document.ID)
	require.NoError(t, err)

	_, err = f.submission.Submit(ctx, owner, document.ID, template.ID)
	require.NoError(t, err)

	// The first cycle left a rejected task under the same step key; it must
	// not gate the second cycle's progression.
	result, err := f.review.Act(ctx, reviewerA, pendingTaskFor(t, f, reviewerA).ID, ReviewActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, "board", result.NextStepKey)
	assert.Equal(t, 2, result.CreatedTasks)

	_, err = f.review.Act(ctx, reviewerB, pendingTaskFor(t, f, reviewerB).ID, ReviewActionApprove, "")
	require.NoError(t, err)

	result, err = f.review.Act(ctx, reviewerC, pendingTaskFor(t, f, reviewerC).ID, ReviewActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusApproved, result.DocumentStatus)
}

func TestListPendingOnlyOwn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedSubmitted(t, f)

	tasks, err := f.review.ListPending(ctx, reviewerA)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	tasks, err = f.review.ListPending(ctx, reviewerB)
	require.NoError(t, err)
	assert.Empty(t, tasks, "second step has not opened yet")
}
