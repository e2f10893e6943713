package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
	"github.com/dukex/docflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"audit_logs", "approval_records", "review_tasks", "flow_template_steps", "document_versions", "documents", "flow_templates", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("docflow_test"),
			postgres.WithUsername("docflow"),
			postgres.WithPassword("docflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = store.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return store, ctx, databaseURL
}

func newID(t *testing.T) string {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	return id.String()
}

func seedDocument(ctx context.Context, t *testing.T, store *postgresql.Persistence) (*models.Document, *models.DocumentVersion) {
	t.Helper()

	now := time.Now().UTC()
	document := &models.Document{
		ID:        newID(t),
		Title:     "Quarterly report",
		OwnerID:   "owner-1",
		Status:    models.DocumentStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Documents().Create(ctx, document))

	version := &models.DocumentVersion{
		ID:         newID(t),
		DocumentID: document.ID,
		VersionNo:  1,
		Content:    "numbers",
		CreatedAt:  now,
	}
	require.NoError(t, store.Versions().Create(ctx, version))
	require.NoError(t, store.Documents().SetCurrentVersion(ctx, document.ID, version.ID))

	return document, version
}

func seedTask(ctx context.Context, t *testing.T, store *postgresql.Persistence, documentID, versionID, assigneeID, stepKey string) *models.ReviewTask {
	t.Helper()

	task := &models.ReviewTask{
		ID:                newID(t),
		DocumentID:        documentID,
		DocumentVersionID: versionID,
		AssigneeID:        assigneeID,
		StepKey:           stepKey,
		Mode:              models.StepModeSerial,
		Status:            models.ReviewTaskStatusPending,
		CreatedAt:         time.Now().UTC(),
	}

	created, err := store.Tasks().CreateBatch(ctx, []*models.ReviewTask{task})
	require.NoError(t, err)
	require.Equal(t, 1, created)

	return task
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'documents')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "documents table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
pg_indexes WHERE indexname = 'uniq_review_tasks_pending')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "pending uniqueness index should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	require.NoError(t, store.HealthCheck(ctx))
}

func TestDocumentRepository_RoundTrip(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	document, version := seedDocument(ctx, t, store)

	loaded, err := store.Documents().GetByID(ctx, document.ID)
	require.NoError(t, err)
	assert.Equal(t, document.Title, loaded.Title)
	assert.Equal(t, version.ID, loaded.CurrentVersionID)
	assert.Equal(t, models.DocumentStatusDraft, loaded.Status)

	_, err = store.Documents().GetByID(ctx, newID(t))
	assert.True(t, persistence.IsDocumentNotFound(err))

	byOwner, err := store.Documents().ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, byOwner, 1)
}

func TestDocumentRepository_TransitionStatus(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	document, _ := seedDocument(ctx, t, store)

	moved, err := store.Documents().TransitionStatus(ctx, document.ID, models.DocumentStatusDraft, models.DocumentStatusSubmitted)
	require.NoError(t, err)
	assert.True(t, moved)

	// The guard fails when the expected status is stale.
	moved, err = store.Documents().TransitionStatus(ctx, document.ID, models.DocumentStatusDraft, models.DocumentStatusSubmitted)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestTaskRepository_MarkActedExactlyOnce(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	document, version := seedDocument(ctx, t, store)
	task := seedTask(ctx, t, store, document.ID, version.ID, "alice", "legal")

	now := time.Now().UTC()

	flipped, err := store.Tasks().MarkActed(ctx, task.ID, "alice", models.ReviewTaskStatusApproved, now)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = store.Tasks().MarkActed(ctx, task.ID, "alice", models.ReviewTaskStatusApproved, now)
	require.NoError(t, err)
	assert.False(t, flipped, "second action must lose at the row")

	loaded, err := store.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewTaskStatusApproved, loaded.Status)
	require.NotNil(t, loaded.ActedAt)
}

func TestTaskRepository_MarkActedWrongAssignee(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	document, version := seedDocument(ctx, t, store)
	task := seedTask(ctx, t, store, document.ID, version.ID, "alice", "legal")

	flipped, err := store.Tasks().MarkActed(ctx, task.ID, "bob", models.ReviewTaskStatusApproved, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, flipped)
}

func TestTaskRepository_CreateBatchSkipsPendingDuplicates(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	document, version := seedDocument(ctx, t, store)
	seedTask(ctx, t, store, document.ID, version.ID, "alice", "legal")

	duplicate := &models.ReviewTask{
		ID:                newID(t),
		DocumentID:        document.ID,
		DocumentVersionID: version.ID,
		AssigneeID:        "alice",
		StepKey:           "legal",
		Mode:              models.StepModeSerial,
		Status:            models.ReviewTaskStatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	fresh := &models.ReviewTask{
		ID:                newID(t),
		DocumentID:        document.ID,
		DocumentVersionID: version.ID,
		AssigneeID:        "bob",
		StepKey:           "legal",
		Mode:              models.StepModeSerial,
		Status:            models.ReviewTaskStatusPending,
		CreatedAt:         time.Now().UTC(),
	}

	created, err := store.Tasks().CreateBatch(ctx, []*models.ReviewTask{duplicate, fresh})
	require.NoError(t, err)
	assert.Equal(t, 1, created, "the still-pending duplicate is skipped")
}

func TestTaskRepository_CancelOtherPending(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	document, version := seedDocument(ctx, t, store)
	rejecting := seedTask(ctx, t, store, document.ID, version.ID, "alice", "board")
	sibling := seedTask(ctx, t, store, document.ID, version.ID, "bob", "board")

	now := time.Now().UTC()

	flipped, err := store.Tasks().MarkActed(ctx, rejecting.ID, "alice", models.ReviewTaskStatusRejected, now)
	require.NoError(t, err)
	require.True(t, flipped)

	cancelled, err := store.Tasks().CancelOtherPending(ctx, document.ID, rejecting.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cancelled)

	loaded, err := store.Tasks().GetByID(ctx, sibling.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewTaskStatusCancelled, loaded.Status)
}

func TestTemplateRepository_SaveReplacesSteps(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	template := &models.FlowTemplate{
		ID:       newID(t),
		Name:     "Two stage",
		IsActive: true,
		Steps: []*models.FlowStep{
			{StepKey: "legal", OrderIndex: 1, Mode: models.StepModeSerial, AssigneeIDs: []string{"alice"}},
			{StepKey: "board", OrderIndex: 2, Mode: models.StepModeParallel, AssigneeIDs: []string{"bob", "carol"}},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Templates().Save(ctx, template))

	template.Steps = template.Steps[:1]
	template.Name = "Single stage"
	require.NoError(t, store.Templates().Save(ctx, template))

	loaded, err := store.Templates().GetByID(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, "Single stage", loaded.Name)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, "legal", loaded.Steps[0].StepKey)
	assert.Equal(t, []string{"alice"}, loaded.Steps[0].AssigneeIDs)
}

func TestTemplateRepository_InUse(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	template := &models.FlowTemplate{
		ID:       newID(t),
		Name:     "Two stage",
		IsActive: true,
		Steps: []*models.FlowStep{
			{StepKey: "legal", OrderIndex: 1, Mode: models.StepModeSerial, AssigneeIDs: []string{"alice"}},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Templates().Save(ctx, template))

	inUse, err := store.Templates().InUse(ctx, template.ID)
	require.NoError(t, err)
	assert.False(t, inUse)

	document, _ := seedDocument(ctx, t, store)
	require.NoError(t, store.Documents().SetFlowTemplate(ctx, document.ID, template.ID))

	moved, err := store.Documents().TransitionStatus(ctx, document.ID, models.DocumentStatusDraft, models.DocumentStatusSubmitted)
	require.NoError(t, err)
	require.True(t, moved)
	moved, err = store.Documents().TransitionStatus(ctx, document.ID, models.DocumentStatusSubmitted, models.DocumentStatusInReview)
	require.NoError(t, err)
	require.True(t, moved)

	inUse, err = store.Templates().InUse(ctx, template.ID)
	require.NoError(t, err)
	assert.True(t, inUse)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	document, _ := seedDocument(ctx, t, store)

	sentinel := assert.AnError

	err := store.WithinTx(ctx, func(tx persistence.Store) error {
		if err := tx.Documents().UpdateTitle(ctx, document.ID, "doomed title"); err != nil {
			return err
		}

		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	loaded, err := store.Documents().GetByID(ctx, document.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly report", loaded.Title, "rolled back write must not be visible")
}

func TestAuditRepository_AppendAndList(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	document, _ := seedDocument(ctx, t, store)

	entry := &models.AuditLogEntry{
		ID:         newID(t),
		ActorID:    "owner-1",
		Action:     models.AuditDocumentCreateDraft,
		EntityType: "Document",
		EntityID:   document.ID,
		Metadata:   map[string]any{"title": "Quarterly report"},
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.Audit().Append(ctx, entry))

	entries, err := store.Audit().ListByEntity(ctx, "Document", document.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditDocumentCreateDraft, entries[0].Action)
	assert.Equal(t, "Quarterly report", entries[0].Metadata["title"])
}
