package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
)

type documentRepository struct {
	p    *Persistence
	lock bool
}

func (r *documentRepository) acquire() func() {
	if !r.lock {
		return func() {}
	}

	r.p.mu.Lock()

	return r.p.mu.Unlock
}

func (r *documentRepository) Create(_ context.Context, document *models.Document) error {
	defer r.acquire()()

	r.p.st.documents[document.ID] = cloneDocument(document)

	return nil
}

func (r *documentRepository) GetByID(_ context.Context, id string) (*models.Document, error) {
	defer r.acquire()()

	document, ok := r.p.st.documents[id]
	if !ok {
		return nil, persistence.ErrDocumentNotFound
	}

	return cloneDocument(document), nil
}

func (r *documentRepository) UpdateTitle(_ context.Context, id, title string) error {
	defer r.acquire()()

	document, ok := r.p.st.documents[id]
	if !ok {
		return persistence.ErrDocumentNotFound
	}

	document.Title = title
	document.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *documentRepository) TransitionStatus(_ context.Context, id string, from, to models.DocumentStatus) (bool, error) {
	defer r.acquire()()

	document, ok := r.p.st.documents[id]
	if !ok {
		return false, persistence.ErrDocumentNotFound
	}

	if document.Status != from {
		return false, nil
	}

	document.Status = to
	document.UpdatedAt = time.Now().UTC()

	return true, nil
}

func (r *documentRepository) SetCurrentVersion(_ context.Context, id, versionID string) error {
	defer r.acquire()()

	document, ok := r.p.st.documents[id]
	if !ok {
		return persistence.ErrDocumentNotFound
	}

	document.CurrentVersionID = versionID
	document.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *documentRepository) SetFlowTemplate(_ context.Context, id, templateID string) error {
	defer r.acquire()()

	document, ok := r.p.st.documents[id]
	if !ok {
		return persistence.ErrDocumentNotFound
	}

	document.FlowTemplateID = templateID
	document.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *documentRepository) ListByOwner(_ context.Context, ownerID string) ([]*models.Document, error) {
	defer r.acquire()()

	documents := make([]*models.Document, 0)

	for _, document := range r.p.st.documents {
		if document.OwnerID == ownerID {
			documents = append(documents, cloneDocument(document))
		}
	}

	sortDocuments(documents)

	return documents, nil
}

func (r *documentRepository) ListByIDs(_ context.Context, ids []string) ([]*models.Document, error) {
	defer r.acquire()()

	documents := make([]*models.Document, 0, len(ids))

	for _, id := range ids {
		if document, ok := r.p.st.documents[id]; ok {
			documents = append(documents, cloneDocument(document))
		}
	}

	sortDocuments(documents)

	return documents, nil
}

func (r *documentRepository) ListAll(_ context.Context) ([]*models.Document, error) {
	defer r.acquire()()

	documents := make([]*models.Document, 0, len(r.p.st.documents))

	for _, document := range r.p.st.documents {
		documents = append(documents, cloneDocument(document))
	}

	sortDocuments(documents)

	return documents, nil
}

func sortDocuments(documents []*models.Document) {
	sort.SliceStable(documents, func(i, j int) bool {
		if !documents[i].UpdatedAt.Equal(documents[j].UpdatedAt) {
			return documents[i].UpdatedAt.After(documents[j].UpdatedAt)
		}

		return documents[i].ID < documents[j].ID
	})
}

type versionRepository struct {
	p    *Persistence
	lock bool
}

func (r *versionRepository) acquire() func() {
	if !r.lock {
		return func() {}
	}

	r.p.mu.Lock()

	return r.p.mu.Unlock
}

func (r *versionRepository) Create(_ context.Context, version *models.DocumentVersion) error {
	defer r.acquire()()

	r.p.st.versions[version.ID] = cloneVersion(version)

	return nil
}

func (r *versionRepository) GetByID(_ context.Context, id string) (*models.DocumentVersion, error) {
	defer r.acquire()()

	version, ok := r.p.st.versions[id]
	if !ok {
		return nil, persistence.ErrVersionNotFound
	}

	return cloneVersion(version), nil
}

func (r *versionRepository) MaxVersionNo(_ context.Context, documentID string) (int, error) {
	defer r.acquire()()

	maxNo := 0

	for _, version := range r.p.st.versions {
		if version.DocumentID == documentID && version.VersionNo > maxNo {
			maxNo = version.VersionNo
		}
	}

	return maxNo, nil
}

func (r *versionRepository) UpdateContent(_ context.Context, id, content string) error {
	defer r.acquire()()

	version, ok := r.p.st.versions[id]
	if !ok {
		return persistence.ErrVersionNotFound
	}

	version.Content = content

	return nil
}

func (r *versionRepository) ListByDocument(_ context.Context, documentID string) ([]*models.DocumentVersion, error) {
	defer r.acquire()()

	versions := make([]*models.DocumentVersion, 0)

	for _, version := range r.p.st.versions {
		if version.DocumentID == documentID {
			versions = append(versions, cloneVersion(version))
		}
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].VersionNo < versions[j].VersionNo
	})

	return versions, nil
}

type templateRepository struct {
	p    *Persistence
	lock bool
}

func (r *templateRepository) acquire() func() {
	if !r.lock {
		return func() {}
	}

	r.p.mu.Lock()

	return r.p.mu.Unlock
}

func (r *templateRepository) Save(_ context.Context, template *models.FlowTemplate) error {
	defer r.acquire()()

	r.p.st.templates[template.ID] = cloneTemplate(template)

	return nil
}

func (r *templateRepository) GetByID(_ context.Context, id string) (*models.FlowTemplate, error) {
	defer r.acquire()()

	template, ok := r.p.st.templates[id]
	if !ok {
		return nil, persistence.ErrTemplateNotFound
	}

	return cloneTemplate(template), nil
}

func (r *templateRepository) List(_ context.Context) ([]*models.FlowTemplate, error) {
	defer r.acquire()()

	templates := make([]*models.FlowTemplate, 0, len(r.p.st.templates))

	for _, template := range r.p.st.templates {
		templates = append(templates, cloneTemplate(template))
	}

	sort.SliceStable(templates, func(i, j int) bool {
		if !templates[i].UpdatedAt.Equal(templates[j].UpdatedAt) {
			return templates[i].UpdatedAt.After(templates[j].UpdatedAt)
		}

		return templates[i].ID < templates[j].ID
	})

	return templates, nil
}

func (r *templateRepository) SetActive(_ context.Context, id string, active bool) error {
	defer r.acquire()()

	template, ok := r.p.st.templates[id]
	if !ok {
		return persistence.ErrTemplateNotFound
	}

	template.IsActive = active
	template.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *templateRepository) InUse(_ context.Context, id string) (bool, error) {
	defer r.acquire()()

	for _, document := range r.p.st.documents {
		if document.FlowTemplateID == id && document.Status == models.DocumentStatusInReview {
			return true, nil
		}
	}

	return false, nil
}

type taskRepository struct {
	p    *Persistence
	lock bool
}

func (r *taskRepository) acquire() func() {
	if !r.lock {
		return func() {}
	}

	r.p.mu.Lock()

	return r.p.mu.Unlock
}

func (r *taskRepository) CreateBatch(_ context.Context, tasks []*models.ReviewTask) (int, error) {
	defer r.acquire()()

	created := 0

	for _, task := range tasks {
		if r.hasPendingTask(task.DocumentID, task.AssigneeID, task.StepKey) {
			continue
		}

		r.p.st.tasks[task.ID] = cloneTask(task)
		created++
	}

	return created, nil
}

func (r *taskRepository) hasPendingTask(documentID, assigneeID, stepKey string) bool {
	for _, existing := range r.p.st.tasks {
		if existing.DocumentID == documentID &&
			existing.AssigneeID == assigneeID &&
			existing.StepKey == stepKey &&
			existing.Status == models.ReviewTaskStatusPending {
			return true
		}
	}

	return false
}

func (r *taskRepository) GetByID(_ context.Context, id string) (*models.ReviewTask, error) {
	defer r.acquire()()

	task, ok := r.p.st.tasks[id]
	if !ok {
		return nil, persistence.ErrTaskNotFound
	}

	return cloneTask(task), nil
}

func (r *taskRepository) ListByDocument(_ context.Context, documentID string) ([]*models.ReviewTask, error) {
	defer r.acquire()()

	tasks := make([]*models.ReviewTask, 0)

	for _, task := range r.p.st.tasks {
		if task.DocumentID == documentID {
			tasks = append(tasks, cloneTask(task))
		}
	}

	sortTasks(tasks)

	return tasks, nil
}

func (r *taskRepository) ListByDocumentStep(_ context.Context, documentID, stepKey string) ([]*models.ReviewTask, error) {
	defer r.acquire()()

	tasks := make([]*models.ReviewTask, 0)

	for _, task := range r.p.st.tasks {
		if task.DocumentID == documentID && task.StepKey == stepKey {
			tasks = append(tasks, cloneTask(task))
		}
	}

	sortTasks(tasks)

	return tasks, nil
}

func (r *taskRepository) ListPendingByAssignee(_ context.Context, assigneeID string) ([]*models.ReviewTask, error) {
	defer r.acquire()()

	tasks := make([]*models.ReviewTask, 0)

	for _, task := range r.p.st.tasks {
		if task.AssigneeID == assigneeID && task.Status == models.ReviewTaskStatusPending {
			tasks = append(tasks, cloneTask(task))
		}
	}

	sortTasks(tasks)

	return tasks, nil
}

func (r *taskRepository) ListDocumentIDsByAssignee(_ context.Context, assigneeID string) ([]string, error) {
	defer r.acquire()()

	seen := make(map[string]struct{})
	ids := make([]string, 0)

	for _, task := range r.p.st.tasks {
		if task.AssigneeID != assigneeID {
			continue
		}

		if _, ok := seen[task.DocumentID]; ok {
			continue
		}

		seen[task.DocumentID] = struct{}{}
		ids = append(ids, task.DocumentID)
	}

	sort.Strings(ids)

	return ids, nil
}

func (r *taskRepository) MarkActed(_ context.Context, id, assigneeID string, to models.ReviewTaskStatus, actedAt time.Time) (bool, error) {
	defer r.acquire()()

	task, ok := r.p.st.tasks[id]
	if !ok {
		return false, nil
	}

	if task.AssigneeID != assigneeID || task.Status != models.ReviewTaskStatusPending {
		return false, nil
	}

	task.Status = to
	task.ActedAt = &actedAt

	return true, nil
}

func (r *taskRepository) CancelOtherPending(_ context.Context, documentID, excludeTaskID string, actedAt time.Time) (int64, error) {
	defer r.acquire()()

	var cancelled int64

	for _, task := range r.p.st.tasks {
		if task.DocumentID != documentID || task.ID == excludeTaskID {
			continue
		}

		if task.Status != models.ReviewTaskStatusPending {
			continue
		}

		task.Status = models.ReviewTaskStatusCancelled
		cancelledAt := actedAt
		task.ActedAt = &cancelledAt
		cancelled++
	}

	return cancelled, nil
}

func sortTasks(tasks []*models.ReviewTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}

		return tasks[i].ID < tasks[j].ID
	})
}

type recordRepository struct {
	p    *Persistence
	lock bool
}

func (r *recordRepository) acquire() func() {
	if !r.lock {
		return func() {}
	}

	r.p.mu.Lock()

	return r.p.mu.Unlock
}

func (r *recordRepository) Create(_ context.Context, record *models.ApprovalRecord) error {
	defer r.acquire()()

	r.p.st.records = append(r.p.st.records, cloneRecord(record))

	return nil
}

func (r *recordRepository) ListByDocument(_ context.Context, documentID string) ([]*models.ApprovalRecord, error) {
	defer r.acquire()()

	records := make([]*models.ApprovalRecord, 0)

	for _, record := range r.p.st.records {
		if record.DocumentID == documentID {
			records = append(records, cloneRecord(record))
		}
	}

	return records, nil
}

type auditRepository struct {
	p    *Persistence
	lock bool
}

func (r *auditRepository) acquire() func() {
	if !r.lock {
		return func() {}
	}

	r.p.mu.Lock()

	return r.p.mu.Unlock
}

func (r *auditRepository) Append(_ context.Context, entry *models.AuditLogEntry) error {
	defer r.acquire()()

	r.p.st.audit = append(r.p.st.audit, cloneAuditEntry(entry))

	return nil
}

func (r *auditRepository) ListByEntity(_ context.Context, entityType, entityID string) ([]*models.AuditLogEntry, error) {
	defer r.acquire()()

	entries := make([]*models.AuditLogEntry, 0)

	for _, entry := range r.p.st.audit {
		if entry.EntityType == entityType && entry.EntityID == entityID {
			entries = append(entries, cloneAuditEntry(entry))
		}
	}

	return entries, nil
}
