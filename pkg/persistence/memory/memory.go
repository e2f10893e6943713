// Package memory provides an in-memory implementation of the persistence
// contracts. A single mutex serializes transactions and a snapshot of the
// whole state backs rollback, so the conditional-update and atomicity
// semantics match the SQL implementation. Intended for tests and local
// development.
package memory

import (
	"context"
	"sync"

	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
)

// Persistence is the in-memory store.
type Persistence struct {
	mu sync.Mutex
	st *state
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{st: newState()}
}

// WithinTx runs fn under the store lock. On error the pre-transaction
// snapshot is restored, so partial writes never become visible.
func (p *Persistence) WithinTx(_ context.Context, fn func(tx persistence.Store) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := p.st.clone()

	if err := fn(&txStore{p: p}); err != nil {
		p.st = snapshot

		return err
	}

	return nil
}

// HealthCheck always succeeds for the in-memory store.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) Documents() persistence.DocumentRepository {
	return &documentRepository{p: p, lock: true}
}

func (p *Persistence) Versions() persistence.DocumentVersionRepository {
	return &versionRepository{p: p, lock: true}
}

func (p *Persistence) Templates() persistence.FlowTemplateRepository {
	return &templateRepository{p: p, lock: true}
}

func (p *Persistence) Tasks() persistence.ReviewTaskRepository {
	return &taskRepository{p: p, lock: true}
}

func (p *Persistence) Records() persistence.ApprovalRecordRepository {
	return &recordRepository{p: p, lock: true}
}

func (p *Persistence) Audit() persistence.AuditLogRepository {
	return &auditRepository{p: p, lock: true}
}

// txStore hands out repositories that skip locking; the transaction already
// holds the store lock.
type txStore struct {
	p *Persistence
}

func (s *txStore) Documents() persistence.DocumentRepository {
	return &documentRepository{p: s.p}
}

func (s *txStore) Versions() persistence.DocumentVersionRepository {
	return &versionRepository{p: s.p}
}

func (s *txStore) Templates() persistence.FlowTemplateRepository {
	return &templateRepository{p: s.p}
}

func (s *txStore) Tasks() persistence.ReviewTaskRepository {
	return &taskRepository{p: s.p}
}

func (s *txStore) Records() persistence.ApprovalRecordRepository {
	return &recordRepository{p: s.p}
}

func (s *txStore) Audit() persistence.AuditLogRepository {
	return &auditRepository{p: s.p}
}

// state holds every table. All access happens under Persistence.mu.
type state struct {
	documents map[string]*models.Document
	versions  map[string]*models.DocumentVersion
	templates map[string]*models.FlowTemplate
	tasks     map[string]*models.ReviewTask
	records   []*models.ApprovalRecord
	audit     []*models.AuditLogEntry
}

func newState() *state {
	return &state{
		documents: make(map[string]*models.Document),
		versions:  make(map[string]*models.DocumentVersion),
		templates: make(map[string]*models.FlowTemplate),
		tasks:     make(map[string]*models.ReviewTask),
	}
}

func (s *state) clone() *state {
	cloned := newState()

	for id, doc := range s.documents {
		cloned.documents[id] = cloneDocument(doc)
	}

	for id, version := range s.versions {
		cloned.versions[id] = cloneVersion(version)
	}

	for id, template := range s.templates {
		cloned.templates[id] = cloneTemplate(template)
	}

	for id, task := range s.tasks {
		cloned.tasks[id] = cloneTask(task)
	}

	cloned.records = make([]*models.ApprovalRecord, len(s.records))
	for i, record := range s.records {
		cloned.records[i] = cloneRecord(record)
	}

	cloned.audit = make([]*models.AuditLogEntry, len(s.audit))
	for i, entry := range s.audit {
		cloned.audit[i] = cloneAuditEntry(entry)
	}

	return cloned
}

func cloneDocument(doc *models.Document) *models.Document {
	copied := *doc

	return &copied
}

func cloneVersion(version *models.DocumentVersion) *models.DocumentVersion {
	copied := *version

	return &copied
}

func cloneTemplate(template *models.FlowTemplate) *models.FlowTemplate {
	copied := *template
	copied.Steps = make([]*models.FlowStep, len(template.Steps))

	for i, step := range template.Steps {
		stepCopy := *step
		stepCopy.AssigneeIDs = append([]string(nil), step.AssigneeIDs...)
		copied.Steps[i] = &stepCopy
	}

	return &copied
}

func cloneTask(task *models.ReviewTask) *models.ReviewTask {
	copied := *task

	if task.ActedAt != nil {
		actedAt := *task.ActedAt
		copied.ActedAt = &actedAt
	}

	return &copied
}

func cloneRecord(record *models.ApprovalRecord) *models.ApprovalRecord {
	copied := *record

	return &copied
}

func cloneAuditEntry(entry *models.AuditLogEntry) *models.AuditLogEntry {
	copied := *entry

	if entry.Metadata != nil {
		copied.Metadata = make(map[string]any, len(entry.Metadata))
		for k, v := range entry.Metadata {
			copied.Metadata[k] = v
		}
	}

	return &copied
}
