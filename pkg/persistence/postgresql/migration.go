package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Documents under review and their immutable content snapshots
			CREATE TABLE documents (
				id UUID PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				owner_id VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('Draft', 'Submitted', 'InReview', 'Approved', 'Rejected', 'Archived')),
				current_version_id UUID,
				flow_template_id UUID,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_documents_owner_id ON documents(owner_id);
			CREATE INDEX idx_documents_status ON documents(status);
			CREATE INDEX idx_documents_flow_template_id ON documents(flow_template_id);

			CREATE TABLE document_versions (
				id UUID PRIMARY KEY,
				document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
				version_no INT NOT NULL,
				content TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (document_id, version_no)
			);

			CREATE INDEX idx_document_versions_document_id ON document_versions(document_id);

			-- Flow templates and their steps; steps are replaced wholesale on edit
			CREATE TABLE flow_templates (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE flow_template_steps (
				template_id UUID NOT NULL REFERENCES flow_templates(id) ON DELETE CASCADE,
				step_key VARCHAR(64) NOT NULL,
				order_index INT NOT NULL,
				mode VARCHAR(10) NOT NULL CHECK (mode IN ('Serial', 'Parallel')),
				assignee_ids JSONB NOT NULL,
				PRIMARY KEY (template_id, step_key)
			);

			CREATE INDEX idx_flow_template_steps_template_id ON flow_template_steps(template_id);

			-- Review tasks; the partial unique index enforces at most one
			-- pending task per (document, assignee, step)
			CREATE TABLE review_tasks (
				id UUID PRIMARY KEY,
				document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
				document_version_id UUID NOT NULL REFERENCES document_versions(id),
				assignee_id VARCHAR(255) NOT NULL,
				step_key VARCHAR(64) NOT NULL,
				mode VARCHAR(10) NOT NULL CHECK (mode IN ('Serial', 'Parallel')),
				status VARCHAR(10) NOT NULL CHECK (status IN ('Pending', 'Approved', 'Rejected', 'Cancelled')),
				acted_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX uniq_review_tasks_pending
				ON review_tasks(document_id, assignee_id, step_key)
				WHERE status = 'Pending';

			CREATE INDEX idx_review_tasks_document_id ON review_tasks(document_id);
			CREATE INDEX idx_review_tasks_assignee_status ON review_tasks(assignee_id, status);

			-- Append-only decision ledger; one record per acted task
			CREATE TABLE approval_records (
				id UUID PRIMARY KEY,
				document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
				document_version_id UUID NOT NULL REFERENCES document_versions(id),
				review_task_id UUID NOT NULL UNIQUE REFERENCES review_tasks(id),
				actor_id VARCHAR(255) NOT NULL,
				action VARCHAR(10) NOT NULL CHECK (action IN ('Approved', 'Rejected')),
				reason TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_approval_records_document_id ON approval_records(document_id);

			-- Append-only audit trail
			CREATE TABLE audit_logs (
				id UUID PRIMARY KEY,
				actor_id VARCHAR(255) NOT NULL,
				action VARCHAR(100) NOT NULL,
				entity_type VARCHAR(50) NOT NULL,
				entity_id VARCHAR(255) NOT NULL,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
		`,
	}
}
