// Package postgresql provides the PostgreSQL persistence implementation for
// the approval workflow engine.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // database/sql driver

	"github.com/dukex/docflow/pkg/persistence"
	"github.com/dukex/docflow/pkg/persistence/sqlbase"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// every repository works both inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// WithinTx runs fn on repositories bound to one transaction. Read committed
// is sufficient: every racing mutation is guarded by a conditional update
// whose affected-row count detects the loser.
func (p *Persistence) WithinTx(ctx context.Context, fn func(tx persistence.Store) error) error {
	transaction, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(&txStore{q: transaction})
	if err != nil {
		if rollbackErr := transaction.Rollback(); rollbackErr != nil {
			p.logger.ErrorContext(ctx, "failed to rollback transaction", "error", rollbackErr)
		}

		return err
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (p *Persistence) Documents() persistence.DocumentRepository {
	return &DocumentRepository{q: p.db}
}

func (p *Persistence) Versions() persistence.DocumentVersionRepository {
	return &DocumentVersionRepository{q: p.db}
}

func (p *Persistence) Templates() persistence.FlowTemplateRepository {
	return &FlowTemplateRepository{q: p.db}
}

func (p *Persistence) Tasks() persistence.ReviewTaskRepository {
	return &ReviewTaskRepository{q: p.db}
}

func (p *Persistence) Records() persistence.ApprovalRecordRepository {
	return &ApprovalRecordRepository{q: p.db}
}

func (p *Persistence) Audit() persistence.AuditLogRepository {
	return &AuditLogRepository{q: p.db}
}

// txStore binds every repository to an open transaction.
type txStore struct {
	q querier
}

func (s *txStore) Documents() persistence.DocumentRepository {
	return &DocumentRepository{q: s.q}
}

func (s *txStore) Versions() persistence.DocumentVersionRepository {
	return &DocumentVersionRepository{q: s.q}
}

func (s *txStore) Templates() persistence.FlowTemplateRepository {
	return &FlowTemplateRepository{q: s.q}
}

func (s *txStore) Tasks() persistence.ReviewTaskRepository {
	return &ReviewTaskRepository{q: s.q}
}

func (s *txStore) Records() persistence.ApprovalRecordRepository {
	return &ApprovalRecordRepository{q: s.q}
}

func (s *txStore) Audit() persistence.AuditLogRepository {
	return &AuditLogRepository{q: s.q}
}
