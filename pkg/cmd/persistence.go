// Package cmd provides shared wiring helpers for the docflow binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/docflow/pkg/persistence"
	"github.com/dukex/docflow/pkg/persistence/memory"
	"github.com/dukex/docflow/pkg/persistence/postgresql"
)

// NewPersistence creates the persistence backend for a database URL. Postgres
// URLs get the real store, including migrations; anything else falls back to
// the in-memory store used for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return store
	default:
		logger.WarnContext(ctx, "No PostgreSQL URL configured, using in-memory persistence")

		return memory.NewPersistence()
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return provider
}
