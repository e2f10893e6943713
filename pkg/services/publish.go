package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/docflow/pkg/eventbus"
	"github.com/dukex/docflow/pkg/events"
)

// newBaseEvent assembles the envelope shared by all lifecycle events.
func newBaseEvent(ctx context.Context, logger *slog.Logger, eventType events.EventType, documentID, actorID string) events.BaseEvent {
	id, err := uuid.NewV7()
	if err != nil {
		logger.ErrorContext(ctx, "Failed to generate event ID", "event_type", eventType, "error", err)
	}

	return events.BaseEvent{
		ID:         id.String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		DocumentID: documentID,
		ActorID:    actorID,
	}
}

// publishEvent publishes after a committed transaction. Events are
// best-effort notifications: a publish failure is logged, never surfaced to
// the caller whose state change already committed.
func publishEvent(ctx context.Context, publisher eventbus.EventPublisher, logger *slog.Logger, key string, event eventbus.Event) {
	if publisher == nil {
		return
	}

	if err := publisher.Publish(ctx, key, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
