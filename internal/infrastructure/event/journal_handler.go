package event

import (
	"context"
	"encoding/json"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// JournalHandler writes every published event to the log as a JSON payload.
// Subscribed without event types, it sees all events.
type JournalHandler struct {
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewJournalHandler creates a JournalHandler
func NewJournalHandler(serializer *EventSerializer, log *zap.Logger) *JournalHandler {
	return &JournalHandler{
		serializer: serializer,
		logger:     logger.OrNop(log).Named("event_journal"),
	}
}

// EventTypes returns nil: the journal wants every event
func (h *JournalHandler) EventTypes() []string {
	return nil
}

// Handle logs the event
func (h *JournalHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return err
	}
	logger.For(ctx, h.logger).Info("domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.Int64("aggregate_id", event.AggregateID()),
		zap.Any("payload", json.RawMessage(payload)),
	)
	return nil
}

var _ shared.EventHandler = (*JournalHandler)(nil)
