package marshall

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful for production when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ItemCreated(ctx context.Context, item *Item) error {
	return nil
}

func (n *NoopEventSink) ItemUpdated(ctx context.Context, item *Item) error {
	return nil
}

func (n *NoopEventSink) ItemDeleted(ctx context.Context, itemID uuid.UUID) error {
	return nil
}

func (n *NoopEventSink) ItemExported(ctx context.Context, export *ExportResult) error {
	return nil
}

func (n *NoopEventSink) ItemImported(ctx context.Context, item *Item, warnings []UnmappedElementWarning) error {
	return nil
}

// LogEventSink writes every event to a structured logger.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink creates an event sink logging at info level. A nil
// logger uses slog.Default().
func NewLogEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger}
}

func (l *LogEventSink) ItemCreated(ctx context.Context, item *Item) error {
	l.logger.InfoContext(ctx, "Item created", "item_id", item.ID, "type", item.TypeName)
	return nil
}

func (l *LogEventSink) ItemUpdated(ctx context.Context, item *Item) error {
	l.logger.InfoContext(ctx, "Item updated", "item_id", item.ID, "type", item.TypeName)
	return nil
}

func (l *LogEventSink) ItemDeleted(ctx context.Context, itemID uuid.UUID) error {
	l.logger.InfoContext(ctx, "Item deleted", "item_id", itemID)
	return nil
}

func (l *LogEventSink) ItemExported(ctx context.Context, export *ExportResult) error {
	l.logger.InfoContext(ctx, "Item exported",
		"item_id", export.ItemID,
		"key", export.Key,
		"size", export.Size,
		"digest", export.Digest,
		"compressed", export.Compressed,
	)
	return nil
}

func (l *LogEventSink) ItemImported(ctx context.Context, item *Item, warnings []UnmappedElementWarning) error {
	l.logger.InfoContext(ctx, "Item imported", "item_id", item.ID, "type", item.TypeName, "warnings", len(warnings))
	return nil
}
