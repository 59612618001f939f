package scan

import (
	"context"

	"github.com/tendant/simple-marshall/pkg/marshall"
)

// ItemProcessor processes individual items.
//
// Example implementations:
//   - Exporter (re-renders and stores every item's document)
//   - Validator (checks that every item still marshals)
//   - Event emitter (replays item events to a message queue)
type ItemProcessor interface {
	// Process is called for each item found during scan.
	// Return error to mark this item as failed (scan continues with next item).
	Process(ctx context.Context, item *marshall.Item) error
}

// ExportProcessor re-exports each item, writing its document to the
// service's export store.
type ExportProcessor struct {
	Service marshall.Service
}

func (p *ExportProcessor) Process(ctx context.Context, item *marshall.Item) error {
	_, err := p.Service.ExportItem(ctx, item.ID)
	return err
}
