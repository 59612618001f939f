package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-marshall/pkg/marshall"
)

// Scanner lists items and processes them with the provided processor.
type Scanner struct {
	svc    marshall.Service
	logger *slog.Logger
}

// New creates a new Scanner instance. A nil logger uses slog.Default.
func New(svc marshall.Service, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{svc: svc, logger: logger}
}

// ScanOptions configures the scan operation.
type ScanOptions struct {
	// TypeName restricts the scan to one content type. Empty scans all types.
	TypeName string

	// Processor defines the processing logic (required unless DryRun is true)
	Processor ItemProcessor

	// Limit caps the number of items processed. Zero means no limit.
	Limit int

	// DryRun if true, doesn't process items, just reports what would be processed
	DryRun bool

	// OnProgress is called after each item is processed (optional)
	OnProgress func(processed, total int64)
}

// ScanResult contains statistics about the scan operation.
type ScanResult struct {
	TotalFound     int64    `json:"total_found"`
	TotalProcessed int64    `json:"total_processed"`
	TotalFailed    int64    `json:"total_failed"`
	FailedIDs      []string `json:"failed_ids,omitempty"`
}

// Scan lists items matching the options and processes each one. A failing
// item is recorded and scanning continues; a cancelled context stops the
// scan and returns the partial result with the context error.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}

	if !opts.DryRun && opts.Processor == nil {
		return result, fmt.Errorf("processor is required when DryRun is false")
	}

	items, err := s.svc.ListItems(ctx, marshall.ListItemsRequest{TypeName: opts.TypeName})
	if err != nil {
		return result, fmt.Errorf("failed to list items: %w", err)
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	result.TotalFound = int64(len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if opts.DryRun {
			s.logger.Info("Dry run: would process item", "item_id", item.ID, "type", item.TypeName)
			result.TotalProcessed++
			continue
		}

		if err := opts.Processor.Process(ctx, item); err != nil {
			result.TotalFailed++
			result.FailedIDs = append(result.FailedIDs, item.ID.String())
			s.logger.Warn("Failed to process item", "item_id", item.ID, "type", item.TypeName, "error", err)
		} else {
			result.TotalProcessed++
		}

		if opts.OnProgress != nil {
			opts.OnProgress(result.TotalProcessed+result.TotalFailed, result.TotalFound)
		}
	}

	return result, nil
}

// ForEach processes each item of typeName with fn.
func (s *Scanner) ForEach(ctx context.Context, typeName string, fn func(context.Context, *marshall.Item) error) (*ScanResult, error) {
	return s.Scan(ctx, ScanOptions{
		TypeName:  typeName,
		Processor: &funcProcessor{fn: fn},
	})
}

// funcProcessor adapts a function to the ItemProcessor interface.
type funcProcessor struct {
	fn func(context.Context, *marshall.Item) error
}

func (p *funcProcessor) Process(ctx context.Context, item *marshall.Item) error {
	return p.fn(ctx, item)
}
