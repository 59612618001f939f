package marshall

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-marshall library
type Service interface {
	// Item operations
	CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	UpdateItem(ctx context.Context, req UpdateItemRequest) (*Item, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	ListItems(ctx context.Context, req ListItemsRequest) ([]*Item, error)

	// Document operations
	ExportItem(ctx context.Context, id uuid.UUID) (*ExportResult, error)
	DownloadExport(ctx context.Context, id uuid.UUID) (io.ReadCloser, error)
	ImportItem(ctx context.Context, req ImportItemRequest) (*ImportResult, error)

	// Introspection
	Namespaces() []NamespaceBinding
	TypeNames() []string
	Schema(typeName string) (Schema, error)
}
