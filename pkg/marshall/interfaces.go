package marshall

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload stores the content of reader under key
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Download opens the content stored under key
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete deletes content
	Delete(ctx context.Context, key string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, key string) (*ObjectMeta, error)

	// GetDownloadURL returns a URL for downloading content
	GetDownloadURL(ctx context.Context, key string, downloadFilename string) (string, error)
}

// Repository defines the interface for item persistence
type Repository interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	ListItems(ctx context.Context, typeName string) ([]*Item, error)
}

// Catalog resolves content type names to schemas.
type Catalog interface {
	Get(typeName string) (Schema, error)
	Names() []string
}

// Codec converts items to and from their stored representation.
type Codec interface {
	EncodeItem(item *Item) ([]byte, error)
	DecodeItem(typeName string, data []byte) (*Item, error)
}

// EventSink defines the interface for event handling
type EventSink interface {
	// ItemCreated is fired when an item is created
	ItemCreated(ctx context.Context, item *Item) error

	// ItemUpdated is fired when an item is updated
	ItemUpdated(ctx context.Context, item *Item) error

	// ItemDeleted is fired when an item is deleted
	ItemDeleted(ctx context.Context, itemID uuid.UUID) error

	// ItemExported is fired when an export has been written
	ItemExported(ctx context.Context, export *ExportResult) error

	// ItemImported is fired when a document has been applied to an item
	ItemImported(ctx context.Context, item *Item, warnings []UnmappedElementWarning) error
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}
