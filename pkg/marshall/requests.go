package marshall

import (
	"io"

	"github.com/google/uuid"
)

// CreateItemRequest contains parameters for creating an item
type CreateItemRequest struct {
	TypeName string
	Values   map[string]any
}

// UpdateItemRequest contains parameters for updating an item. Only the
// fields present in Values are changed.
type UpdateItemRequest struct {
	ID     uuid.UUID
	Values map[string]any
}

// ListItemsRequest contains parameters for listing items. An empty
// TypeName lists every type.
type ListItemsRequest struct {
	TypeName string
}

// ImportItemRequest contains parameters for applying a document. With a
// zero ID a new item of TypeName is created; otherwise the document is
// applied onto the existing item.
type ImportItemRequest struct {
	ID       uuid.UUID
	TypeName string
	Document io.Reader
}

// ExportResult describes a rendered and stored export.
type ExportResult struct {
	ItemID     uuid.UUID `json:"item_id"`
	TypeName   string    `json:"type_name"`
	Key        string    `json:"key,omitempty"`
	Data       []byte    `json:"-"`
	Digest     string    `json:"digest"`
	Size       int64     `json:"size"`
	Compressed bool      `json:"compressed"`
}

// ImportResult is the outcome of applying a document.
type ImportResult struct {
	Item     *Item                    `json:"-"`
	Warnings []UnmappedElementWarning `json:"-"`
}
