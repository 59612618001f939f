package marshall

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrDuplicateNamespace indicates a namespace URI is already bound to a different binding
	ErrDuplicateNamespace = errors.New("duplicate namespace")

	// ErrNamespaceNotFound indicates a namespace URI is not registered
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrRegistryFinalized indicates a registration was attempted after Finalize
	ErrRegistryFinalized = errors.New("namespace registry is finalized")

	// ErrMalformedTag indicates a qualified tag is not of the form {uri}local
	ErrMalformedTag = errors.New("malformed qualified tag")

	// ErrUnsupportedFieldKind indicates no marshaler is registered for a field kind
	ErrUnsupportedFieldKind = errors.New("unsupported field kind")

	// ErrMalformedFragment indicates an XML fragment does not match the field it is decoded for
	ErrMalformedFragment = errors.New("malformed fragment")

	// ErrInvalidValue indicates a field value has the wrong type for its kind
	ErrInvalidValue = errors.New("invalid field value")

	// ErrUnknownField indicates a field name is not declared by the schema
	ErrUnknownField = errors.New("unknown field")

	// ErrItemNotFound indicates an item was not found
	ErrItemNotFound = errors.New("item not found")

	// ErrTypeNotFound indicates a content type is not present in the catalog
	ErrTypeNotFound = errors.New("content type not found")

	// ErrExportNotFound indicates no stored export exists for an item
	ErrExportNotFound = errors.New("export not found")

	// ErrBlobNotFound indicates a blob store key does not exist
	ErrBlobNotFound = errors.New("object not found")
)

// FieldError represents a failure to marshal or unmarshal a single field
type FieldError struct {
	Field string
	Op    string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field operation %s failed for field %s: %v", e.Op, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ItemError represents an error related to item operations
type ItemError struct {
	ItemID uuid.UUID
	Op     string
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item operation %s failed for item %s: %v", e.Op, e.ItemID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// UnmappedElementWarning reports a document element whose tag resolves to
// no field of the target schema. It is collected, never returned as a
// hard error.
type UnmappedElementWarning struct {
	Tag QualifiedTag
}

func (w UnmappedElementWarning) Error() string {
	return fmt.Sprintf("unmapped element %s", w.Tag)
}
