package marshall

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Object is a content object the assembler can read and write: an ordered
// schema plus per-field accessors.
type Object interface {
	Schema() Schema
	Get(field string) (any, bool)
	Set(field string, value any) error
}

// Item is the stock map-backed Object.
type Item struct {
	ID        uuid.UUID
	TypeName  string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time

	schema Schema
	values map[string]any
}

// NewItem creates an empty item of the given content type.
func NewItem(typeName string, schema Schema) *Item {
	return &Item{
		ID:       uuid.New(),
		TypeName: typeName,
		schema:   schema,
		values:   make(map[string]any),
	}
}

func (i *Item) Schema() Schema {
	return i.schema
}

func (i *Item) Get(field string) (any, bool) {
	v, ok := i.values[field]
	return v, ok
}

// Set assigns a field value. Only fields declared by the schema are accepted.
func (i *Item) Set(field string, value any) error {
	if _, ok := i.schema.Field(field); !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, i.TypeName, field)
	}
	if i.values == nil {
		i.values = make(map[string]any)
	}
	i.values[field] = value
	return nil
}

// Values returns a copy of the field values.
func (i *Item) Values() map[string]any {
	out := make(map[string]any, len(i.values))
	for k, v := range i.values {
		out[k] = copyValue(v)
	}
	return out
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	c := *i
	c.values = i.Values()
	if i.DeletedAt != nil {
		t := *i.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// EmptyClone returns an item with the same identity and schema but no values.
func (i *Item) EmptyClone() *Item {
	c := i.Clone()
	c.values = make(map[string]any)
	return c
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case Blob:
		t.Data = append([]byte(nil), t.Data...)
		return t
	case []byte:
		return append([]byte(nil), t...)
	}
	return v
}
