package marshall

import (
	"bytes"
	"fmt"
)

// ItemCodec stores items as their XML document.
type ItemCodec struct {
	assembler *Assembler
	catalog   Catalog
}

// NewItemCodec creates a codec resolving schemas through catalog.
func NewItemCodec(registry *Registry, catalog Catalog) *ItemCodec {
	return &ItemCodec{assembler: NewAssembler(registry), catalog: catalog}
}

func (c *ItemCodec) EncodeItem(item *Item) ([]byte, error) {
	return c.assembler.Marshal(item)
}

// DecodeItem rebuilds an item of typeName from data. Elements the current
// schema no longer declares are dropped. Identity and timestamps are left
// for the caller to fill in.
func (c *ItemCodec) DecodeItem(typeName string, data []byte) (*Item, error) {
	schema, err := c.catalog.Get(typeName)
	if err != nil {
		return nil, err
	}
	item := NewItem(typeName, schema)
	if _, err := c.assembler.Unmarshal(bytes.NewReader(data), item); err != nil {
		return nil, fmt.Errorf("failed to decode %s document: %w", typeName, err)
	}
	return item, nil
}
