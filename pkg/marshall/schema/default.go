package schema

import (
	"bytes"
	_ "embed"

	"github.com/tendant/simple-marshall/pkg/marshall"
)

//go:embed default.yaml
var defaultTypes []byte

// Default loads the built-in content types: Document, News Item, File and
// Image. registry must bind the dc and xmp prefixes.
func Default(registry *marshall.Registry) (*Catalog, error) {
	return Load(bytes.NewReader(defaultTypes), registry)
}
