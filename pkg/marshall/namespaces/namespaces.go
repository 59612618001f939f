// Package namespaces provides the stock namespace bindings: Archetypes
// native fields, Dublin Core, Adobe XMP and CMF workflow metadata.
package namespaces

import (
	"fmt"

	"github.com/tendant/simple-marshall/pkg/marshall"
)

// Namespace URIs and prefixes.
const (
	ArchetypesURI    = "http://plone.org/ns/archetypes/"
	ArchetypesPrefix = "archetypes"

	DublinCoreURI    = "http://purl.org/dc/elements/1.1/"
	DublinCorePrefix = "dc"

	XMPURI    = "http://ns.adobe.com/xap/1.0/"
	XMPPrefix = "xmp"

	CMFURI    = "http://cmf.zope.org/namespaces/default/"
	CMFPrefix = "cmf"
)

type options struct {
	sanitizeHTML bool
}

// Option configures the default registry.
type Option func(*options)

// WithSanitizedHTML cleans text/html Text fields as they are unmarshaled.
func WithSanitizedHTML() Option {
	return func(o *options) {
		o.sanitizeHTML = true
	}
}

// Archetypes binds the native field namespace. It declares every field kind.
func Archetypes(opts ...Option) marshall.NamespaceBinding {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	handlers := marshall.DefaultMarshalers()
	if o.sanitizeHTML {
		handlers[marshall.KindText] = &marshall.TextMarshaler{Sanitize: true}
	}
	return marshall.NamespaceBinding{
		URI:      ArchetypesURI,
		Prefix:   ArchetypesPrefix,
		Handlers: handlers,
	}
}

// DublinCore binds the Dublin Core element set. It declares no handlers of
// its own; its fields are marshaled by kind.
func DublinCore() marshall.NamespaceBinding {
	return marshall.NamespaceBinding{URI: DublinCoreURI, Prefix: DublinCorePrefix}
}

// XMP binds Adobe XMP basic properties.
func XMP() marshall.NamespaceBinding {
	return marshall.NamespaceBinding{URI: XMPURI, Prefix: XMPPrefix}
}

// CMF binds workflow and identity metadata.
func CMF() marshall.NamespaceBinding {
	return marshall.NamespaceBinding{URI: CMFURI, Prefix: CMFPrefix}
}

// Default builds and finalizes the stock registry. CMF is registered last
// so workflow fields are written and applied after generic content.
func Default(opts ...Option) (*marshall.Registry, error) {
	reg := marshall.NewRegistry()
	for _, b := range []marshall.NamespaceBinding{
		Archetypes(opts...),
		DublinCore(),
		XMP(),
		CMF(),
	} {
		if err := reg.RegisterNamespace(b); err != nil {
			return nil, fmt.Errorf("failed to register namespace %s: %w", b.URI, err)
		}
	}
	reg.Finalize()
	return reg, nil
}

// DublinCoreFields returns descriptors for the commonly used Dublin Core
// elements. SchemaOrder is left for the caller's schema to assign.
func DublinCoreFields() []marshall.FieldDescriptor {
	return []marshall.FieldDescriptor{
		{Name: "title", Kind: marshall.KindString, Namespace: DublinCoreURI},
		{Name: "description", Kind: marshall.KindText, Namespace: DublinCoreURI},
		{Name: "subject", Kind: marshall.KindList, Namespace: DublinCoreURI},
		{Name: "creator", Kind: marshall.KindList, Namespace: DublinCoreURI},
		{Name: "contributor", Kind: marshall.KindList, Namespace: DublinCoreURI},
		{Name: "rights", Kind: marshall.KindText, Namespace: DublinCoreURI},
		{Name: "language", Kind: marshall.KindString, Namespace: DublinCoreURI},
		{Name: "date", Kind: marshall.KindDateTime, Namespace: DublinCoreURI},
	}
}

// WorkflowFields returns descriptors for CMF workflow and identity fields.
func WorkflowFields() []marshall.FieldDescriptor {
	return []marshall.FieldDescriptor{
		{Name: "review_state", Kind: marshall.KindString, Namespace: CMFURI},
		{Name: "owner", Kind: marshall.KindString, Namespace: CMFURI},
		{Name: "modification_date", Kind: marshall.KindDateTime, Namespace: CMFURI},
	}
}
