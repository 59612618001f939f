package marshall

import (
	"fmt"
	"io"
	"sort"
)

// Assembler marshals whole content objects to documents and back.
type Assembler struct {
	registry   *Registry
	dispatcher *Dispatcher
	resolver   *TagResolver
}

// NewAssembler creates an assembler over registry.
func NewAssembler(registry *Registry) *Assembler {
	return &Assembler{
		registry:   registry,
		dispatcher: NewDispatcher(registry),
		resolver:   NewTagResolver(registry),
	}
}

// Registry returns the namespace registry the assembler marshals with.
func (a *Assembler) Registry() *Registry {
	return a.registry
}

// Resolver returns the tag resolver used to render element names.
func (a *Assembler) Resolver() *TagResolver {
	return a.resolver
}

// Dispatcher returns the field marshaler dispatcher.
func (a *Assembler) Dispatcher() *Dispatcher {
	return a.dispatcher
}

// precedence keeps schema order and moves the fields of the workflow
// namespace behind all others.
func (a *Assembler) precedence(fields Schema) Schema {
	out := fields.Ordered()
	workflow := a.registry.WorkflowNamespace()
	if workflow == "" {
		return out
	}
	isWorkflow := func(f FieldDescriptor) bool {
		return a.dispatcher.QualifiedName(f).Namespace == workflow
	}
	sort.SliceStable(out, func(i, j int) bool {
		return !isWorkflow(out[i]) && isWorkflow(out[j])
	})
	return out
}

// ToDocument marshals every non-empty field of obj. Fields are written in
// schema order, except that workflow namespace fields come last.
func (a *Assembler) ToDocument(obj Object) (*Document, error) {
	doc := &Document{Root: RootElement}
	for _, b := range a.registry.Namespaces() {
		if b.Prefix != "" {
			doc.Namespaces = append(doc.Namespaces, NamespaceDecl{Prefix: b.Prefix, URI: b.URI})
		}
	}

	for _, field := range a.precedence(obj.Schema()) {
		value, ok := obj.Get(field.Name)
		if !ok {
			continue
		}
		empty, err := a.dispatcher.IsEmpty(field, value)
		if err != nil {
			return nil, &FieldError{Field: field.Name, Op: "serialize", Err: err}
		}
		if empty {
			continue
		}
		el, err := a.dispatcher.Serialize(field, value)
		if err != nil {
			return nil, err
		}
		doc.Elements = append(doc.Elements, el)
	}
	return doc, nil
}

// Marshal encodes obj as an XML document.
func (a *Assembler) Marshal(obj Object) ([]byte, error) {
	doc, err := a.ToDocument(obj)
	if err != nil {
		return nil, err
	}
	return doc.Bytes(a.resolver)
}

// Encode writes doc using the assembler's tag resolver.
func (a *Assembler) Encode(w io.Writer, doc *Document) error {
	return doc.Encode(w, a.resolver)
}

// FromDocument applies the elements of doc onto target. Elements whose tag
// matches no schema field are returned as warnings. Any hard error aborts
// the call before target is modified.
func (a *Assembler) FromDocument(doc *Document, target Object) ([]UnmappedElementWarning, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrMalformedFragment)
	}
	if doc.Root != "" && doc.Root != RootElement {
		return nil, fmt.Errorf("%w: unexpected root element %q", ErrMalformedFragment, doc.Root)
	}

	schema := target.Schema()
	defaultNS := a.registry.DefaultNamespace()

	type assignment struct {
		field FieldDescriptor
		el    *Element
		value any
	}
	var (
		warnings []UnmappedElementWarning
		pending  []assignment
		matched  Schema
	)
	for _, el := range doc.Elements {
		field, ok := schema.Lookup(el.Name, defaultNS)
		if !ok {
			warnings = append(warnings, UnmappedElementWarning{Tag: el.Name})
			continue
		}
		pending = append(pending, assignment{field: field, el: el})
		matched = append(matched, field)
	}

	// apply in the same precedence the document was written in
	order := make(map[string]int, len(matched))
	for i, f := range a.precedence(matched) {
		if _, seen := order[f.Name]; !seen {
			order[f.Name] = i
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return order[pending[i].field.Name] < order[pending[j].field.Name]
	})

	for i := range pending {
		value, err := a.dispatcher.Deserialize(pending[i].field, pending[i].el)
		if err != nil {
			return nil, err
		}
		pending[i].value = value
	}
	for _, p := range pending {
		if err := target.Set(p.field.Name, p.value); err != nil {
			return nil, &FieldError{Field: p.field.Name, Op: "assign", Err: err}
		}
	}
	return warnings, nil
}

// Unmarshal parses an XML document from r and applies it onto target.
func (a *Assembler) Unmarshal(r io.Reader, target Object) ([]UnmappedElementWarning, error) {
	doc, err := ParseDocument(r)
	if err != nil {
		return nil, err
	}
	return a.FromDocument(doc, target)
}
