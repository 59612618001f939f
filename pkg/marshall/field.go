package marshall

import (
	"fmt"
	"sort"
	"strings"
)

// FieldKind is the closed set of field types the marshaling layer understands.
type FieldKind int

// Field kinds. KindCount must stay last.
const (
	KindText FieldKind = iota
	KindString
	KindFile
	KindImage
	KindList
	KindBoolean
	KindDateTime
	KindReference
	KindCount
)

var fieldKindNames = [KindCount]string{
	KindText:      "text",
	KindString:    "string",
	KindFile:      "file",
	KindImage:     "image",
	KindList:      "list",
	KindBoolean:   "boolean",
	KindDateTime:  "datetime",
	KindReference: "reference",
}

// AllKinds returns every field kind in declaration order.
func AllKinds() []FieldKind {
	kinds := make([]FieldKind, 0, KindCount)
	for k := FieldKind(0); k < KindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k is one of the declared kinds.
func (k FieldKind) Valid() bool {
	return k >= 0 && k < KindCount
}

func (k FieldKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return fieldKindNames[k]
}

// ParseFieldKind parses the lower-case kind name used in schema files.
func ParseFieldKind(s string) (FieldKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range fieldKindNames {
		if n == name {
			return FieldKind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFieldKind, s)
}

// FieldDescriptor describes one field of a content schema.
//
// Namespace is the URI the field is marshaled under; an empty Namespace
// means the registry's default namespace. ContentType is only meaningful
// for Text fields (e.g. "text/html").
type FieldDescriptor struct {
	Name        string
	Kind        FieldKind
	SchemaOrder int
	Namespace   string
	ContentType string
}

// Blob is the value type of File and Image fields.
type Blob struct {
	Data        []byte `json:"data" yaml:"data"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Filename    string `json:"filename,omitempty" yaml:"filename,omitempty"`
}

// Schema is the ordered list of fields a content type declares.
type Schema []FieldDescriptor

// NewSchema builds a schema from descriptors, assigning SchemaOrder from
// argument position.
func NewSchema(fields ...FieldDescriptor) Schema {
	s := make(Schema, len(fields))
	for i, f := range fields {
		f.SchemaOrder = i
		s[i] = f
	}
	return s
}

// Ordered returns a copy of the schema sorted by SchemaOrder.
func (s Schema) Ordered() Schema {
	out := append(Schema(nil), s...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SchemaOrder < out[j].SchemaOrder
	})
	return out
}

// Field returns the descriptor with the given name.
func (s Schema) Field(name string) (FieldDescriptor, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Lookup resolves a qualified tag to a descriptor. defaultNS is substituted
// for descriptors that declare no namespace.
func (s Schema) Lookup(tag QualifiedTag, defaultNS string) (FieldDescriptor, bool) {
	for _, f := range s {
		ns := f.Namespace
		if ns == "" {
			ns = defaultNS
		}
		if f.Name == tag.Local && ns == tag.Namespace {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}
