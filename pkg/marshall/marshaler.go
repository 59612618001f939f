package marshall

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Marshaler converts the value of one field kind to and from an element.
// The dispatcher creates the element and checks its name; a Marshaler only
// deals with attributes and content.
type Marshaler interface {
	// MarshalField fills el from value.
	MarshalField(field FieldDescriptor, value any, el *Element) error

	// UnmarshalField returns the value encoded in el.
	UnmarshalField(field FieldDescriptor, el *Element) (any, error)

	// IsEmpty reports whether value is the kind's empty sentinel.
	IsEmpty(value any) bool
}

// Attribute names written by the stock marshalers.
const (
	AttrContentType = "content-type"
	AttrSize        = "size"
	AttrFilename    = "filename"
	AttrEncoding    = "encoding"

	// ListItemElement is the local name of each nested list entry.
	ListItemElement = "item"

	// DateTimeLayout is the canonical DateTime representation.
	DateTimeLayout = time.RFC3339Nano
)

// DefaultMarshalers returns one marshaler per field kind.
func DefaultMarshalers() map[FieldKind]Marshaler {
	blob := &BlobMarshaler{}
	return map[FieldKind]Marshaler{
		KindText:      &TextMarshaler{},
		KindString:    &StringMarshaler{},
		KindFile:      blob,
		KindImage:     blob,
		KindList:      &ListMarshaler{},
		KindBoolean:   &BooleanMarshaler{},
		KindDateTime:  &DateTimeMarshaler{},
		KindReference: &ReferenceMarshaler{},
	}
}

func invalidValue(field FieldDescriptor, value any) error {
	return fmt.Errorf("%w: %s field %s cannot hold %T", ErrInvalidValue, field.Kind, field.Name, value)
}

// checkText rejects strings XML cannot carry unchanged: invalid UTF-8 and
// runes outside the XML Char production.
func checkText(field FieldDescriptor, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: field %s holds invalid UTF-8", ErrInvalidValue, field.Name)
	}
	for i, r := range s {
		if !isXMLChar(r) {
			return fmt.Errorf("%w: field %s holds %U at byte %d, which XML cannot represent", ErrInvalidValue, field.Name, r, i)
		}
	}
	return nil
}

func isXMLChar(r rune) bool {
	switch {
	case r == 0x09, r == 0x0A, r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

func malformed(field FieldDescriptor, format string, args ...any) error {
	return fmt.Errorf("%w: field %s: %s", ErrMalformedFragment, field.Name, fmt.Sprintf(format, args...))
}

// TextMarshaler handles rich text. When Sanitize is set, text/html values
// are cleaned with a UGC policy as they are read back from a document.
type TextMarshaler struct {
	Sanitize bool
}

var (
	htmlPolicyOnce sync.Once
	htmlPolicy     *bluemonday.Policy
)

func htmlSanitizer() *bluemonday.Policy {
	htmlPolicyOnce.Do(func() {
		htmlPolicy = bluemonday.UGCPolicy()
	})
	return htmlPolicy
}

func (m *TextMarshaler) MarshalField(field FieldDescriptor, value any, el *Element) error {
	s, ok := value.(string)
	if !ok {
		return invalidValue(field, value)
	}
	if err := checkText(field, s); err != nil {
		return err
	}
	if field.ContentType != "" {
		el.SetAttr(AttrContentType, field.ContentType)
	}
	el.Text = s
	return nil
}

func (m *TextMarshaler) UnmarshalField(field FieldDescriptor, el *Element) (any, error) {
	if len(el.Children) > 0 {
		return nil, malformed(field, "text element has nested elements")
	}
	contentType := field.ContentType
	if ct, ok := el.Attr(AttrContentType); ok {
		contentType = ct
	}
	if m.Sanitize && isHTMLText(field, contentType) {
		return htmlSanitizer().Sanitize(el.Text), nil
	}
	return el.Text, nil
}

func isHTMLText(field FieldDescriptor, contentType string) bool {
	return field.Kind == KindText && strings.HasPrefix(contentType, "text/html")
}

func (m *TextMarshaler) IsEmpty(value any) bool {
	s, ok := value.(string)
	return ok && s == ""
}

// StringMarshaler handles single-line strings.
type StringMarshaler struct{}

func (m *StringMarshaler) MarshalField(field FieldDescriptor, value any, el *Element) error {
	s, ok := value.(string)
	if !ok {
		return invalidValue(field, value)
	}
	if err := checkText(field, s); err != nil {
		return err
	}
	el.Text = s
	return nil
}

func (m *StringMarshaler) UnmarshalField(field FieldDescriptor, el *Element) (any, error) {
	if len(el.Children) > 0 {
		return nil, malformed(field, "string element has nested elements")
	}
	return el.Text, nil
}

func (m *StringMarshaler) IsEmpty(value any) bool {
	s, ok := value.(string)
	return ok && s == ""
}

// BlobMarshaler handles File and Image fields as base64 payloads.
type BlobMarshaler struct{}

func (m *BlobMarshaler) MarshalField(field FieldDescriptor, value any, el *Element) error {
	blob, ok := asBlob(value)
	if !ok {
		return invalidValue(field, value)
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := checkText(field, contentType); err != nil {
		return err
	}
	if err := checkText(field, blob.Filename); err != nil {
		return err
	}
	el.SetAttr(AttrContentType, contentType)
	el.SetAttr(AttrSize, strconv.Itoa(len(blob.Data)))
	if blob.Filename != "" {
		el.SetAttr(AttrFilename, blob.Filename)
	}
	el.SetAttr(AttrEncoding, "base64")
	el.Text = base64.StdEncoding.EncodeToString(blob.Data)
	return nil
}

func (m *BlobMarshaler) UnmarshalField(field FieldDescriptor, el *Element) (any, error) {
	if enc, ok := el.Attr(AttrEncoding); ok && enc != "base64" {
		return nil, malformed(field, "unsupported encoding %q", enc)
	}
	payload := strings.Join(strings.Fields(el.Text), "")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, malformed(field, "invalid base64 payload: %v", err)
	}
	if raw, ok := el.Attr(AttrSize); ok {
		size, err := strconv.Atoi(raw)
		if err != nil || size != len(data) {
			return nil, malformed(field, "size attribute %q does not match payload of %d bytes", raw, len(data))
		}
	}
	blob := Blob{Data: data}
	blob.ContentType, _ = el.Attr(AttrContentType)
	blob.Filename, _ = el.Attr(AttrFilename)
	return blob, nil
}

func (m *BlobMarshaler) IsEmpty(value any) bool {
	blob, ok := asBlob(value)
	return ok && len(blob.Data) == 0
}

func asBlob(value any) (Blob, bool) {
	switch v := value.(type) {
	case Blob:
		return v, true
	case *Blob:
		if v == nil {
			return Blob{}, true
		}
		return *v, true
	case []byte:
		return Blob{Data: v}, true
	}
	return Blob{}, false
}

// ListMarshaler writes each list entry verbatim as a nested item element.
type ListMarshaler struct{}

func (m *ListMarshaler) MarshalField(field FieldDescriptor, value any, el *Element) error {
	items, ok := value.([]string)
	if !ok {
		return invalidValue(field, value)
	}
	for _, item := range items {
		if err := checkText(field, item); err != nil {
			return err
		}
		el.Children = append(el.Children, &Element{
			Name: QualifiedTag{Local: ListItemElement, Namespace: el.Name.Namespace},
			Text: item,
		})
	}
	return nil
}

func (m *ListMarshaler) UnmarshalField(field FieldDescriptor, el *Element) (any, error) {
	if strings.TrimSpace(el.Text) != "" {
		return nil, malformed(field, "list element has text outside item elements")
	}
	items := make([]string, 0, len(el.Children))
	for _, child := range el.Children {
		if child.Name.Local != ListItemElement {
			return nil, malformed(field, "unexpected list entry %s", child.Name)
		}
		items = append(items, child.Text)
	}
	return items, nil
}

func (m *ListMarshaler) IsEmpty(value any) bool {
	items, ok := value.([]string)
	return ok && len(items) == 0
}

// BooleanMarshaler writes true or false.
type BooleanMarshaler struct{}

func (m *BooleanMarshaler) MarshalField(field FieldDescriptor, value any, el *Element) error {
	b, ok := value.(bool)
	if !ok {
		return invalidValue(field, value)
	}
	el.Text = strconv.FormatBool(b)
	return nil
}

func (m *BooleanMarshaler) UnmarshalField(field FieldDescriptor, el *Element) (any, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(el.Text))
	if err != nil {
		return nil, malformed(field, "invalid boolean %q", el.Text)
	}
	return b, nil
}

func (m *BooleanMarshaler) IsEmpty(value any) bool {
	b, ok := value.(bool)
	return ok && !b
}

// DateTimeMarshaler writes RFC 3339 timestamps in UTC.
type DateTimeMarshaler struct{}

func (m *DateTimeMarshaler) MarshalField(field FieldDescriptor, value any, el *Element) error {
	t, ok := value.(time.Time)
	if !ok {
		return invalidValue(field, value)
	}
	el.Text = t.UTC().Format(DateTimeLayout)
	return nil
}

func (m *DateTimeMarshaler) UnmarshalField(field FieldDescriptor, el *Element) (any, error) {
	t, err := time.Parse(DateTimeLayout, strings.TrimSpace(el.Text))
	if err != nil {
		return nil, malformed(field, "invalid datetime %q", el.Text)
	}
	return t.UTC(), nil
}

func (m *DateTimeMarshaler) IsEmpty(value any) bool {
	t, ok := value.(time.Time)
	return ok && t.IsZero()
}

// ReferenceMarshaler writes the UID of the referenced object verbatim.
type ReferenceMarshaler struct{}

func (m *ReferenceMarshaler) MarshalField(field FieldDescriptor, value any, el *Element) error {
	uid, ok := value.(string)
	if !ok {
		return invalidValue(field, value)
	}
	if err := checkText(field, uid); err != nil {
		return err
	}
	el.Text = uid
	return nil
}

func (m *ReferenceMarshaler) UnmarshalField(field FieldDescriptor, el *Element) (any, error) {
	if len(el.Children) > 0 {
		return nil, malformed(field, "reference element has nested elements")
	}
	return el.Text, nil
}

func (m *ReferenceMarshaler) IsEmpty(value any) bool {
	s, ok := value.(string)
	return ok && s == ""
}
