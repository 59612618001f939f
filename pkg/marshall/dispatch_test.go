package marshall_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-marshall/pkg/marshall"
	"github.com/tendant/simple-marshall/pkg/marshall/namespaces"
)

func newDispatcher(t *testing.T, opts ...namespaces.Option) *marshall.Dispatcher {
	t.Helper()
	reg, err := namespaces.Default(opts...)
	require.NoError(t, err)
	return marshall.NewDispatcher(reg)
}

func TestDispatcher_SerializeDeserialize(t *testing.T) {
	d := newDispatcher(t)
	when := time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)

	tests := []struct {
		name  string
		field marshall.FieldDescriptor
		value any
		text  string
		attrs map[string]string
	}{
		{
			name:  "string",
			field: marshall.FieldDescriptor{Name: "title", Kind: marshall.KindString, Namespace: namespaces.DublinCoreURI},
			value: "Fish & <Chips>",
			text:  "Fish & <Chips>",
		},
		{
			name:  "text with content type",
			field: marshall.FieldDescriptor{Name: "body", Kind: marshall.KindText, ContentType: "text/html"},
			value: "<p>Hello</p>",
			text:  "<p>Hello</p>",
			attrs: map[string]string{marshall.AttrContentType: "text/html"},
		},
		{
			name:  "boolean",
			field: marshall.FieldDescriptor{Name: "excludeFromNav", Kind: marshall.KindBoolean},
			value: true,
			text:  "true",
		},
		{
			name:  "datetime",
			field: marshall.FieldDescriptor{Name: "date", Kind: marshall.KindDateTime, Namespace: namespaces.DublinCoreURI},
			value: when,
			text:  "2024-03-01T12:30:00.0000005Z",
		},
		{
			name:  "reference",
			field: marshall.FieldDescriptor{Name: "relatedItems", Kind: marshall.KindReference},
			value: "a1b2c3",
			text:  "a1b2c3",
		},
		{
			name:  "reference kept verbatim",
			field: marshall.FieldDescriptor{Name: "relatedItems", Kind: marshall.KindReference},
			value: " uid-1 ",
			text:  " uid-1 ",
		},
		{
			name:  "file",
			field: marshall.FieldDescriptor{Name: "file", Kind: marshall.KindFile},
			value: marshall.Blob{Data: []byte("hello"), ContentType: "text/plain", Filename: "hello.txt"},
			text:  "aGVsbG8=",
			attrs: map[string]string{
				marshall.AttrContentType: "text/plain",
				marshall.AttrSize:        "5",
				marshall.AttrFilename:    "hello.txt",
				marshall.AttrEncoding:    "base64",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := d.Serialize(tt.field, tt.value)
			require.NoError(t, err)
			assert.Equal(t, d.QualifiedName(tt.field), el.Name)
			assert.Equal(t, tt.text, el.Text)
			for k, v := range tt.attrs {
				got, ok := el.Attr(k)
				assert.True(t, ok, "missing attribute %s", k)
				assert.Equal(t, v, got)
			}

			back, err := d.Deserialize(tt.field, el)
			require.NoError(t, err)
			if ts, ok := tt.value.(time.Time); ok {
				assert.True(t, ts.Equal(back.(time.Time)))
				return
			}
			assert.Equal(t, tt.value, back)
		})
	}
}

func TestDispatcher_ListPassesThrough(t *testing.T) {
	d := newDispatcher(t)
	field := marshall.FieldDescriptor{Name: "subject", Kind: marshall.KindList, Namespace: namespaces.DublinCoreURI}
	values := []string{"b", "a", " 42 ", ""}

	el, err := d.Serialize(field, values)
	require.NoError(t, err)
	require.Len(t, el.Children, len(values))
	for i, child := range el.Children {
		assert.Equal(t, marshall.ListItemElement, child.Name.Local)
		assert.Equal(t, values[i], child.Text)
	}

	back, err := d.Deserialize(field, el)
	require.NoError(t, err)
	assert.Equal(t, values, back)
}

func TestDispatcher_DefaultNamespace(t *testing.T) {
	d := newDispatcher(t)
	tag := d.QualifiedName(marshall.FieldDescriptor{Name: "body", Kind: marshall.KindText})
	assert.Equal(t, namespaces.ArchetypesURI, tag.Namespace)
}

func TestDispatcher_Errors(t *testing.T) {
	d := newDispatcher(t)
	title := marshall.FieldDescriptor{Name: "title", Kind: marshall.KindString, Namespace: namespaces.DublinCoreURI}

	t.Run("tag mismatch", func(t *testing.T) {
		el := &marshall.Element{Name: marshall.QualifiedTag{Local: "subject", Namespace: namespaces.DublinCoreURI}, Text: "x"}
		_, err := d.Deserialize(title, el)
		assert.ErrorIs(t, err, marshall.ErrMalformedFragment)

		var fieldErr *marshall.FieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "title", fieldErr.Field)
		assert.Equal(t, "deserialize", fieldErr.Op)
	})

	t.Run("namespace mismatch", func(t *testing.T) {
		el := &marshall.Element{Name: marshall.QualifiedTag{Local: "title", Namespace: namespaces.CMFURI}, Text: "x"}
		_, err := d.Deserialize(title, el)
		assert.ErrorIs(t, err, marshall.ErrMalformedFragment)
	})

	t.Run("invalid kind", func(t *testing.T) {
		field := marshall.FieldDescriptor{Name: "computed", Kind: marshall.FieldKind(99)}
		_, err := d.Serialize(field, "x")
		assert.ErrorIs(t, err, marshall.ErrUnsupportedFieldKind)
	})

	t.Run("no handler registered", func(t *testing.T) {
		reg := marshall.NewRegistry()
		reg.MustRegister(marshall.NamespaceBinding{URI: nsA, Prefix: "a", Handlers: map[marshall.FieldKind]marshall.Marshaler{
			marshall.KindString: &marshall.StringMarshaler{},
		}})
		bare := marshall.NewDispatcher(reg)

		field := marshall.FieldDescriptor{Name: "flag", Kind: marshall.KindBoolean}
		_, err := bare.Serialize(field, true)
		assert.ErrorIs(t, err, marshall.ErrUnsupportedFieldKind)

		el := &marshall.Element{Name: bare.QualifiedName(field), Text: "true"}
		_, err = bare.Deserialize(field, el)
		assert.ErrorIs(t, err, marshall.ErrUnsupportedFieldKind)
	})

	t.Run("wrong value type", func(t *testing.T) {
		_, err := d.Serialize(title, 42)
		assert.ErrorIs(t, err, marshall.ErrInvalidValue)
	})

	t.Run("bad payloads", func(t *testing.T) {
		cases := []struct {
			field marshall.FieldDescriptor
			el    *marshall.Element
		}{
			{marshall.FieldDescriptor{Name: "flag", Kind: marshall.KindBoolean}, &marshall.Element{Text: "maybe"}},
			{marshall.FieldDescriptor{Name: "when", Kind: marshall.KindDateTime}, &marshall.Element{Text: "yesterday"}},
			{marshall.FieldDescriptor{Name: "file", Kind: marshall.KindFile}, &marshall.Element{Text: "***"}},
		}
		for _, c := range cases {
			c.el.Name = d.QualifiedName(c.field)
			_, err := d.Deserialize(c.field, c.el)
			assert.ErrorIs(t, err, marshall.ErrMalformedFragment, c.field.Name)
		}
	})

	t.Run("list with bare text", func(t *testing.T) {
		field := marshall.FieldDescriptor{Name: "subject", Kind: marshall.KindList, Namespace: namespaces.DublinCoreURI}
		el := &marshall.Element{Name: d.QualifiedName(field), Text: "news"}
		_, err := d.Deserialize(field, el)
		assert.ErrorIs(t, err, marshall.ErrMalformedFragment)

		// whitespace alone is an empty list
		el.Text = "\n  "
		back, err := d.Deserialize(field, el)
		require.NoError(t, err)
		assert.Equal(t, []string{}, back)
	})

	t.Run("size mismatch", func(t *testing.T) {
		field := marshall.FieldDescriptor{Name: "image", Kind: marshall.KindImage}
		el, err := d.Serialize(field, marshall.Blob{Data: []byte("png"), ContentType: "image/png"})
		require.NoError(t, err)
		el.SetAttr(marshall.AttrSize, "10")
		_, err = d.Deserialize(field, el)
		assert.ErrorIs(t, err, marshall.ErrMalformedFragment)
	})
}

func TestDispatcher_RejectsCharactersXMLCannotCarry(t *testing.T) {
	d := newDispatcher(t)

	tests := []struct {
		name  string
		field marshall.FieldDescriptor
		value any
	}{
		{"string control char", marshall.FieldDescriptor{Name: "title", Kind: marshall.KindString}, "a\x01b"},
		{"string invalid utf8", marshall.FieldDescriptor{Name: "title", Kind: marshall.KindString}, "a\xffb"},
		{"text control char", marshall.FieldDescriptor{Name: "body", Kind: marshall.KindText}, "x\x00"},
		{"text noncharacter", marshall.FieldDescriptor{Name: "body", Kind: marshall.KindText}, "x\uFFFE"},
		{"reference control char", marshall.FieldDescriptor{Name: "related", Kind: marshall.KindReference}, "\x1b[0m"},
		{"list entry", marshall.FieldDescriptor{Name: "subject", Kind: marshall.KindList}, []string{"ok", "\xff"}},
		{"blob filename", marshall.FieldDescriptor{Name: "file", Kind: marshall.KindFile}, marshall.Blob{Data: []byte("x"), Filename: "a\x07.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Serialize(tt.field, tt.value)
			assert.ErrorIs(t, err, marshall.ErrInvalidValue)
		})
	}

	// tab, newline and carriage return are legal XML characters
	field := marshall.FieldDescriptor{Name: "body", Kind: marshall.KindText}
	_, err := d.Serialize(field, "line\tone\r\nline two \U0001F600")
	assert.NoError(t, err)
}

func TestDispatcher_IsEmpty(t *testing.T) {
	d := newDispatcher(t)

	tests := []struct {
		kind  marshall.FieldKind
		empty any
		full  any
	}{
		{marshall.KindText, "", "body"},
		{marshall.KindString, "", "title"},
		{marshall.KindFile, marshall.Blob{}, marshall.Blob{Data: []byte{0}}},
		{marshall.KindImage, marshall.Blob{ContentType: "image/png"}, marshall.Blob{Data: []byte{1}}},
		{marshall.KindList, []string{}, []string{"a"}},
		{marshall.KindBoolean, false, true},
		{marshall.KindDateTime, time.Time{}, time.Now()},
		{marshall.KindReference, "", "uid"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			field := marshall.FieldDescriptor{Name: "f", Kind: tt.kind}
			empty, err := d.IsEmpty(field, tt.empty)
			require.NoError(t, err)
			assert.True(t, empty)

			empty, err = d.IsEmpty(field, tt.full)
			require.NoError(t, err)
			assert.False(t, empty)

			empty, err = d.IsEmpty(field, nil)
			require.NoError(t, err)
			assert.True(t, empty)
		})
	}
}

func TestTextMarshaler_SanitizesHTML(t *testing.T) {
	d := newDispatcher(t, namespaces.WithSanitizedHTML())
	field := marshall.FieldDescriptor{Name: "body", Kind: marshall.KindText, ContentType: "text/html"}

	el, err := d.Serialize(field, `<p>Hi</p><script>alert(1)</script>`)
	require.NoError(t, err)

	back, err := d.Deserialize(field, el)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi</p>", back)

	plain := marshall.FieldDescriptor{Name: "notes", Kind: marshall.KindText}
	el, err = d.Serialize(plain, `<script>kept</script>`)
	require.NoError(t, err)
	back, err = d.Deserialize(plain, el)
	require.NoError(t, err)
	assert.Equal(t, `<script>kept</script>`, back)
}
