package marshall_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-marshall/pkg/marshall"
	"github.com/tendant/simple-marshall/pkg/marshall/namespaces"
)

const unknownNS = "http://unknown.example/"

func newsItemSchema() marshall.Schema {
	return marshall.NewSchema(
		marshall.FieldDescriptor{Name: "review_state", Kind: marshall.KindString, Namespace: namespaces.CMFURI},
		marshall.FieldDescriptor{Name: "title", Kind: marshall.KindString, Namespace: namespaces.DublinCoreURI},
		marshall.FieldDescriptor{Name: "text", Kind: marshall.KindText, ContentType: "text/html"},
		marshall.FieldDescriptor{Name: "subject", Kind: marshall.KindList, Namespace: namespaces.DublinCoreURI},
		marshall.FieldDescriptor{Name: "image", Kind: marshall.KindImage},
		marshall.FieldDescriptor{Name: "attachment", Kind: marshall.KindFile},
		marshall.FieldDescriptor{Name: "excludeFromNav", Kind: marshall.KindBoolean},
		marshall.FieldDescriptor{Name: "effective", Kind: marshall.KindDateTime},
		marshall.FieldDescriptor{Name: "relatedItem", Kind: marshall.KindReference},
		marshall.FieldDescriptor{Name: "rating", Kind: marshall.KindString, Namespace: unknownNS},
	)
}

func newsItem(t *testing.T) *marshall.Item {
	t.Helper()
	item := marshall.NewItem("News Item", newsItemSchema())
	values := map[string]any{
		"review_state":   "published",
		"title":          "Harbour <reopens> & ships return",
		"text":           "<p>The harbour reopened today.</p>",
		"subject":        []string{"harbour", "shipping"},
		"image":          marshall.Blob{Data: []byte{0x89, 'P', 'N', 'G'}, ContentType: "image/png", Filename: "lead.png"},
		"attachment":     marshall.Blob{Data: []byte("%PDF-1.4"), ContentType: "application/pdf"},
		"excludeFromNav": true,
		"effective":      time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC),
		"relatedItem":    " 6f1e1a2b ",
		"rating":         "five",
	}
	for k, v := range values {
		require.NoError(t, item.Set(k, v))
	}
	return item
}

func newAssembler(t *testing.T) *marshall.Assembler {
	t.Helper()
	reg, err := namespaces.Default()
	require.NoError(t, err)
	return marshall.NewAssembler(reg)
}

func TestAssembler_RoundTrip(t *testing.T) {
	a := newAssembler(t)
	item := newsItem(t)

	data, err := a.Marshal(item)
	require.NoError(t, err)

	target := item.EmptyClone()
	warnings, err := a.Unmarshal(bytes.NewReader(data), target)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	if diff := cmp.Diff(item.Values(), target.Values()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembler_Idempotent(t *testing.T) {
	a := newAssembler(t)
	item := newsItem(t)

	first, err := a.Marshal(item)
	require.NoError(t, err)
	second, err := a.Marshal(item)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssembler_WorkflowFieldsLast(t *testing.T) {
	a := newAssembler(t)
	doc, err := a.ToDocument(newsItem(t))
	require.NoError(t, err)
	require.NotEmpty(t, doc.Elements)

	last := doc.Elements[len(doc.Elements)-1]
	assert.Equal(t, marshall.QualifiedTag{Local: "review_state", Namespace: namespaces.CMFURI}, last.Name)

	// within the default namespace schema order is kept
	var native []string
	for _, el := range doc.Elements {
		if el.Name.Namespace == namespaces.ArchetypesURI {
			native = append(native, el.Name.Local)
		}
	}
	assert.Equal(t, []string{"text", "image", "attachment", "excludeFromNav", "effective", "relatedItem"}, native)
}

func TestAssembler_KeepsDeclaredOrder(t *testing.T) {
	a := newAssembler(t)
	item := marshall.NewItem("Note", marshall.NewSchema(
		marshall.FieldDescriptor{Name: "review_state", Kind: marshall.KindString, Namespace: namespaces.CMFURI},
		marshall.FieldDescriptor{Name: "title", Kind: marshall.KindString, Namespace: namespaces.DublinCoreURI},
		marshall.FieldDescriptor{Name: "body", Kind: marshall.KindText},
		marshall.FieldDescriptor{Name: "CreateDate", Kind: marshall.KindDateTime, Namespace: namespaces.XMPURI},
		marshall.FieldDescriptor{Name: "owner", Kind: marshall.KindString, Namespace: namespaces.CMFURI},
		marshall.FieldDescriptor{Name: "rights", Kind: marshall.KindText, Namespace: namespaces.DublinCoreURI},
	))
	values := map[string]any{
		"review_state": "private",
		"title":        "Minutes",
		"body":         "Agreed.",
		"CreateDate":   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		"owner":        "admin",
		"rights":       "CC-BY",
	}
	for k, v := range values {
		require.NoError(t, item.Set(k, v))
	}

	doc, err := a.ToDocument(item)
	require.NoError(t, err)

	var got []string
	for _, el := range doc.Elements {
		got = append(got, el.Name.Local)
	}
	assert.Equal(t, []string{"title", "body", "CreateDate", "rights", "review_state", "owner"}, got)
}

func TestAssembler_RejectsUnrepresentableText(t *testing.T) {
	a := newAssembler(t)
	for _, value := range []string{"a\x01b", "a\xffb"} {
		item := marshall.NewItem("News Item", newsItemSchema())
		require.NoError(t, item.Set("title", value))

		_, err := a.Marshal(item)
		assert.ErrorIs(t, err, marshall.ErrInvalidValue, "%q", value)
	}
}

func TestAssembler_EncodedForm(t *testing.T) {
	a := newAssembler(t)
	data, err := a.Marshal(newsItem(t))
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, `xmlns:dc="http://purl.org/dc/elements/1.1/"`)
	assert.Contains(t, out, `<dc:title>Harbour &lt;reopens&gt; &amp; ships return</dc:title>`)
	assert.Contains(t, out, `<dc:item>harbour</dc:item>`)
	assert.Contains(t, out, `<archetypes:excludeFromNav>true</archetypes:excludeFromNav>`)
	assert.Contains(t, out, `<cmf:review_state>published</cmf:review_state>`)
	// unregistered namespace degrades to an unprefixed, self-declared element
	assert.Contains(t, out, `<rating xmlns="http://unknown.example/">five</rating>`)
}

func TestAssembler_EmptyFieldsOmitted(t *testing.T) {
	a := newAssembler(t)
	item := marshall.NewItem("News Item", newsItemSchema())
	require.NoError(t, item.Set("title", "Only a title"))
	require.NoError(t, item.Set("text", ""))
	require.NoError(t, item.Set("subject", []string{}))
	require.NoError(t, item.Set("excludeFromNav", false))
	require.NoError(t, item.Set("effective", time.Time{}))
	require.NoError(t, item.Set("image", marshall.Blob{}))

	doc, err := a.ToDocument(item)
	require.NoError(t, err)
	require.Len(t, doc.Elements, 1)
	assert.Equal(t, "title", doc.Elements[0].Name.Local)
}

func TestAssembler_UnmappedElementWarning(t *testing.T) {
	a := newAssembler(t)
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:title>Kept</dc:title>
  <dc:coverage>Europe</dc:coverage>
</metadata>`

	target := marshall.NewItem("News Item", newsItemSchema())
	warnings, err := a.Unmarshal(strings.NewReader(doc), target)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, marshall.QualifiedTag{Local: "coverage", Namespace: namespaces.DublinCoreURI}, warnings[0].Tag)
	assert.Contains(t, warnings[0].Error(), "{http://purl.org/dc/elements/1.1/}coverage")

	title, ok := target.Get("title")
	require.True(t, ok)
	assert.Equal(t, "Kept", title)
}

func TestAssembler_HardErrorLeavesTargetUntouched(t *testing.T) {
	a := newAssembler(t)
	doc := `<metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:archetypes="http://plone.org/ns/archetypes/">
  <dc:title>New title</dc:title>
  <archetypes:excludeFromNav>sometimes</archetypes:excludeFromNav>
</metadata>`

	target := marshall.NewItem("News Item", newsItemSchema())
	require.NoError(t, target.Set("title", "Old title"))

	warnings, err := a.Unmarshal(strings.NewReader(doc), target)
	assert.ErrorIs(t, err, marshall.ErrMalformedFragment)
	assert.Nil(t, warnings)

	title, _ := target.Get("title")
	assert.Equal(t, "Old title", title)
}

func TestAssembler_MalformedDocuments(t *testing.T) {
	a := newAssembler(t)
	tests := []struct {
		name string
		doc  string
	}{
		{"empty input", ""},
		{"unclosed element", `<metadata><title>x</metadata>`},
		{"wrong root", `<document/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Unmarshal(strings.NewReader(tt.doc), marshall.NewItem("News Item", newsItemSchema()))
			assert.ErrorIs(t, err, marshall.ErrMalformedFragment)
		})
	}
}

// upperString is a string marshaler that upper-cases on the way out.
type upperString struct{ marshall.StringMarshaler }

func (m *upperString) MarshalField(field marshall.FieldDescriptor, value any, el *marshall.Element) error {
	if err := m.StringMarshaler.MarshalField(field, value, el); err != nil {
		return err
	}
	el.Text = strings.ToUpper(el.Text)
	return nil
}

func TestAssembler_LaterNamespaceHandlerWins(t *testing.T) {
	reg := marshall.NewRegistry()
	reg.MustRegister(namespaces.Archetypes())
	reg.MustRegister(marshall.NamespaceBinding{
		URI:      nsA,
		Prefix:   "a",
		Handlers: map[marshall.FieldKind]marshall.Marshaler{marshall.KindString: &upperString{}},
	})
	reg.Finalize()
	a := marshall.NewAssembler(reg)

	item := marshall.NewItem("Doc", marshall.NewSchema(
		marshall.FieldDescriptor{Name: "title", Kind: marshall.KindString},
	))
	require.NoError(t, item.Set("title", "quiet"))

	doc, err := a.ToDocument(item)
	require.NoError(t, err)
	require.Len(t, doc.Elements, 1)
	assert.Equal(t, "QUIET", doc.Elements[0].Text)
}
