package marshall_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-marshall/pkg/marshall"
	"github.com/tendant/simple-marshall/pkg/marshall/namespaces"
)

func TestDocument_EncodeDeclaresUsedNamespaces(t *testing.T) {
	reg, err := namespaces.Default()
	require.NoError(t, err)
	resolver := marshall.NewTagResolver(reg)

	doc := &marshall.Document{
		Elements: []*marshall.Element{
			{Name: marshall.QualifiedTag{Local: "CreateDate", Namespace: namespaces.XMPURI}, Text: "2024-01-01T00:00:00Z"},
		},
	}
	data, err := doc.Bytes(resolver)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<metadata xmlns:xmp="http://ns.adobe.com/xap/1.0/">`)
	assert.Contains(t, string(data), `<xmp:CreateDate>2024-01-01T00:00:00Z</xmp:CreateDate>`)
}

func TestParseDocument(t *testing.T) {
	input := `<?xml version="1.0"?>
<!-- exported -->
<metadata xmlns:dc="http://purl.org/dc/elements/1.1/" id="front-page">
  <dc:title lang="en">Welcome</dc:title>
  <dc:subject>
    <dc:item>one</dc:item>
    <dc:item>two</dc:item>
  </dc:subject>
</metadata>`

	doc, err := marshall.ParseDocument(bytes.NewBufferString(input))
	require.NoError(t, err)

	assert.Equal(t, marshall.RootElement, doc.Root)
	assert.Equal(t, []marshall.NamespaceDecl{{Prefix: "dc", URI: namespaces.DublinCoreURI}}, doc.Namespaces)
	require.Len(t, doc.Attrs, 1)
	assert.Equal(t, "front-page", doc.Attrs[0].Value)

	require.Len(t, doc.Elements, 2)
	title := doc.Elements[0]
	assert.Equal(t, marshall.QualifiedTag{Local: "title", Namespace: namespaces.DublinCoreURI}, title.Name)
	assert.Equal(t, "Welcome", title.Text)
	lang, ok := title.Attr("lang")
	assert.True(t, ok)
	assert.Equal(t, "en", lang)

	subject := doc.Elements[1]
	assert.Empty(t, subject.Text)
	require.Len(t, subject.Children, 2)
	assert.Equal(t, "two", subject.Children[1].Text)
}

func TestParseDocument_MixedContent(t *testing.T) {
	input := `<metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:subject>news<dc:item>one</dc:item></dc:subject>
</metadata>`

	_, err := marshall.ParseDocument(bytes.NewBufferString(input))
	assert.ErrorIs(t, err, marshall.ErrMalformedFragment)
}
