package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-marshall/pkg/marshall/namespaces"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(Env{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExportImportRoundTrip(t *testing.T) {
	values := `
title: Launch day
subject: [news, launch]
text: <p>We shipped.</p>
image:
  text: not really a png
  content_type: image/png
  filename: launch.png
`
	doc, err := run(t, values, "export", "--type", "News Item")
	require.NoError(t, err)
	assert.Contains(t, doc, "<metadata")
	assert.Contains(t, doc, "Launch day")
	assert.Contains(t, doc, namespaces.DublinCoreURI)

	out, err := run(t, doc, "import", "--type", "News Item")
	require.NoError(t, err)

	var report importReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, "News Item", report.Type)
	assert.Equal(t, "Launch day", report.Values["title"])
	assert.Equal(t, "<p>We shipped.</p>", report.Values["text"])
	assert.Empty(t, report.Warnings)

	image, ok := report.Values["image"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "launch.png", image["filename"])
}

func TestImportReportsUnmappedElements(t *testing.T) {
	doc, err := run(t, "title: Plain\n", "export", "--type", "News Item")
	require.NoError(t, err)

	// coverage is not among the Dublin Core fields the catalog declares.
	doc = strings.Replace(doc, "</metadata>", `<dc:coverage xmlns:dc="`+namespaces.DublinCoreURI+`">world</dc:coverage></metadata>`, 1)
	out, err := run(t, doc, "import", "--type", "File")
	require.NoError(t, err)

	var report importReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "coverage")
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"export unknown type", []string{"export", "--type", "Nope"}},
		{"export missing type", []string{"export"}},
		{"import unknown type", []string{"import", "--type", "Nope"}},
		{"types unknown type", []string{"types", "Nope"}},
		{"validate missing file", []string{"validate", "does-not-exist.yaml"}},
		{"missing schema file", []string{"--schema", "does-not-exist.yaml", "types"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestExportRejectsBadValue(t *testing.T) {
	_, err := run(t, "excludeFromNav: sometimes\n", "export", "--type", "Document")
	assert.Error(t, err)
}

func TestNamespaces(t *testing.T) {
	out, err := run(t, "", "namespaces")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[1], namespaces.ArchetypesURI)
	assert.Contains(t, lines[4], namespaces.CMFURI)
}

func TestTypes(t *testing.T) {
	out, err := run(t, "", "types")
	require.NoError(t, err)
	assert.Equal(t, "Document\nNews Item\nFile\nImage\n", out)

	out, err = run(t, "", "types", "File")
	require.NoError(t, err)
	assert.Contains(t, out, "CreateDate")
	assert.Contains(t, out, "xmp")
}

func TestValidateAndSchemaFlag(t *testing.T) {
	const catalog = "../../pkg/marshall/schema/testdata/types.yaml"

	out, err := run(t, "", "validate", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "2 content types OK")

	out, err = run(t, "", "--schema", catalog, "types")
	require.NoError(t, err)
	assert.Equal(t, "News Item\nFile\n", out)
}

func TestExportSanitizesHTML(t *testing.T) {
	values := "text: <p>ok</p><script>alert(1)</script>\n"

	doc, err := run(t, values, "export", "--type", "Document", "--sanitize-html")
	require.NoError(t, err)
	assert.NotContains(t, doc, "script")

	doc, err = run(t, values, "export", "--type", "Document")
	require.NoError(t, err)
	assert.Contains(t, doc, "script")
}
