package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-marshall/pkg/marshall"
	"github.com/tendant/simple-marshall/pkg/marshall/api"
	"github.com/tendant/simple-marshall/pkg/marshall/namespaces"
	"github.com/tendant/simple-marshall/pkg/marshall/repo/memory"
	"github.com/tendant/simple-marshall/pkg/marshall/schema"
	memorystorage "github.com/tendant/simple-marshall/pkg/marshall/storage/memory"
)

func newTestService(t *testing.T) marshall.Service {
	t.Helper()
	reg, err := namespaces.Default()
	require.NoError(t, err)

	pageSchema := marshall.NewSchema(append(namespaces.DublinCoreFields(),
		marshall.FieldDescriptor{Name: "body", Kind: marshall.KindText, ContentType: "text/html"},
		marshall.FieldDescriptor{Name: "excludeFromNav", Kind: marshall.KindBoolean},
	)...)
	svc, err := marshall.New(
		marshall.WithRepository(memory.New()),
		marshall.WithBlobStore("memory", memorystorage.New()),
		marshall.WithCatalog(schema.NewCatalog(map[string]marshall.Schema{"Page": pageSchema})),
		marshall.WithRegistry(reg),
	)
	require.NoError(t, err)
	return svc
}

func do(t *testing.T, h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func createPage(t *testing.T, h http.Handler) api.ItemResponse {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/items", `{"type":"Page","values":{"title":"Hello","subject":["a","b"]}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var item api.ItemResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))
	return item
}

func TestItemRoutes_CRUD(t *testing.T) {
	h := api.NewRouter(newTestService(t))

	item := createPage(t, h)
	assert.Equal(t, "Page", item.Type)
	assert.Equal(t, "Hello", item.Values["title"])

	rr := do(t, h, http.MethodGet, "/items/"+item.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodPut, "/items/"+item.ID, `{"values":{"excludeFromNav":true}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated api.ItemResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, true, updated.Values["excludeFromNav"])

	rr = do(t, h, http.MethodGet, "/items?type=Page", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []api.ItemResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rr = do(t, h, http.MethodDelete, "/items/"+item.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/items/"+item.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestItemRoutes_Errors(t *testing.T) {
	h := api.NewRouter(newTestService(t))

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"bad id", http.MethodGet, "/items/not-a-uuid", "", http.StatusBadRequest},
		{"unknown type", http.MethodPost, "/items", `{"type":"Folder"}`, http.StatusNotFound},
		{"missing type", http.MethodPost, "/items", `{}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/items", `{`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/items", `{"type":"Page","values":{"nope":"x"}}`, http.StatusBadRequest},
		{"import without type", http.MethodPost, "/items/xml", `<metadata/>`, http.StatusBadRequest},
		{"unknown list type", http.MethodGet, "/items?type=Folder", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestItemRoutes_ExportImport(t *testing.T) {
	h := api.NewRouter(newTestService(t))
	item := createPage(t, h)

	rr := do(t, h, http.MethodGet, "/items/"+item.ID+"/xml", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/xml; charset=utf-8", rr.Header().Get("Content-Type"))
	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)
	doc := rr.Body.String()
	assert.Contains(t, doc, "<dc:title>Hello</dc:title>")

	rr = do(t, h, http.MethodGet, "/items/"+item.ID+"/xml", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rr.Code)

	changed := strings.Replace(doc, "<dc:title>Hello</dc:title>", "<dc:title>Changed</dc:title><dc:coverage>x</dc:coverage>", 1)
	rr = do(t, h, http.MethodPut, "/items/"+item.ID+"/xml", changed, "Content-Type", "application/xml")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var imported api.ImportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &imported))
	assert.Equal(t, "Changed", imported.Item.Values["title"])
	assert.Equal(t, []string{"unmapped element {http://purl.org/dc/elements/1.1/}coverage"}, imported.Warnings)

	rr = do(t, h, http.MethodGet, "/items/"+item.ID+"/xml", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, rr.Code, "digest changes with content")

	rr = do(t, h, http.MethodPost, "/items/xml?type=Page", doc)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &imported))
	assert.NotEqual(t, item.ID, imported.Item.ID)
	assert.Equal(t, "Hello", imported.Item.Values["title"])

	rr = do(t, h, http.MethodPut, "/items/"+item.ID+"/xml", "<metadata>")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegistryRoutes(t *testing.T) {
	h := api.NewRouter(newTestService(t))

	rr := do(t, h, http.MethodGet, "/namespaces", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var ns []api.NamespaceResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ns))
	require.Len(t, ns, 4)
	assert.Equal(t, "archetypes", ns[0].Prefix)
	assert.Len(t, ns[0].Kinds, len(marshall.AllKinds()))
	assert.Equal(t, "cmf", ns[3].Prefix)

	rr = do(t, h, http.MethodGet, "/types", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"name":"Page"}]`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/types/Page", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var typ api.TypeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &typ))
	assert.Equal(t, "title", typ.Fields[0].Name)

	rr = do(t, h, http.MethodGet, "/types/Folder", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_JWT(t *testing.T) {
	const secret = "test-secret"
	h := api.NewRouter(newTestService(t), api.WithJWTSecret(secret))

	rr := do(t, h, http.MethodGet, "/types", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	_, token, err := api.NewJWTAuth(secret).Encode(map[string]interface{}{"sub": "tester"})
	require.NoError(t, err)
	rr = do(t, h, http.MethodGet, "/types", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rr.Code)

	_, forged, err := api.NewJWTAuth("other").Encode(map[string]interface{}{"sub": "tester"})
	require.NoError(t, err)
	rr = do(t, h, http.MethodGet, "/types", "", "Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_Compression(t *testing.T) {
	h := api.NewRouter(newTestService(t), api.WithCompression(true))
	item := createPage(t, h)

	rr := do(t, h, http.MethodGet, "/items/"+item.ID+"/xml", "", "Accept-Encoding", "gzip, deflate")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<dc:title>Hello</dc:title>")

	rr = do(t, h, http.MethodGet, "/items/"+item.ID+"/xml", "")
	assert.Empty(t, rr.Header().Get("Content-Encoding"))
	assert.Contains(t, rr.Body.String(), "<dc:title>Hello</dc:title>")
}

func TestBulkExport(t *testing.T) {
	svc := newTestService(t)
	h := api.NewRouter(svc)
	createPage(t, h)
	createPage(t, h)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantResult string
	}{
		{"all", "/exports", http.StatusOK, `{"total_found":2,"total_processed":2,"total_failed":0}`},
		{"by type dry run", "/exports?type=Page&dry_run=true", http.StatusOK, `{"total_found":2,"total_processed":2,"total_failed":0}`},
		{"limited", "/exports?limit=1", http.StatusOK, `{"total_found":1,"total_processed":1,"total_failed":0}`},
		{"unknown type", "/exports?type=Nope", http.StatusNotFound, ""},
		{"bad dry run", "/exports?dry_run=maybe", http.StatusBadRequest, ""},
		{"bad limit", "/exports?limit=-1", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, tt.target, "")
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantResult != "" {
				assert.JSONEq(t, tt.wantResult, rr.Body.String())
			}
		})
	}

	items, err := svc.ListItems(context.Background(), marshall.ListItemsRequest{TypeName: "Page"})
	require.NoError(t, err)
	for _, item := range items {
		rc, err := svc.DownloadExport(context.Background(), item.ID)
		require.NoError(t, err)
		rc.Close()
	}
}
