package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-marshall/pkg/marshall"
)

// NamespaceResponse describes a registered namespace
type NamespaceResponse struct {
	URI      string   `json:"uri"`
	Prefix   string   `json:"prefix"`
	Position int      `json:"position"`
	Kinds    []string `json:"kinds"`
}

// FieldResponse describes a schema field
type FieldResponse struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Namespace   string `json:"namespace,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// TypeResponse describes a content type
type TypeResponse struct {
	Name   string          `json:"name"`
	Fields []FieldResponse `json:"fields,omitempty"`
}

// RegistryHandler serves namespace and content type listings
type RegistryHandler struct {
	service marshall.Service
}

// NewRegistryHandler creates a new registry handler
func NewRegistryHandler(service marshall.Service) *RegistryHandler {
	return &RegistryHandler{service: service}
}

// NamespaceRoutes returns the routes for namespaces
func (h *RegistryHandler) NamespaceRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListNamespaces)
	return r
}

// TypeRoutes returns the routes for content types
func (h *RegistryHandler) TypeRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListTypes)
	r.Get("/{name}", h.GetType)
	return r
}

// ListNamespaces lists namespaces in registration order
func (h *RegistryHandler) ListNamespaces(w http.ResponseWriter, r *http.Request) {
	bindings := h.service.Namespaces()
	resp := make([]NamespaceResponse, 0, len(bindings))
	for i, b := range bindings {
		kinds := make([]string, 0, len(b.Handlers))
		for kind := range b.Handlers {
			kinds = append(kinds, kind.String())
		}
		sort.Strings(kinds)
		resp = append(resp, NamespaceResponse{URI: b.URI, Prefix: b.Prefix, Position: i, Kinds: kinds})
	}
	render.JSON(w, r, resp)
}

// ListTypes lists the catalog's content types
func (h *RegistryHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	names := h.service.TypeNames()
	resp := make([]TypeResponse, 0, len(names))
	for _, name := range names {
		resp = append(resp, TypeResponse{Name: name})
	}
	render.JSON(w, r, resp)
}

// GetType describes the fields of one content type
func (h *RegistryHandler) GetType(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s, err := h.service.Schema(name)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	resp := TypeResponse{Name: name}
	for _, f := range s.Ordered() {
		resp.Fields = append(resp.Fields, FieldResponse{
			Name:        f.Name,
			Kind:        f.Kind.String(),
			Namespace:   f.Namespace,
			ContentType: f.ContentType,
		})
	}
	render.JSON(w, r, resp)
}
