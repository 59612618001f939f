package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-marshall/pkg/marshall"
)

// ItemResponse is the response body for an item
type ItemResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Values    map[string]any `json:"values"`
}

// CreateItemRequest is the request body for creating an item
type CreateItemRequest struct {
	Type   string         `json:"type"`
	Values map[string]any `json:"values"`
}

// UpdateItemRequest is the request body for updating an item
type UpdateItemRequest struct {
	Values map[string]any `json:"values"`
}

// ImportResponse is the response body for a document import
type ImportResponse struct {
	Item     ItemResponse `json:"item"`
	Warnings []string     `json:"warnings"`
}

// ErrorResponse is the response body for failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// maxDocumentSize bounds imported documents.
const maxDocumentSize = 32 << 20

// ItemHandler handles HTTP requests for items
type ItemHandler struct {
	service marshall.Service
	logger  *slog.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(service marshall.Service, logger *slog.Logger) *ItemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemHandler{service: service, logger: logger}
}

// Routes returns the routes for items
func (h *ItemHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateItem)
	r.Get("/", h.ListItems)
	r.Post("/xml", h.ImportNewItem)
	r.Get("/{id}", h.GetItem)
	r.Put("/{id}", h.UpdateItem)
	r.Delete("/{id}", h.DeleteItem)

	// Document routes
	r.Get("/{id}/xml", h.ExportItem)
	r.Put("/{id}/xml", h.ImportItem)

	return r
}

func toItemResponse(item *marshall.Item) ItemResponse {
	return ItemResponse{
		ID:        item.ID.String(),
		Type:      item.TypeName,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
		Values:    item.Values(),
	}
}

func (h *ItemHandler) itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.logger.Error("Invalid item ID", "item_id", raw, "error", err)
		writeError(w, r, http.StatusBadRequest, "Invalid item ID")
		return uuid.Nil, false
	}
	return id, true
}

// CreateItem creates a new item
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Type == "" {
		writeError(w, r, http.StatusBadRequest, "type is required")
		return
	}

	item, err := h.service.CreateItem(r.Context(), marshall.CreateItemRequest{
		TypeName: req.Type,
		Values:   req.Values,
	})
	if err != nil {
		h.fail(w, r, "Failed to create item", err, "type", req.Type)
		return
	}

	h.logger.Info("Item created", "item_id", item.ID.String(), "type", item.TypeName)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toItemResponse(item))
}

// GetItem returns a single item
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get item", err, "item_id", id)
		return
	}
	render.JSON(w, r, toItemResponse(item))
}

// UpdateItem changes the fields given in the request body
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.service.UpdateItem(r.Context(), marshall.UpdateItemRequest{ID: id, Values: req.Values})
	if err != nil {
		h.fail(w, r, "Failed to update item", err, "item_id", id)
		return
	}
	render.JSON(w, r, toItemResponse(item))
}

// DeleteItem deletes an item
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to delete item", err, "item_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListItems lists items, optionally filtered by ?type=
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	typeName := r.URL.Query().Get("type")

	items, err := h.service.ListItems(r.Context(), marshall.ListItemsRequest{TypeName: typeName})
	if err != nil {
		h.fail(w, r, "Failed to list items", err, "type", typeName)
		return
	}

	resp := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toItemResponse(item))
	}
	render.JSON(w, r, resp)
}

// ExportItem renders the item's XML document
func (h *ItemHandler) ExportItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}

	export, err := h.service.ExportItem(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to export item", err, "item_id", id)
		return
	}

	etag := fmt.Sprintf("%q", export.Digest)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s.xml\"", id))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Data); err != nil {
		h.logger.Error("Failed to write export", "item_id", id, "error", err)
	}
}

// ImportItem applies an XML document onto an existing item
func (h *ItemHandler) ImportItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	h.importDocument(w, r, marshall.ImportItemRequest{ID: id}, http.StatusOK)
}

// ImportNewItem creates an item of ?type= from an XML document
func (h *ItemHandler) ImportNewItem(w http.ResponseWriter, r *http.Request) {
	typeName := r.URL.Query().Get("type")
	if typeName == "" {
		writeError(w, r, http.StatusBadRequest, "type is required")
		return
	}
	h.importDocument(w, r, marshall.ImportItemRequest{TypeName: typeName}, http.StatusCreated)
}

func (h *ItemHandler) importDocument(w http.ResponseWriter, r *http.Request, req marshall.ImportItemRequest, status int) {
	var body bytes.Buffer
	if _, err := body.ReadFrom(http.MaxBytesReader(w, r.Body, maxDocumentSize)); err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	req.Document = &body

	result, err := h.service.ImportItem(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Failed to import document", err, "item_id", req.ID, "type", req.TypeName)
		return
	}

	warnings := make([]string, 0, len(result.Warnings))
	for _, warning := range result.Warnings {
		warnings = append(warnings, warning.Error())
	}

	render.Status(r, status)
	render.JSON(w, r, ImportResponse{Item: toItemResponse(result.Item), Warnings: warnings})
}

func (h *ItemHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error, args ...any) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, append(args, "error", err)...)
	} else {
		h.logger.Warn(msg, append(args, "error", err)...)
	}
	writeError(w, r, status, err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, marshall.ErrItemNotFound),
		errors.Is(err, marshall.ErrTypeNotFound),
		errors.Is(err, marshall.ErrExportNotFound):
		return http.StatusNotFound
	case errors.Is(err, marshall.ErrUnknownField),
		errors.Is(err, marshall.ErrInvalidValue),
		errors.Is(err, marshall.ErrMalformedFragment),
		errors.Is(err, marshall.ErrMalformedTag),
		errors.Is(err, marshall.ErrUnsupportedFieldKind):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
