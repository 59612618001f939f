package marshall

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"
)

// service implements the Service interface
type service struct {
	repository   Repository
	blobStores   map[string]BlobStore
	defaultStore string
	catalog      Catalog
	registry     *Registry
	assembler    *Assembler
	eventSink    EventSink
	compress     bool
	sanitizeHTML bool
	logger       *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore adds a blob storage backend. The first backend added
// receives exports.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
		if s.defaultStore == "" {
			s.defaultStore = name
		}
	}
}

// WithCatalog sets the content type catalog
func WithCatalog(catalog Catalog) Option {
	return func(s *service) {
		s.catalog = catalog
	}
}

// WithRegistry sets the namespace registry documents are marshaled with
func WithRegistry(registry *Registry) Option {
	return func(s *service) {
		s.registry = registry
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithCompression gzips stored exports
func WithCompression(enabled bool) Option {
	return func(s *service) {
		s.compress = enabled
	}
}

// WithHTMLSanitizing cleans text/html Text values given to CreateItem and
// UpdateItem before they are stored
func WithHTMLSanitizing(enabled bool) Option {
	return func(s *service) {
		s.sanitizeHTML = enabled
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores: make(map[string]BlobStore),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if s.registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.assembler = NewAssembler(s.registry)

	return s, nil
}

// Item operations

func (s *service) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error) {
	schema, err := s.catalog.Get(req.TypeName)
	if err != nil {
		return nil, err
	}

	item := NewItem(req.TypeName, schema)
	if err := ApplyValues(item, req.Values, SanitizeHTML(s.sanitizeHTML)); err != nil {
		return nil, &ItemError{ItemID: item.ID, Op: "create", Err: err}
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.repository.CreateItem(ctx, item); err != nil {
		return nil, &ItemError{ItemID: item.ID, Op: "create", Err: err}
	}

	if err := s.eventSink.ItemCreated(ctx, item); err != nil {
		s.logger.Warn("Event sink failed", "event", "item_created", "item_id", item.ID, "error", err)
	}
	return item, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.repository.GetItem(ctx, id)
}

func (s *service) UpdateItem(ctx context.Context, req UpdateItemRequest) (*Item, error) {
	item, err := s.repository.GetItem(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if err := ApplyValues(item, req.Values, SanitizeHTML(s.sanitizeHTML)); err != nil {
		return nil, &ItemError{ItemID: item.ID, Op: "update", Err: err}
	}
	item.UpdatedAt = time.Now().UTC()

	if err := s.repository.UpdateItem(ctx, item); err != nil {
		return nil, &ItemError{ItemID: item.ID, Op: "update", Err: err}
	}

	if err := s.eventSink.ItemUpdated(ctx, item); err != nil {
		s.logger.Warn("Event sink failed", "event", "item_updated", "item_id", item.ID, "error", err)
	}
	return item, nil
}

func (s *service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	item, err := s.repository.GetItem(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repository.DeleteItem(ctx, id); err != nil {
		return &ItemError{ItemID: id, Op: "delete", Err: err}
	}

	// Stale exports are removed on a best-effort basis.
	if store, ok := s.exportStore(); ok {
		key := ExportKey(item.TypeName, id, s.compress)
		if err := store.Delete(ctx, key); err != nil && !errors.Is(err, ErrBlobNotFound) {
			s.logger.Warn("Failed to delete export", "item_id", id, "key", key, "error", err)
		}
	}

	if err := s.eventSink.ItemDeleted(ctx, id); err != nil {
		s.logger.Warn("Event sink failed", "event", "item_deleted", "item_id", id, "error", err)
	}
	return nil
}

func (s *service) ListItems(ctx context.Context, req ListItemsRequest) ([]*Item, error) {
	if req.TypeName != "" {
		if _, err := s.catalog.Get(req.TypeName); err != nil {
			return nil, err
		}
	}
	return s.repository.ListItems(ctx, req.TypeName)
}

// Document operations

func (s *service) ExportItem(ctx context.Context, id uuid.UUID) (*ExportResult, error) {
	item, err := s.repository.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.assembler.Marshal(item)
	if err != nil {
		return nil, &ItemError{ItemID: id, Op: "export", Err: err}
	}

	result := &ExportResult{
		ItemID:   id,
		TypeName: item.TypeName,
		Data:     data,
		Digest:   Digest(data),
		Size:     int64(len(data)),
	}

	if store, ok := s.exportStore(); ok {
		payload := data
		contentType := "application/xml"
		if s.compress {
			if payload, err = gzipBytes(data); err != nil {
				return nil, &ItemError{ItemID: id, Op: "export", Err: err}
			}
			contentType = "application/gzip"
		}
		result.Key = ExportKey(item.TypeName, id, s.compress)
		result.Compressed = s.compress
		if err := store.Upload(ctx, result.Key, bytes.NewReader(payload), contentType); err != nil {
			return nil, &ItemError{ItemID: id, Op: "export", Err: err}
		}
	}

	s.logger.Debug("Exported item", "item_id", id, "type", item.TypeName, "size", result.Size, "digest", result.Digest)
	if err := s.eventSink.ItemExported(ctx, result); err != nil {
		s.logger.Warn("Event sink failed", "event", "item_exported", "item_id", id, "error", err)
	}
	return result, nil
}

func (s *service) DownloadExport(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	item, err := s.repository.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	store, ok := s.exportStore()
	if !ok {
		return nil, fmt.Errorf("%w: no blob store configured", ErrExportNotFound)
	}

	key := ExportKey(item.TypeName, id, s.compress)
	rc, err := store.Download(ctx, key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrExportNotFound, id)
		}
		return nil, &ItemError{ItemID: id, Op: "download_export", Err: err}
	}
	if !s.compress {
		return rc, nil
	}

	zr, err := gzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, &ItemError{ItemID: id, Op: "download_export", Err: err}
	}
	return &gzipReadCloser{Reader: zr, underlying: rc}, nil
}

func (s *service) ImportItem(ctx context.Context, req ImportItemRequest) (*ImportResult, error) {
	if req.Document == nil {
		return nil, fmt.Errorf("%w: document is required", ErrMalformedFragment)
	}

	var (
		item   *Item
		create bool
	)
	if req.ID == uuid.Nil {
		schema, err := s.catalog.Get(req.TypeName)
		if err != nil {
			return nil, err
		}
		item = NewItem(req.TypeName, schema)
		create = true
	} else {
		existing, err := s.repository.GetItem(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		if req.TypeName != "" && req.TypeName != existing.TypeName {
			return nil, &ItemError{ItemID: req.ID, Op: "import", Err: fmt.Errorf("%w: item is a %s, not a %s", ErrInvalidValue, existing.TypeName, req.TypeName)}
		}
		item = existing
	}

	warnings, err := s.assembler.Unmarshal(req.Document, item)
	if err != nil {
		return nil, &ItemError{ItemID: item.ID, Op: "import", Err: err}
	}
	for _, w := range warnings {
		s.logger.Warn("Unmapped element", "item_id", item.ID, "tag", w.Tag.String())
	}

	now := time.Now().UTC()
	item.UpdatedAt = now
	if create {
		item.CreatedAt = now
		err = s.repository.CreateItem(ctx, item)
	} else {
		err = s.repository.UpdateItem(ctx, item)
	}
	if err != nil {
		return nil, &ItemError{ItemID: item.ID, Op: "import", Err: err}
	}

	if err := s.eventSink.ItemImported(ctx, item, warnings); err != nil {
		s.logger.Warn("Event sink failed", "event", "item_imported", "item_id", item.ID, "error", err)
	}
	return &ImportResult{Item: item, Warnings: warnings}, nil
}

// Introspection

func (s *service) Namespaces() []NamespaceBinding {
	return s.registry.Namespaces()
}

func (s *service) TypeNames() []string {
	return s.catalog.Names()
}

func (s *service) Schema(typeName string) (Schema, error) {
	return s.catalog.Get(typeName)
}

func (s *service) exportStore() (BlobStore, bool) {
	store, ok := s.blobStores[s.defaultStore]
	return store, ok && store != nil
}

// ExportKey is the blob store key of an item's export.
func ExportKey(typeName string, id uuid.UUID, compressed bool) string {
	key := fmt.Sprintf("exports/%s/%s.xml", typeSlug(typeName), id)
	if compressed {
		key += ".gz"
	}
	return key
}

func typeSlug(typeName string) string {
	slug := strings.ToLower(strings.TrimSpace(typeName))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, slug)
	if slug == "" {
		return "untyped"
	}
	return slug
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress export: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress export: %w", err)
	}
	return buf.Bytes(), nil
}

type gzipReadCloser struct {
	*gzip.Reader
	underlying io.Closer
}

func (g *gzipReadCloser) Close() error {
	zerr := g.Reader.Close()
	if err := g.underlying.Close(); err != nil {
		return err
	}
	return zerr
}
