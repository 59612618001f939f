// Package presets builds ready-to-use services for common setups.
package presets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/tendant/simple-marshall/pkg/marshall"
	"github.com/tendant/simple-marshall/pkg/marshall/config"
	"github.com/tendant/simple-marshall/pkg/marshall/namespaces"
	memoryrepo "github.com/tendant/simple-marshall/pkg/marshall/repo/memory"
	"github.com/tendant/simple-marshall/pkg/marshall/schema"
	fsstorage "github.com/tendant/simple-marshall/pkg/marshall/storage/fs"
	memorystorage "github.com/tendant/simple-marshall/pkg/marshall/storage/memory"
)

// NewDevelopment creates a service for local development: in-memory
// items, exports written under ./dev-data, built-in content types and
// event logging.
//
// The returned cleanup removes the export directory.
//
//	svc, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (marshall.Service, func(), error) {
	cfg := &devConfig{
		storageDir: "./dev-data",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	registry, catalog, err := defaults()
	if err != nil {
		return nil, nil, err
	}

	fsBackend, err := fsstorage.New(fsstorage.Config{BaseDir: cfg.storageDir})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	svc, err := marshall.New(
		marshall.WithRegistry(registry),
		marshall.WithCatalog(catalog),
		marshall.WithRepository(memoryrepo.New()),
		marshall.WithBlobStore("fs", fsBackend),
		marshall.WithEventSink(marshall.NewLogEventSink(cfg.logger)),
		marshall.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	cleanup := func() {
		os.RemoveAll(cfg.storageDir)
	}
	return svc, cleanup, nil
}

// NewTesting creates an isolated in-memory service for tests. Setup
// failures fail the test.
func NewTesting(t testing.TB, opts ...TestingOption) marshall.Service {
	t.Helper()

	cfg := &testConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	registry, catalog, err := defaults()
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	svc, err := marshall.New(
		marshall.WithRegistry(registry),
		marshall.WithCatalog(catalog),
		marshall.WithRepository(memoryrepo.New()),
		marshall.WithBlobStore("memory", memorystorage.New()),
		marshall.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}

	if cfg.fixtures {
		for _, name := range catalog.Names() {
			_, err := svc.CreateItem(context.Background(), marshall.CreateItemRequest{
				TypeName: name,
				Values:   map[string]any{"title": "Sample " + name},
			})
			if err != nil {
				t.Fatalf("failed to create fixture %s: %v", name, err)
			}
		}
	}

	return svc
}

// NewProduction creates a service from the environment (see config.WithEnv)
// and refuses in-memory persistence. Call the returned close function on
// shutdown to release the database pool.
func NewProduction(ctx context.Context, opts ...config.Option) (marshall.Service, func(), error) {
	cfg, err := config.Load(append([]config.Option{config.WithEnv("")}, opts...)...)
	if err != nil {
		return nil, nil, err
	}

	if cfg.DatabaseType == "memory" {
		return nil, nil, fmt.Errorf("production preset requires DATABASE_URL=postgresql://... (memory not allowed in production)")
	}
	for _, b := range cfg.StorageBackends {
		if b.Name == cfg.DefaultStorageBackend && b.Type == "memory" {
			return nil, nil, fmt.Errorf("production preset requires persistent export storage (s3 or fs, not memory)")
		}
	}

	svc, err := cfg.BuildService(ctx, nil)
	if err != nil {
		cfg.Close()
		return nil, nil, err
	}
	return svc, cfg.Close, nil
}

func defaults() (*marshall.Registry, *schema.Catalog, error) {
	registry, err := namespaces.Default()
	if err != nil {
		return nil, nil, err
	}
	catalog, err := schema.Default(registry)
	if err != nil {
		return nil, nil, err
	}
	return registry, catalog, nil
}

type devConfig struct {
	storageDir string
	logger     *slog.Logger
}

type testConfig struct {
	fixtures bool
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevStorage sets the development export directory
func WithDevStorage(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.storageDir = dir
	}
}

// WithDevLogger sets the development logger
func WithDevLogger(logger *slog.Logger) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.logger = logger
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithTestFixtures creates one titled item per built-in content type.
func WithTestFixtures() TestingOption {
	return func(cfg *testConfig) {
		cfg.fixtures = true
	}
}
