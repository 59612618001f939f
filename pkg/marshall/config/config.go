package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-marshall/pkg/marshall"
	"github.com/tendant/simple-marshall/pkg/marshall/namespaces"
	"github.com/tendant/simple-marshall/pkg/marshall/repo/memory"
	repopg "github.com/tendant/simple-marshall/pkg/marshall/repo/postgres"
	"github.com/tendant/simple-marshall/pkg/marshall/schema"
	fsstorage "github.com/tendant/simple-marshall/pkg/marshall/storage/fs"
	memorystorage "github.com/tendant/simple-marshall/pkg/marshall/storage/memory"
	s3storage "github.com/tendant/simple-marshall/pkg/marshall/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                  "8080",
		Environment:           "development",
		DatabaseType:          "memory",
		DBSchema:              "marshall",
		AutoMigrate:           true,
		DefaultStorageBackend: "memory",
		StorageBackends: []StorageBackendConfig{
			{
				Name:   "memory",
				Type:   "memory",
				Config: map[string]interface{}{},
			},
		},
		CompressExports:    false,
		EnableEventLogging: true,
	}
}

// ServerConfig represents server configuration for the marshall service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: marshall)
	AutoMigrate  bool   // Create the item table on startup

	// Storage configuration. The default backend receives exports.
	DefaultStorageBackend string
	StorageBackends       []StorageBackendConfig

	// Content types. Empty SchemaFile uses the built-in catalog.
	SchemaFile string

	// Marshaling options. SanitizeHTML cleans text/html values on create,
	// update and import.
	SanitizeHTML    bool
	CompressExports bool

	// Server options
	JWTSecret          string
	EnableCompression  bool
	EnableEventLogging bool

	pool *pgxpool.Pool
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	found := false
	for _, backend := range c.StorageBackends {
		if backend.Name == c.DefaultStorageBackend {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default storage backend '%s' not found in configured backends", c.DefaultStorageBackend)
	}

	if c.Environment == "production" && c.JWTSecret == "" {
		return errors.New("jwt_secret is required in production")
	}

	return nil
}

// BuildRegistry creates the namespace registry with the standard bindings.
func (c *ServerConfig) BuildRegistry() (*marshall.Registry, error) {
	var opts []namespaces.Option
	if c.SanitizeHTML {
		opts = append(opts, namespaces.WithSanitizedHTML())
	}
	return namespaces.Default(opts...)
}

// BuildCatalog loads the content types from SchemaFile, or the built-in
// types when no file is configured.
func (c *ServerConfig) BuildCatalog(registry *marshall.Registry) (*schema.Catalog, error) {
	if c.SchemaFile == "" {
		return schema.Default(registry)
	}
	return schema.LoadFile(c.SchemaFile, registry)
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (marshall.Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := c.BuildRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to build namespace registry: %w", err)
	}

	catalog, err := c.BuildCatalog(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to load content types: %w", err)
	}

	options := []marshall.Option{
		marshall.WithRegistry(registry),
		marshall.WithCatalog(catalog),
		marshall.WithCompression(c.CompressExports),
		marshall.WithHTMLSanitizing(c.SanitizeHTML),
		marshall.WithLogger(logger),
	}

	// Stored documents already hold sanitized values, so rows are decoded
	// without the import-time policy.
	storageRegistry, err := namespaces.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage registry: %w", err)
	}
	repo, err := c.buildRepository(ctx, marshall.NewItemCodec(storageRegistry, catalog))
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	options = append(options, marshall.WithRepository(repo))

	// The first store registered receives exports.
	for _, backendConfig := range c.orderedBackends() {
		store, err := c.buildStorageBackend(ctx, backendConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build storage backend %s: %w", backendConfig.Name, err)
		}
		options = append(options, marshall.WithBlobStore(backendConfig.Name, store))
	}

	if c.EnableEventLogging {
		options = append(options, marshall.WithEventSink(marshall.NewLogEventSink(logger)))
	}

	return marshall.New(options...)
}

// Close releases the database pool opened by BuildService, if any.
func (c *ServerConfig) Close() {
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
}

func (c *ServerConfig) orderedBackends() []StorageBackendConfig {
	ordered := make([]StorageBackendConfig, 0, len(c.StorageBackends))
	for _, b := range c.StorageBackends {
		if b.Name == c.DefaultStorageBackend {
			ordered = append(ordered, b)
		}
	}
	for _, b := range c.StorageBackends {
		if b.Name != c.DefaultStorageBackend {
			ordered = append(ordered, b)
		}
	}
	return ordered
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, codec marshall.Codec) (marshall.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		if c.AutoMigrate {
			if err := repopg.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		c.pool = pool
		return repopg.NewWithPool(pool, codec), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres and optionally sets search_path for the session.
// It fails if the schema (when provided) does not exist.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	pool, err := newPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(ctx context.Context, config StorageBackendConfig) (marshall.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		fsConfig := fsstorage.Config{
			BaseDir:   getString(config.Config, "base_dir", "./data/exports"),
			URLPrefix: getString(config.Config, "url_prefix", ""),
		}
		return fsstorage.New(fsConfig)

	case "s3":
		s3Config := s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			Prefix:                 getString(config.Config, "prefix", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			PresignDuration:        getInt(config.Config, "presign_duration", 3600),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		}
		store, err := s3storage.NewWithContext(ctx, s3Config)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}

func getInt(config map[string]interface{}, key string, defaultValue int) int {
	if value, exists := config[key]; exists {
		switch v := value.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case string:
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
	}
	return defaultValue
}
