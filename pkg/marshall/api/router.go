package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tendant/simple-marshall/pkg/marshall"
)

type routerOptions struct {
	logger     *slog.Logger
	jwtSecret  string
	compress   bool
	middleware []Middleware
}

// RouterOption configures NewRouter
type RouterOption func(*routerOptions)

// WithLogger sets the request and handler logger
func WithLogger(logger *slog.Logger) RouterOption {
	return func(o *routerOptions) {
		o.logger = logger
	}
}

// WithJWTSecret requires an HS256 bearer token on API routes
func WithJWTSecret(secret string) RouterOption {
	return func(o *routerOptions) {
		o.jwtSecret = secret
	}
}

// WithCompression gzips responses for clients that accept it
func WithCompression(enabled bool) RouterOption {
	return func(o *routerOptions) {
		o.compress = enabled
	}
}

// WithMiddleware adds middleware to the API routes, after authentication
func WithMiddleware(mw ...Middleware) RouterOption {
	return func(o *routerOptions) {
		o.middleware = append(o.middleware, mw...)
	}
}

// NewRouter builds the HTTP API for service. Routes are mounted at the
// root of the returned router; callers mount it under a prefix.
func NewRouter(service marshall.Service, opts ...RouterOption) *chi.Mux {
	o := routerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(o.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if o.compress {
		r.Use(CompressionMiddleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	items := NewItemHandler(service, o.logger)
	registry := NewRegistryHandler(service)
	exports := NewExportHandler(service, o.logger)

	r.Group(func(r chi.Router) {
		if o.jwtSecret != "" {
			for _, mw := range JWTMiddleware(NewJWTAuth(o.jwtSecret)) {
				r.Use(mw)
			}
		}
		for _, mw := range o.middleware {
			r.Use(mw)
		}

		r.Mount("/items", items.Routes())
		r.Mount("/namespaces", registry.NamespaceRoutes())
		r.Mount("/types", registry.TypeRoutes())
		r.Mount("/exports", exports.Routes())
	})

	return r
}
