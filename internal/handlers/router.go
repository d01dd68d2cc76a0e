package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mintgate/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

const (
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

type routerConfig struct {
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	cors        *cors.Options

	pricing RouteRegistrar
	orders  RouteRegistrar
	static  RouteRegistrar
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

// NewRouter constructs the chi router with shared middleware and the API routes.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()

	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	corsOptions := cfg.cors
	if corsOptions == nil {
		corsOptions = defaultCORSOptions()
	}
	r.Use(cors.Handler(*corsOptions))

	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	if cfg.pricing != nil {
		cfg.pricing(r)
	}
	if cfg.orders != nil {
		cfg.orders(r)
	}
	if cfg.static != nil {
		cfg.static(r)
	}

	return r
}

// defaultCORSOptions allows any origin so the widget can be embedded on third-party pages.
func defaultCORSOptions() *cors.Options {
	return &cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers used for the probe endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithCORSOptions overrides the permissive default CORS policy.
func WithCORSOptions(options cors.Options) Option {
	return func(cfg *routerConfig) {
		cfg.cors = &options
	}
}

// WithPricingRoutes configures the registrar responsible for pricing endpoints.
func WithPricingRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.pricing = reg
	}
}

// WithOrderRoutes configures the registrar responsible for order endpoints.
func WithOrderRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.orders = reg
	}
}

// WithStaticRoutes configures the registrar responsible for widget assets.
func WithStaticRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.static = reg
	}
}
