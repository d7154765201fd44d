// Package api provides the HTTP routes of the gf3d query server.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/gf3d/gf3dserver/internal/api/handler"
	"github.com/gf3d/gf3dserver/internal/api/middleware"
	"github.com/gf3d/gf3dserver/internal/config"
	"github.com/gf3d/gf3dserver/internal/gfdb"
	"github.com/gf3d/gf3dserver/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Catalog  handler.Catalog
	Library  gfdb.Library
	Breakers *resilience.Registry

	DocsURL      string
	StrictStatus bool
	ScratchDir   string
	ExposeErrors bool

	// RateLimit disables limiting when Disabled is set. Zero limits fall
	// back to the middleware defaults.
	RateLimit config.RateLimitConfig
}

// NewRouter creates a new chi router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "gf3dserver"
	}
	docsURL := cfg.DocsURL
	if docsURL == "" {
		docsURL = config.DefaultDocsURL
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.ContentTypeText)      // Plain text unless a handler says otherwise

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Catalog, cfg.Breakers)
	docsHandler := handler.NewDocsHandler(docsURL)
	gatewayHandler := handler.NewGatewayHandler(handler.GatewayConfig{
		Catalog:      cfg.Catalog,
		Library:      cfg.Library,
		Logger:       cfg.Logger,
		StrictStatus: cfg.StrictStatus,
		ScratchDir:   cfg.ScratchDir,
		ExposeErrors: cfg.ExposeErrors,
	})

	standardRateLimit, subsetRateLimit := rateLimits(cfg.RateLimit)

	r.Route("/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
	})

	r.Group(func(r chi.Router) {
		r.Use(standardRateLimit)
		r.Get("/", docsHandler.Redirect)
		r.Get("/get-databases", gatewayHandler.Databases)
		r.Get("/get-station-availability", gatewayHandler.StationAvailability)
		r.Get("/get-db-info", gatewayHandler.DatabaseInfo)
	})

	// Subset extraction runs the external tool - strict rate limiting
	r.With(subsetRateLimit).Get("/get-subset", gatewayHandler.Subset)

	return r
}

func rateLimits(cfg config.RateLimitConfig) (standard, subset func(http.Handler) http.Handler) {
	if cfg.Disabled {
		passthrough := func(next http.Handler) http.Handler { return next }
		return passthrough, passthrough
	}

	standardCfg := middleware.StandardRateLimit
	subsetCfg := middleware.SubsetRateLimit
	if cfg.Window > 0 {
		standardCfg.WindowLength = cfg.Window
		subsetCfg.WindowLength = cfg.Window
	}
	if cfg.Standard > 0 {
		standardCfg.RequestLimit = cfg.Standard
	}
	if cfg.Subset > 0 {
		subsetCfg.RequestLimit = cfg.Subset
	}

	return middleware.RateLimitByIP(standardCfg), middleware.RateLimitByIP(subsetCfg)
}
