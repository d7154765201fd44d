// Package main provides the entrypoint for the GF3D query server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/gf3d/gf3dserver/internal/api"
	"github.com/gf3d/gf3dserver/internal/api/middleware"
	"github.com/gf3d/gf3dserver/internal/config"
	"github.com/gf3d/gf3dserver/internal/gfdb"
	"github.com/gf3d/gf3dserver/internal/gfdb/bridge"
	"github.com/gf3d/gf3dserver/internal/gfdb/hdf5header"
	"github.com/gf3d/gf3dserver/internal/provider/resilience"
	"github.com/gf3d/gf3dserver/internal/registry"
	"github.com/gf3d/gf3dserver/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "gf3dserver"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}
	log = log.Level(cfg.LogLevel())

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Server.Environment).
		Msg("starting GF3D query server")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Logger:         log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize telemetry")
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		return err
	}

	reg, err := registry.New(cfg.Databases)
	if err != nil {
		log.Error().Err(err).Msg("failed to build database registry")
		return err
	}
	if reg.Len() == 0 {
		log.Warn().Msg("no databases configured, set GFDB_DATABASES or databases in the config file")
	}
	for _, alias := range reg.Aliases() {
		dir, _ := reg.Resolve(alias) //nolint:errcheck // alias comes from the registry
		log.Info().Str("db", alias).Str("path", dir).Msg("database registered")
	}

	if cfg.Subset.ScratchDir != "" {
		if err := os.MkdirAll(cfg.Subset.ScratchDir, 0o750); err != nil {
			log.Error().Err(err).Str("scratch_dir", cfg.Subset.ScratchDir).Msg("failed to create scratch directory")
			return err
		}
	}

	subsets := bridge.New(bridge.Config{
		Command: cfg.Subset.Command,
		Timeout: cfg.Subset.Timeout,
		Logger:  log.With().Str("component", "subset-bridge").Logger(),
	})
	breakers := resilience.NewRegistry()
	breakers.Register(subsets.Breaker())

	router := api.NewRouter(api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      metrics,
		Catalog:      reg,
		Library:      gfdb.NewComposite(hdf5header.NewReader(), subsets),
		Breakers:     breakers,
		DocsURL:      cfg.DocsURL,
		StrictStatus: cfg.Server.StrictStatus,
		ScratchDir:   cfg.Subset.ScratchDir,
		ExposeErrors: cfg.Subset.ExposeErrors,
		RateLimit:    cfg.RateLimit,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Int("databases", reg.Len()).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
