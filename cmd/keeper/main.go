// Command keeper implements the veloguard station monitoring service.
//
// The keeper runs a continuous loop that:
//  1. Collects station status history from a configured feed
//  2. Derives transaction and idle-run features per station
//  3. Profiles stations into activity tiers
//  4. Trains one anomaly detection model per station
//  5. Stores model artifacts for on-demand scoring
//
// The keeper serves an HTTP API on port 8080 (configurable) providing:
//   - GET /stations/anomaly?station=<id> - Score a station's recent activity
//   - GET /stations/forecast?station=<id>&target=<column>&horizon=<dur> - Forecast availability
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	keeper \
//	  -storage=redis \
//	  -redis-addr=localhost:6379 \
//	  -seed=2020 \
//	  -interval=10m
//
// Environment variables:
//
//	LISTEN            - HTTP listen address (default: :8080)
//	STORAGE           - Storage backend: memory or redis (default: memory)
//	REDIS_ADDR        - Redis server address
//	SEED              - Random seed for model training (default: 2020)
//	STEEPNESS         - Logistic steepness for anomaly scores (default: 20)
//	EXCLUSION_START   - Start of the training exclusion window (YYYY-MM-DD)
//	EXCLUSION_END     - End of the training exclusion window (YYYY-MM-DD)
//	EXCLUDED_STATIONS - Comma-separated station IDs excluded from training
//	INTERVAL          - Training loop interval (default: 10m)
//	WINDOW            - Historical window collected for training (default: 1440h)
//	ADAPTER_*         - Feed adapter settings (ADAPTER_URL, ADAPTER_STATION_PATH, ...)
//	LOG_LEVEL         - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT        - Logging format: text, json (default: text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veloguard/veloguard/cmd/keeper/config"
	"github.com/veloguard/veloguard/cmd/keeper/logger"
	"github.com/veloguard/veloguard/cmd/keeper/metrics"
	"github.com/veloguard/veloguard/cmd/keeper/router"
	"github.com/veloguard/veloguard/pkg/adapters"
	"github.com/veloguard/veloguard/pkg/anomaly"
	"github.com/veloguard/veloguard/pkg/httpx"
	"github.com/veloguard/veloguard/pkg/profile"
	"github.com/veloguard/veloguard/pkg/storage"
	veloguardtls "github.com/veloguard/veloguard/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	log.Info("starting veloguard keeper",
		"version", version,
		"storage", cfg.Storage,
		"seed", cfg.Seed,
	)

	adapter := buildAdapter(cfg, log)

	store := buildStore(cfg, log)
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}()
	}

	registry := anomaly.NewRegistry(store)

	trainCfg := anomaly.TrainConfig{
		Filter: profile.FilterConfig{
			ExclusionStart:   cfg.ExclusionStart,
			ExclusionEnd:     cfg.ExclusionEnd,
			ExcludedStations: cfg.ExcludedStations,
		},
		Seed:      cfg.Seed,
		Steepness: cfg.Steepness,
	}

	m := metrics.New(adapter.Name())

	k := New(adapter, registry, trainCfg, cfg.Window, log, m)

	mux := router.SetupRoutes(k, registry, cfg.Seed, log, m)
	handler := httpx.RecoveryMiddleware(log)(httpx.LoggingMiddleware(log)(mux))
	httpServer := httpx.NewServer(cfg.Listen, handler, log)

	if cfg.TLS.Enabled {
		tlsConfig, err := veloguardtls.NewServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			log.Error("failed to build TLS config", "error", err)
			os.Exit(1)
		}
		httpServer.SetTLSConfig(tlsConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := k.Run(ctx, cfg.Interval); err != nil && err != context.Canceled {
			log.Error("training loop failed", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			serverErr <- httpServer.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErr <- httpServer.Start()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	log.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}

// buildAdapter constructs the station feed adapter from the generic
// ADAPTER_* configuration map.
func buildAdapter(cfg *config.Config, log *slog.Logger) adapters.Adapter {
	ac := cfg.AdapterConfig

	adapter := &adapters.HTTPAdapter{
		URL:             ac["url"],
		Method:          ac["method"],
		Body:            ac["body"],
		StationPath:     ac["stationPath"],
		TimestampPath:   ac["timestampPath"],
		StandsPath:      ac["standsPath"],
		BikesPath:       ac["bikesPath"],
		StatusPath:      ac["statusPath"],
		TimestampFormat: ac["timestampFormat"],
	}
	if token, ok := ac["token"]; ok {
		adapter.TemplateVars = map[string]string{"Token": token}
	}

	if err := adapter.ValidateConfig(); err != nil {
		log.Error("invalid adapter configuration", "error", err)
		os.Exit(1)
	}
	return adapter
}

// buildStore constructs the model artifact store.
func buildStore(cfg *config.Config, log *slog.Logger) storage.Store {
	switch cfg.Storage {
	case "redis":
		store, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			log.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		log.Info("using redis storage", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
		return store
	default:
		log.Info("using in-memory storage")
		return storage.NewMemoryStore()
	}
}
