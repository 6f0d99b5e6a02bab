package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/backend"
	"finboard/internal/cache"
	"finboard/internal/cli"
	"finboard/internal/dashboard"
	apphttp "finboard/internal/http"
	"finboard/internal/log"
	"finboard/internal/sources"
	"finboard/internal/stats"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)
	src, err := factory.CreateSource(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data source", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	store, err := factory.CreateStore(backendCfg)
	if err != nil {
		logger.Error("Failed to initialize cache store", log.FieldError, err, "backend", cfg.CacheBackend)
		os.Exit(1)
	}

	overrides, err := cfg.TTLOverrides()
	if err != nil {
		logger.Error("Failed to load TTL overrides", log.FieldError, err, "path", cfg.CacheTTLFile)
		os.Exit(1)
	}
	ttls, err := dashboard.DefaultTTLs().WithOverrides(overrides)
	if err != nil {
		logger.Error("Invalid TTL overrides", log.FieldError, err, "path", cfg.CacheTTLFile)
		os.Exit(1)
	}

	loc := cfg.Location()
	manager := cache.NewManager(logger)
	manager.StartCleanup(cfg.CacheSweepInterval)

	sessions := dashboard.NewSessions(dashboard.SessionsConfig{
		Source:    src.Source,
		Store:     store.Store,
		Namespace: cfg.CacheNamespace,
		Cache: cache.Options{
			MaxEntries:    cfg.CacheMaxEntries,
			DefaultTTL:    cfg.CacheDefaultTTL,
			MaxEntryBytes: cfg.CacheMaxEntryBytes,
		},
		Engine:      stats.NewEngine(loc),
		TTLs:        ttls,
		Manager:     manager,
		Logger:      logger,
		IdleTimeout: cfg.SessionIdleTimeout,
	})

	var amqpClient *amqp.Client
	var publisher apphttp.Invalidator
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
	} else {
		logger.Info("Cache invalidation events disabled - no AMQP_URL provided")
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:      ":" + cfg.Port,
		Sessions:  sessions,
		Location:  loc,
		Logger:    logger,
		Publisher: publisher,
		Ready:     readiness(store.Store),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		manager.Stop()
		if amqpClient != nil {
			amqpClient.Close()
		}
		closeAll(logger, store.Cleanup, src.Cleanup)
	})

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeInvalidations(ctx, func(ctx context.Context, msg *amqp.InvalidationMessage) error {
				e, err := sources.ParseEntity(msg.Entity)
				if err != nil {
					// Requeueing an unknown entity would loop forever.
					logger.WarnContext(ctx, "Ignoring invalidation for unknown entity", log.FieldEntity, msg.Entity)
					return nil
				}
				return sessions.Invalidate(msg.UserID, e)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Invalidation consumer stopped", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting finboard server",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"cache_backend", cfg.CacheBackend,
		"timezone", loc.String())
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// readiness pings the cache store when it supports it.
func readiness(store cache.Store) func(ctx context.Context) error {
	pinger, ok := store.(interface {
		Ping(ctx context.Context) error
	})
	if !ok {
		return nil
	}
	return pinger.Ping
}

func closeAll(logger *log.Logger, cleanups ...backend.CleanupFunc) {
	for _, cleanup := range cleanups {
		if cleanup == nil {
			continue
		}
		if err := cleanup(); err != nil {
			logger.Error("Cleanup failed", log.FieldError, err)
		}
	}
}
