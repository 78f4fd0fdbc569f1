package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/implanttrace/healthbridge/internal/bridge"
	"github.com/implanttrace/healthbridge/internal/config"
	"github.com/implanttrace/healthbridge/internal/handler"
	healthrecordHandler "github.com/implanttrace/healthbridge/internal/handler/healthrecord"
	"github.com/implanttrace/healthbridge/internal/model"
	"github.com/implanttrace/healthbridge/internal/repository"
	"github.com/implanttrace/healthbridge/internal/repository/memory"
	"github.com/implanttrace/healthbridge/internal/repository/sqlite"
	"github.com/implanttrace/healthbridge/internal/router"
	"github.com/implanttrace/healthbridge/internal/service/healthrecord"
	"github.com/implanttrace/healthbridge/internal/service/permission"
	"github.com/implanttrace/healthbridge/internal/service/record"
	"github.com/implanttrace/healthbridge/pkg/logger"
	"github.com/implanttrace/healthbridge/pkg/messaging/redis"
	"github.com/implanttrace/healthbridge/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Log.Level))
	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	m := metrics.New("healthbridge")

	// Initialize durable storage
	var kv repository.KVStore
	if cfg.Storage.Path != "" {
		db, err := sqlite.NewDB(cfg.Storage.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open storage")
		}
		kv = sqlite.NewKVStore(db)
	} else {
		log.Warn().Msg("no storage path configured, records will not survive restart")
		kv = memory.NewKVStore()
	}
	defer kv.Close()

	ctx := context.Background()

	// Initialize services
	permOpts := []permission.Option{permission.WithMetrics(m)}
	if !cfg.Simulation.AutoGrant {
		permOpts = append(permOpts, permission.WithDecider(func(context.Context) (model.PermissionStatus, error) {
			return model.PermissionDenied, nil
		}))
	}
	perms, err := permission.NewService(ctx, kv, appLog, permOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize permission service")
	}

	records, err := record.NewStore(ctx, kv, appLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize record store")
	}

	// Select the platform bridge once at startup
	b := bridge.New(ctx, bridge.Config{
		PlatformURL:      cfg.Platform.URL,
		ProbeTimeout:     cfg.Platform.ProbeTimeout,
		StatusCacheTTL:   cfg.Platform.StatusCacheTTL,
		SimulatedLatency: cfg.Simulation.Latency,
	}, perms, records, appLog, m)

	// In native mode the consent prompt belongs to the platform
	if native, ok := b.(*bridge.Native); ok {
		perms.SetDecider(native.RequestAuthorization)
	}

	// Initialize the integration facade
	facadeOpts := []healthrecord.Option{healthrecord.WithMetrics(m)}
	if cfg.Redis.URL != "" {
		broker, err := redis.NewRedisBroker(redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     10,
			MinIdleConns: 2,
		}, &log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, change events disabled")
		} else {
			defer broker.Close()
			facadeOpts = append(facadeOpts, healthrecord.WithBroker(broker))
		}
	}
	svc := healthrecord.NewService(perms, b, appLog, facadeOpts...)

	// Initialize handlers and router
	h := handler.NewHandler()
	recordHandler := healthrecordHandler.NewHandler(svc)

	r := router.NewRouter(recordHandler, h, m, router.Config{})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("bridge", b.Variant()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
}
