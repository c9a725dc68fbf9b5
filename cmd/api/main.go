package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/backend/internal/adapters/cache"
	"github.com/clinicdesk/backend/internal/adapters/database"
	"github.com/clinicdesk/backend/internal/adapters/events"
	"github.com/clinicdesk/backend/internal/api/handlers"
	"github.com/clinicdesk/backend/internal/api/routes"
	"github.com/clinicdesk/backend/internal/application/services"
	"github.com/clinicdesk/backend/internal/domain/providers"
	"github.com/clinicdesk/backend/internal/infrastructure/clients/postgres"
	"github.com/clinicdesk/backend/internal/infrastructure/clients/redis"
	"github.com/clinicdesk/backend/internal/infrastructure/observability"
	"github.com/clinicdesk/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// OpenTelemetry is optional; the engine runs fine without an exporter
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis is optional: without it the engine skips caching and events
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without cache and events")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	categoryAdapter := database.NewCategoryAdapter(pgClient)
	assignmentAdapter := database.NewAssignmentAdapter(pgClient)
	scheduleAdapter := database.NewScheduleAdapter(pgClient)
	appointmentAdapter := database.NewAppointmentAdapter(pgClient)
	taskAdapter := database.NewTaskAdapter(pgClient)

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		defer eventBus.Close()
	}

	availabilityService := services.NewAvailabilityService(
		categoryAdapter,
		assignmentAdapter,
		scheduleAdapter,
		appointmentAdapter,
		cacheProvider,
		metrics,
		cfg.Scheduling.AvailabilityCacheTTL,
	)
	selectionService := services.NewSelectionService(assignmentAdapter)
	allocationService := services.NewAllocationService(
		categoryAdapter,
		taskAdapter,
		appointmentAdapter,
		availabilityService,
		selectionService,
		eventBus,
		metrics,
		cfg.Scheduling.LockWaitTimeout,
	)

	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService)
	taskHandler := handlers.NewTaskHandler(allocationService)

	router := routes.NewRouter(availabilityHandler, taskHandler, metrics)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
