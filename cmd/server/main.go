package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hiroki-koketsu/taskboard/internal/config"
	"github.com/hiroki-koketsu/taskboard/internal/handler"
	"github.com/hiroki-koketsu/taskboard/internal/kvstore"
	"github.com/hiroki-koketsu/taskboard/internal/repository"
	"github.com/hiroki-koketsu/taskboard/internal/store"
	"github.com/hiroki-koketsu/taskboard/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Create a basic logger for startup (before OTel is initialized)
	startupLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		startupLogger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	startupLogger.Info("starting application",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("telemetry", cfg.TelemetryEnabled),
	)

	ctx := context.Background()

	// Initialize OpenTelemetry providers; logs go to the collector when enabled
	logger := telemetry.NewConsoleLogger(os.Stdout, cfg.LogLevel)
	if cfg.TelemetryEnabled {
		providers, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			startupLogger.Error("failed to initialize telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := providers.Shutdown(ctx); err != nil {
				startupLogger.Error("failed to shutdown telemetry", slog.Any("error", err))
			}
		}()
		logger = telemetry.NewBridgeLogger(cfg.ServiceName)
	}
	slog.SetDefault(logger)

	// Open durable storage
	var kv kvstore.Store
	if cfg.InMemory() {
		kv = kvstore.NewMemoryStore()
	} else {
		kv, err = kvstore.OpenSQLite(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open storage", slog.String("path", cfg.DBPath), slog.Any("error", err))
			os.Exit(1)
		}
	}
	defer kv.Close()

	// Initialize the simulated backend
	taskRepo, err := repository.NewTaskRepository(ctx, kv, repository.Options{
		StorageKey: cfg.StorageKey,
		Simulation: repository.NewRandomSimulation(cfg.APIDelay, cfg.APIErrorRate),
		Seed:       cfg.SeedDefaults,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to initialize task repository", slog.Any("error", err))
		os.Exit(1)
	}

	// Create metrics instruments
	meter := otel.Meter(cfg.ServiceName)
	metrics, err := telemetry.NewMetrics(meter, taskRepo.Count)
	if err != nil {
		logger.Error("failed to create metrics", slog.Any("error", err))
		os.Exit(1)
	}

	coord := store.New(taskRepo, store.Options{Logger: logger, Metrics: metrics})

	// A failed first load is surfaced through the coordinator's error slot
	if err := coord.Load(ctx); err != nil {
		logger.Warn("initial load failed", slog.Any("error", err))
	}

	// Initialize handlers
	taskHandler := handler.NewTaskHandler(coord, logger, metrics)

	// Create router
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint (excluded from tracing)
	r.Get("/health", taskHandler.Health)

	// API routes
	r.Mount("/api/v1", taskHandler.Routes())

	// Wrap router with OpenTelemetry HTTP instrumentation
	otelHandler := otelhttp.NewHandler(r, "http-server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      otelHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("server stopped")
}
