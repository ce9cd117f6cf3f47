package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm/logger"

	"github.com/openlews/openlews/internal/config"
	"github.com/openlews/openlews/internal/database"
	"github.com/openlews/openlews/internal/handlers"
	"github.com/openlews/openlews/internal/jobs"
	"github.com/openlews/openlews/internal/middleware"
	"github.com/openlews/openlews/internal/notify"
	"github.com/openlews/openlews/internal/observability"
	"github.com/openlews/openlews/internal/services"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting landslide early-warning service...")

	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/auth/login",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	// Database
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	if err := database.InitializeDefaults(); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}

	db := database.GetDB()

	// Optional YAML tuning overrides
	if cfg.TuningFile != "" {
		tuning, err := config.LoadTuning(cfg.TuningFile)
		if err != nil {
			log.Fatalf("Failed to load detection tuning: %v", err)
		}
		settings, err := database.GetOrCreateDetectionSettings(db)
		if err != nil {
			log.Fatalf("Failed to load detection settings: %v", err)
		}
		if tuning.Apply(settings) {
			if err := database.ValidateDetectionSettings(settings); err != nil {
				log.Fatalf("Invalid detection tuning: %v", err)
			}
			if err := database.UpdateDetectionSettings(db, settings); err != nil {
				log.Fatalf("Failed to apply detection tuning: %v", err)
			}
			log.Printf("Applied detection tuning overrides from %s", cfg.TuningFile)
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.New(registry)

	// Stores and services
	telemetryStore := database.NewTelemetryStore(db)
	alertStore := database.NewAlertStore(db)
	contextService := services.NewContextService(db)
	assessor := services.NewAssessor()

	// Notification sinks: log always, Slack when configured, plus the
	// WebSocket feed for dashboards
	hub := notify.NewHub()
	go hub.Run()

	notifiers := notify.Multi{notify.LogNotifier{}, hub}
	slackSettings, err := database.GetSlackSettings()
	if err != nil {
		log.Printf("Warning: Could not load Slack settings: %v", err)
	} else if slackSettings.IsActive() {
		notifiers = append(notifiers, notify.NewSlackNotifier(slackSettings))
		log.Printf("Slack notifications ENABLED (channel %s)", slackSettings.AlertsChannel)
	} else {
		log.Printf("Slack notifications DISABLED (configure in Settings)")
	}

	lifecycle := services.NewLifecycleService(alertStore, notifiers, assessor)

	// Background jobs
	detectionJob := jobs.NewDetectionJob(db, telemetryStore, alertStore, contextService, assessor, lifecycle, metrics)
	expiryMonitor := jobs.NewExpiryMonitor(alertStore)

	stop := make(chan struct{})
	go detectionJob.Start(stop)
	go expiryMonitor.Start(jobs.ExpiryCheckInterval, stop)
	log.Printf("Detection job and expiry monitor started")

	// HTTP server
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	apiHandler := handlers.NewAPIHandler(alertStore, telemetryStore, hub, metricsHandler)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware)

	mux := http.NewServeMux()
	apiHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)

	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	handler := middleware.RequestIDMiddleware(corsMiddleware.Wrap(jwtAuthMiddleware.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)
	log.Printf("Live alert feed: ws://localhost:%d/ws/alerts", cfg.HTTPPort)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")
	close(stop)

	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Shutdown complete")
}
