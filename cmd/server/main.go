package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"brainpulse/internal/catalog"
	"brainpulse/internal/config"
	"brainpulse/internal/database"
	"brainpulse/internal/events"
	"brainpulse/internal/handlers"
	"brainpulse/internal/logging"
	"brainpulse/internal/repository"
	"brainpulse/internal/scheduler"
	"brainpulse/internal/security"
	"brainpulse/internal/service"
	"brainpulse/internal/tasks"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	handlers.SetDevMode(cfg.DevMode)

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Infof("Database connection established (type: %s)", cfg.DatabaseType)

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Info("Migrations completed successfully")

	// Word corpus
	words := catalog.New(corpusFS(cfg.CorpusPath))
	if err := words.Warm(ctx, catalog.Tiers...); err != nil {
		log.Fatalf("Failed to load word corpus: %v", err)
	}

	// Follow-up tasks and events
	queue := tasks.New(cfg.TaskWorkers, cfg.TaskRetries)
	publisher, err := events.New(cfg.RabbitMQURI, cfg.RabbitMQExchange)
	if err != nil {
		log.Fatalf("Failed to connect event publisher: %v", err)
	}
	defer publisher.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	trainingRepo := repository.NewTrainingRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	// Initialize services
	var mailer service.Mailer
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL)
	if err != nil {
		log.Warnf("Email disabled: %v", err)
	} else {
		mailer = emailService
	}

	authService := service.NewAuthService(userRepo, security.NewTokenIssuer(cfg.JWTSecret), mailer, cfg.SessionDuration)
	tracker := service.NewExclusionTracker(usageRepo)
	selector := service.NewContentSelector(words, tracker, queue, cfg.ExclusionWindow, nil)
	trainingService := service.NewTrainingService(db, trainingRepo, usageRepo, service.NewProgressAggregator(trainingRepo), queue, publisher)

	limiter := security.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)

	// Scheduled maintenance
	schedCfg := scheduler.DefaultConfig()
	schedCfg.UsageRetention = cfg.UsageRetention
	jobs := scheduler.New(schedCfg, tracker, authService, limiter)
	if err := jobs.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer jobs.Stop()

	// Initialize handlers
	middleware := handlers.NewMiddleware(authService, limiter)
	authHandler := handlers.NewAuthHandler(authService,
		handlers.NewOAuthProviders(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.FacebookClientID, cfg.FacebookClientSecret),
		cfg.OAuthRedirectBaseURL)
	trainingHandler := handlers.NewTrainingHandler(selector, trainingService, tracker, cfg.ExclusionWindow)
	healthHandler := handlers.NewHealthHandler(db)

	// Setup routes
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, middleware, authHandler, trainingHandler, healthHandler)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handlers.Logging(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	if err := queue.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("Pending tasks abandoned")
	}
}

// corpusFS returns the corpus directory, or the embedded corpus when path is empty
func corpusFS(path string) fs.FS {
	if path == "" {
		return catalog.EmbeddedFS()
	}
	return os.DirFS(path)
}
