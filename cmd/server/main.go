package main

import (
	"context"
	"errors"
	"gymbook/internal/api"
	"gymbook/internal/auth"
	"gymbook/internal/config"
	"gymbook/internal/events"
	"gymbook/internal/logging"
	"gymbook/internal/repository/mongo"
	"gymbook/internal/service"
	"gymbook/internal/storage"
	"gymbook/internal/tracing"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// @title Gym Session Booking API
// @version 1.0
// @description Sessions, bookings and reviews for visitors, trainers and managers.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Could not load config", "error", err)
		os.Exit(1)
	}
	logger := logging.SetupGlobalHandler(cfg.Tracing.ServiceName, cfg.Log.Level)

	// --- Tracing ---
	shutdownTracer, err := tracing.InitTracerProvider(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.Enabled)
	if err != nil {
		logger.Error("Failed to initialize tracer provider", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Error("Failed to shut down tracer provider", "error", err)
		}
	}()

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI, cfg.Database.Timeout)
	if err != nil {
		logger.Error("Could not connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error("Failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("Database connection established", "database", cfg.Database.Name)

	// --- Ensure Indexes ---
	// Unique usernames are enforced by index, so this must finish before serving.
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), time.Minute)
	if err := mongo.EnsureIndexes(indexCtx, appDB); err != nil {
		cancelIndex()
		logger.Error("Failed to ensure indexes", "error", err)
		os.Exit(1)
	}
	cancelIndex()

	// --- Initialize Repositories ---
	visitorRepo := mongo.NewMongoVisitorRepository(appDB)
	trainerRepo := mongo.NewMongoTrainerRepository(appDB)
	managerRepo := mongo.NewMongoManagerRepository(appDB)
	sessionRepo := mongo.NewMongoSessionRepository(appDB, cfg.Booking.ConditionalRetries)
	reviewRepo := mongo.NewMongoReviewRepository(appDB)
	reconciliationRepo := mongo.NewMongoReconciliationRepository(appDB)

	// --- Event Publisher ---
	publisher, err := events.NewPublisher(events.Config{
		Driver:   cfg.Events.Driver,
		NATSURL:  cfg.Events.NATSURL,
		AMQPURL:  cfg.Events.AMQPURL,
		Exchange: cfg.Events.Exchange,
	})
	if err != nil {
		logger.Error("Failed to initialize event publisher", "driver", cfg.Events.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()

	// --- Initialize Storage ---
	var fileStorage storage.FileStorage
	if cfg.S3.Enabled() {
		fileStorage, err = storage.NewS3Storage(context.Background(), cfg.S3)
		if err != nil {
			logger.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("S3 bucket not configured; roster exports are kept in memory")
		fileStorage = storage.NewMemoryStorage()
	}

	// --- Redis (rate limiting) ---
	var rdb *redis.Client
	if cfg.RateLimit.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// The limiter fails open, so an unreachable Redis is not fatal.
			logger.Warn("Redis is not reachable; requests will not be rate limited until it is", "addr", cfg.Redis.Addr, "error", err)
		}
		cancelPing()
		defer rdb.Close()
	}

	// --- Initialize Services ---
	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiration)
	if err != nil {
		logger.Error("Failed to initialize token manager", "error", err)
		os.Exit(1)
	}
	synchronizer := service.NewSynchronizer(sessionRepo, visitorRepo, reviewRepo, reconciliationRepo, publisher, logger)
	accountService := service.NewAccountService(visitorRepo, trainerRepo, managerRepo, tokens)
	reconciler := service.NewReconciler(sessionRepo, trainerRepo, visitorRepo, reviewRepo, reconciliationRepo, logger)
	services := api.Services{
		Accounts:   accountService,
		Roster:     service.NewRosterService(sessionRepo, visitorRepo, synchronizer, publisher, logger),
		Reviews:    service.NewReviewService(sessionRepo, visitorRepo, reviewRepo, synchronizer, publisher, logger, service.ReviewPolicy{RequireBooking: cfg.Booking.RequireBookingForReview}),
		Sessions:   service.NewSessionService(sessionRepo, trainerRepo, visitorRepo, reviewRepo, reconciliationRepo, cfg.Booking.DefaultMaxVisitors, logger),
		Directory:  service.NewDirectoryService(sessionRepo, visitorRepo, trainerRepo, reviewRepo, accountService),
		Exports:    service.NewExportService(sessionRepo, visitorRepo, fileStorage, logger),
		Reconciler: reconciler,
	}

	// --- Background reconciliation ---
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()
	if cfg.Reconcile.Interval > 0 {
		go reconciler.Run(appCtx, cfg.Reconcile.Interval)
	}

	// --- Initialize Gin Engine ---
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	redisScripter := redis.Scripter(nil)
	if rdb != nil {
		redisScripter = rdb
	}
	router := api.NewRouter(services, api.RouterOptions{
		Tokens:         tokens,
		RequestTimeout: cfg.Database.Timeout,
		RateLimit:      cfg.RateLimit,
		Redis:          redisScripter,
		Logger:         logger,
	})

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("ListenAndServe failed", "error", err)
	}
	logger.Info("Shutting down server...")
	stopApp()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exiting")
}
