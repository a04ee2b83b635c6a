package api

import (
	"gymbook/internal/auth"
	"gymbook/internal/config"
	"gymbook/internal/domain" // Needed for RoleMiddleware
	"gymbook/internal/service"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Services bundles everything the handlers call into.
type Services struct {
	Accounts   service.AccountService
	Roster     service.RosterService
	Reviews    service.ReviewService
	Sessions   service.SessionService
	Directory  service.DirectoryService
	Exports    service.ExportService
	Reconciler ReconcileRunner
}

// RouterOptions carries the cross-cutting settings of the HTTP layer.
type RouterOptions struct {
	Tokens         *auth.TokenManager
	RequestTimeout time.Duration
	RateLimit      config.RateLimitConfig
	Redis          redis.Scripter // nil disables rate limiting
	Logger         *slog.Logger
}

// NewRouter builds a gin engine with the standard middleware chain and all routes mounted.
func NewRouter(services Services, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(opts.Logger), PrometheusMiddleware(), TimeoutMiddleware(opts.RequestTimeout))
	SetupRoutes(router, services, opts)
	return router
}

func SetupRoutes(router *gin.Engine, services Services, opts RouterOptions) {
	accountHandler := NewAccountHandler(services.Accounts)
	rosterHandler := NewRosterHandler(services.Roster, services.Reviews)
	sessionHandler := NewSessionHandler(services.Sessions)
	trainerHandler := NewTrainerHandler(services.Sessions)
	visitorHandler := NewVisitorHandler(services.Directory)
	managerHandler := NewManagerHandler(services.Directory, services.Exports, services.Reconciler)

	authMiddleware := AuthMiddleware(opts.Tokens)
	rateLimiter := RateLimitMiddleware(opts.RateLimit, opts.Redis, opts.Logger)

	visitorOnly := RoleMiddleware(domain.RoleVisitor)
	staffOnly := RoleMiddleware(domain.RoleTrainer, domain.RoleManager)
	managerOnly := RoleMiddleware(domain.RoleManager)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(authMiddleware, rateLimiter)
	{
		protected.GET("/me", accountHandler.Me)

		// --- Booking ---
		protected.POST("/book/:sessionId", visitorOnly, rosterHandler.Book)
		protected.DELETE("/unbook/:sessionId", visitorOnly, rosterHandler.Unbook)
		protected.POST("/review/:sessionId", visitorOnly, rosterHandler.SubmitReview)

		// --- Roster management by the session owner ---
		protected.POST("/addVisitor/:visitorId/:sessionId", staffOnly, rosterHandler.AddVisitor)
		protected.DELETE("/removeVisitor/:visitorId/:sessionId", staffOnly, rosterHandler.RemoveVisitor)

		// --- Session catalog ---
		sessionGroup := protected.Group("/sessions")
		{
			sessionGroup.POST("", staffOnly, sessionHandler.CreateSession)
			sessionGroup.GET("", staffOnly, sessionHandler.ListSessions)
			sessionGroup.GET("/:sessionId", sessionHandler.GetSession)
			sessionGroup.PUT("/:sessionId", staffOnly, sessionHandler.UpdateSession)
		}

		trainerGroup := protected.Group("/trainer")
		trainerGroup.Use(staffOnly)
		{
			trainerGroup.GET("/sessions", trainerHandler.GetMySessions)
			trainerGroup.GET("/visitors", trainerHandler.GetMyVisitors)
			trainerGroup.GET("/reviews", trainerHandler.GetMyReviews)
		}

		visitorGroup := protected.Group("/visitor")
		visitorGroup.Use(visitorOnly)
		{
			visitorGroup.GET("/sessions", visitorHandler.GetMySessions)
			visitorGroup.GET("/trainers", visitorHandler.GetMyTrainers)
		}

		managerGroup := protected.Group("/manager")
		managerGroup.Use(managerOnly)
		{
			managerGroup.GET("/trainers", managerHandler.ListTrainers)
			managerGroup.POST("/trainers", managerHandler.CreateTrainer)
			managerGroup.PUT("/trainers/:trainerId", managerHandler.UpdateTrainer)
			managerGroup.DELETE("/trainers/:trainerId", managerHandler.DeleteTrainer)
			managerGroup.GET("/topVisitors", managerHandler.GetTopVisitors)
			managerGroup.GET("/sessions/reviews", managerHandler.GetSessionsWithReviews)
			managerGroup.POST("/sessions/:sessionId/export", managerHandler.ExportRoster)
			managerGroup.POST("/reconcile", managerHandler.Reconcile)
		}
	}
}
