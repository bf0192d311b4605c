package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/circuitbreaker"
	"github.com/aman-churiwal/thought-partner/internal/config"
	"github.com/aman-churiwal/thought-partner/internal/handler"
	"github.com/aman-churiwal/thought-partner/internal/logger"
	"github.com/aman-churiwal/thought-partner/internal/middleware"
	"github.com/aman-churiwal/thought-partner/internal/service"
	"github.com/aman-churiwal/thought-partner/internal/shield"
	"github.com/aman-churiwal/thought-partner/internal/storage"
	"github.com/gin-gonic/gin"
)

// Dependencies are built by main. Redis, Postgres, Auth and Analytics are
// optional and may be nil.
type Dependencies struct {
	Shield    *shield.Shield
	Chat      *service.ChatService
	Breakers  []*circuitbreaker.CircuitBreaker
	Auth      *service.AuthService
	Analytics *service.SecurityAnalyticsService
	Redis     *storage.RedisClient
	Postgres  *storage.Postgres
}

type Server struct {
	router     *gin.Engine
	config     *config.Config
	deps       Dependencies
	httpServer *http.Server
	started    time.Time
}

func New(cfg *config.Config, deps Dependencies) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:  gin.New(),
		config:  cfg,
		deps:    deps,
		started: time.Now(),
	}

	// Setup middleware
	s.setupMiddleware()

	// Setup routes
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	chatHandler := handler.NewChatHandler(s.deps.Chat, s.deps.Shield)

	api := s.router.Group("/api/chat")
	{
		api.POST("", middleware.Shield(s.deps.Shield), chatHandler.Stream)
		api.POST("/messages", middleware.RequireAPIKey(s.deps.Shield), chatHandler.SaveAssistantMessage)
	}

	if s.deps.Auth == nil {
		logger.Info("Admin routes disabled, ADMIN_JWT_SECRET not set")
		return
	}

	authHandler := handler.NewAuthHandler(s.deps.Auth)
	systemHandler := handler.NewSystemHandler(s.deps.Shield.Limiter(), s.deps.Chat, s.deps.Breakers...)
	eventsHandler := handler.NewSecurityEventsHandler(s.deps.Analytics)

	s.router.POST("/admin/login", authHandler.Login)

	admin := s.router.Group("/admin", middleware.RequireAdmin(s.deps.Auth))
	{
		admin.GET("/status", systemHandler.Status)
		admin.DELETE("/quota", systemHandler.ResetQuota)
		admin.GET("/circuit-breakers", systemHandler.CircuitBreakerStatus)
		admin.POST("/circuit-breakers/:name/reset", systemHandler.ResetCircuitBreaker)
		admin.GET("/security-events", eventsHandler.GetEvents)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	healthy := true

	if s.deps.Redis != nil {
		redisHealthy := true
		if err := s.deps.Redis.Ping(ctx); err != nil {
			redisHealthy = false
			logger.Warn("Redis health check failed", "error", err)
		}
		checks["redis"] = redisHealthy
		healthy = healthy && redisHealthy
	}

	if s.deps.Postgres != nil {
		dbHealthy := true
		if err := s.deps.Postgres.Ping(ctx); err != nil {
			dbHealthy = false
			logger.Warn("Database health check failed", "error", err)
		}
		checks["database"] = dbHealthy
		healthy = healthy && dbHealthy
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "thought-partner",
		"version":   "1.0.0",
		"uptime":    time.Since(s.started).Seconds(),
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute, // chat replies are streamed
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Starting thought partner gateway",
		"addr", addr,
		"environment", s.config.Server.Environment,
	)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
