package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/circuitbreaker"
	"github.com/aman-churiwal/thought-partner/internal/config"
	"github.com/aman-churiwal/thought-partner/internal/llm"
	"github.com/aman-churiwal/thought-partner/internal/logger"
	"github.com/aman-churiwal/thought-partner/internal/ratelimit"
	"github.com/aman-churiwal/thought-partner/internal/repository"
	"github.com/aman-churiwal/thought-partner/internal/server"
	"github.com/aman-churiwal/thought-partner/internal/service"
	"github.com/aman-churiwal/thought-partner/internal/shield"
	"github.com/aman-churiwal/thought-partner/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	// Load env if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Server.Environment, cfg.Server.LogLevel); err != nil {
		panic("failed to initialise logger: " + err.Error())
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redis *storage.RedisClient
	if cfg.Shield.Store == "redis" {
		redis, err = storage.NewRedis(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "addr", cfg.Redis.GetRedisAddr(), "error", err)
		}
		defer redis.Close()
		logger.Info("Connected to redis successfully")
	}

	var sinks []shield.EventSink
	var analytics *service.SecurityAnalyticsService
	var postgres *storage.Postgres
	recorderDone := make(chan struct{})
	close(recorderDone)

	if cfg.Postgres.DSN != "" {
		postgres, err = storage.NewPostgres(cfg.Postgres.DSN, cfg.Server.LogLevel == "debug")
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer postgres.Close()

		if err := postgres.AutoMigrate(); err != nil {
			logger.Fatal("Failed to migrate database", "error", err)
		}
		logger.Info("Connected to database successfully")

		repo := repository.NewSecurityEventRepository(postgres)
		recorder := service.NewSecurityEventRecorder(repo, 1000, cfg.Postgres.EventRetention)
		recorderDone = make(chan struct{})
		go func() {
			defer close(recorderDone)
			recorder.Run(ctx)
		}()

		sinks = append(sinks, recorder)
		analytics = service.NewSecurityAnalyticsService(repo)
	}

	store, err := ratelimit.NewStore(cfg.Shield.Store, redis)
	if err != nil {
		logger.Fatal("Failed to create quota store", "error", err)
	}

	limiter := ratelimit.NewFixedWindow(store, cfg.Shield.MaxRequestsPerWindow, cfg.Shield.Window, cfg.Shield.BlockDuration)
	go ratelimit.NewSweeper(store, cfg.Shield.SweepInterval).Run(ctx)

	sh := shield.New(cfg.Shield, limiter, sinks...)

	provider, breakers, err := newProvider(cfg.LLM)
	if err != nil {
		logger.Fatal("Failed to create LLM provider", "error", err)
	}

	deps := server.Dependencies{
		Shield:    sh,
		Chat:      service.NewChatService(provider, service.NewConversationStore(0, 0)),
		Breakers:  breakers,
		Analytics: analytics,
		Redis:     redis,
		Postgres:  postgres,
	}
	if cfg.AdminEnabled() {
		deps.Auth = service.NewAuthService(cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.Admin.JWTExpiry)
	}

	srv := server.New(cfg, deps)

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// stop the sweeper and flush pending security events
	cancel()
	<-recorderDone

	logger.Info("Server exited")
}

// newProvider picks the OpenAI compatible client when an API key is set and
// the offline echo provider otherwise.
func newProvider(cfg config.LLMConfig) (llm.Provider, []*circuitbreaker.CircuitBreaker, error) {
	if cfg.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, replies come from the echo provider")
		return llm.EchoProvider{}, nil, nil
	}

	balancer, err := llm.NewBalancer(cfg.Balancer)
	if err != nil {
		return nil, nil, err
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:        "llm",
		MaxFailures: 5,
		Timeout:     30 * time.Second,
	})

	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		BaseURLs: cfg.BaseURLs,
		Balancer: balancer,
	})

	logger.Info("LLM provider configured",
		"model", cfg.Model,
		"endpoints", len(cfg.BaseURLs),
		"balancer", balancer.Name(),
	)

	return llm.NewGuardedProvider(provider, breaker), []*circuitbreaker.CircuitBreaker{breaker}, nil
}
