package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"rentalportal/internal/adapter/api"
	"rentalportal/internal/adapter/api/handler"
	apimiddleware "rentalportal/internal/adapter/api/middleware"
	"rentalportal/internal/adapter/api/router"
	"rentalportal/internal/adapter/repository"
	"rentalportal/internal/infrastructure/marketapi"
	"rentalportal/internal/infrastructure/ratelimit"
	"rentalportal/internal/usecase"
	"rentalportal/pkg/config"
	"rentalportal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.NewKeyValueStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open identity store: %v", err)
	}
	defer store.Close()

	identityRepo := repository.NewKVIdentityRepository(store, cfg.StoreNamespace)
	backendClient := marketapi.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, cfg.BackendRPS)

	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine(ctx, 10*time.Minute)

	registry := usecase.NewPortalRegistry(usecase.PortalDeps{
		Identities:     identityRepo,
		RateLimiter:    rateLimiter,
		MinTokenLength: cfg.MinTokenLength,
		PollInterval:   cfg.UnreadPollInterval,
		ReconcileDelay: cfg.UnreadReconcileDelay,
		Backend: func(session *usecase.SessionUseCase) usecase.Backend {
			// a 401 clears the credential that was sent, unless the session has
			// moved on to another one since
			return backendClient.Bind(session, func(rejected string) {
				session.ClearInvalidToken(context.Background(), rejected)
			})
		},
	})
	defer registry.Close()

	handler.Setup(registry)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(apimiddleware.Metrics())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("%s %s %d %v", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	e.Validator = api.NewValidator()

	portalMiddleware := apimiddleware.NewPortalMiddleware(registry)
	authMiddleware := apimiddleware.NewAuthMiddleware()

	router.Setup(e, portalMiddleware, authMiddleware, rateLimiter)

	go func() {
		logger.Info("Starting portal gateway on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			logger.Error("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down portal gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}
