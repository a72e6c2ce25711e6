package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/api"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/auth"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/config"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/health"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/logging"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/middleware"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/ratelimit"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/town"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/tracing"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/transport"
	"github.com/townsquare-live/townsquare/backend/go/pkg/videotoken"
)

func main() {
	ctx := context.Background()

	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			envLoaded = true
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.Development()); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	if !envLoaded {
		logging.Warn(ctx, "No .env file found in any expected location, relying on environment variables")
	}

	// --- Tracing (optional) ---
	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, "towns-backend", cfg.OTLPEndpoint)
		if err != nil {
			logging.Error(ctx, "Failed to initialize tracer", zap.Error(err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logging.Error(shutdownCtx, "Failed to shut down tracer", zap.Error(err))
			}
		}()
	}

	// --- Video token source ---
	var tokens town.VideoTokenSource
	var tokenChecker health.Checker
	switch cfg.VideoTokenMode {
	case "remote":
		client := videotoken.NewRemoteClient(cfg.VideoServiceURL, cfg.VideoAPIKey)
		tokens = client
		tokenChecker = client
		logging.Info(ctx, "Video tokens minted by remote provider", zap.String("url", cfg.VideoServiceURL))
	default:
		secret := cfg.VideoAPISecret
		if secret == "" {
			logging.Warn(ctx, "No TOWNS_VIDEO_API_SECRET set - using an ephemeral signing secret. Tokens will not survive a restart. DO NOT USE IN PRODUCTION")
			secret = auth.NewTownPassword()
		}
		signer := videotoken.NewLocalSigner(cfg.VideoAPIKey, secret,
			time.Duration(cfg.VideoTokenTTLSeconds)*time.Second)
		tokens = signer
		tokenChecker = signer
		logging.Info(ctx, "Video tokens minted locally")
	}

	// --- Core state ---
	store := town.NewTownsStore(tokens, cfg.MaxPlayersPerTown)

	limiter, err := ratelimit.NewRateLimiter(cfg.RateLimitAPI, cfg.RateLimitWs)
	if err != nil {
		logging.Error(ctx, "Failed to build rate limiter", zap.Error(err))
		os.Exit(1)
	}

	hub := transport.NewHub(store, limiter)
	restHandler := api.NewHandler(store)
	healthHandler := health.NewHandler(tokenChecker)

	// --- Set up Server ---
	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if cfg.OTLPEndpoint != "" {
		router.Use(otelgin.Middleware("towns-backend"))
	}

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	} else {
		corsConfig.AllowOrigins = auth.GetAllowedOriginsFromEnv("TOWNS_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Routing
	apiGroup := router.Group("/", limiter.Middleware())
	restHandler.RegisterRoutes(apiGroup)

	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/town/:townID", hub.ServeWs)
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health probes
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	// --- Graceful Shutdown ---
	go func() {
		logging.Info(ctx, "Towns server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "Shutting down server...")

	// Close every town first so subscribed sockets get townClosing.
	store.Shutdown(ctx)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	logging.Info(ctx, "Server exiting")
}
