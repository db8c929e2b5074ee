package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"devpulse.app/pulse/common/id"
	"devpulse.app/pulse/common/llm"
	"devpulse.app/pulse/common/logger"
	"devpulse.app/pulse/common/otel"
	"devpulse.app/pulse/core/config"
	"devpulse.app/pulse/internal/aggregator"
	"devpulse.app/pulse/internal/http/middleware"
	httprouter "devpulse.app/pulse/internal/http/router"
	"devpulse.app/pulse/internal/narrative"
	"devpulse.app/pulse/internal/service"
	"devpulse.app/pulse/internal/source"
	"devpulse.app/pulse/internal/source/codehost"
	"devpulse.app/pulse/internal/source/tracker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "pulse starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	trackerCache, codeHostCache := buildCaches(ctx, cfg)

	retry := source.NewRetryPolicy(cfg.Source.RetryMaxAttempts)
	ttl := time.Duration(cfg.Source.CacheTTLSeconds) * time.Second

	trackerClient, err := tracker.New(tracker.Config{
		BaseURL:  cfg.Jira.BaseURL,
		Email:    cfg.Jira.Email,
		APIToken: cfg.Jira.APIToken,
	}, trackerCache, retry, ttl)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build tracker client", "error", err)
		os.Exit(1)
	}
	if !cfg.Jira.Enabled() {
		slog.WarnContext(ctx, "tracker disabled (no jira credentials configured)")
	}

	codeHostClient := codehost.New(codehost.Config{Token: cfg.GitHub.Token}, codeHostCache, retry, ttl)
	if cfg.GitHub.Token == "" {
		slog.WarnContext(ctx, "code host unauthenticated, rate limits will be tight")
	}

	var llmClient llm.Client
	if cfg.OpenAI.Enabled() {
		llmClient, err = llm.New(cfg.OpenAI)
		if err != nil {
			slog.ErrorContext(ctx, "failed to build llm client", "error", err)
			os.Exit(1)
		}
		slog.InfoContext(ctx, "generative narrative enabled", "model", llmClient.Model())
	} else {
		slog.InfoContext(ctx, "generative narrative disabled, template only")
	}

	answers := service.NewAnswerService(
		aggregator.New(trackerClient, codeHostClient),
		narrative.New(llmClient),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, answers)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// buildCaches picks the response-cache backend: Redis when configured,
// in-process memory otherwise. Each source gets its own keyspace.
func buildCaches(ctx context.Context, cfg config.Config) (source.Cache, source.Cache) {
	if !cfg.Redis.Enabled() {
		slog.InfoContext(ctx, "using in-memory response cache")
		return source.NewMemoryCache(), source.NewMemoryCache()
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected, using redis response cache")

	return source.NewRedisCache(redisClient, "pulse:tracker"),
		source.NewRedisCache(redisClient, "pulse:codehost")
}

func setupRouter(cfg config.Config, answers *service.AnswerService) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, answers)

	return router
}

const banner = `
██████╗ ██╗   ██╗██╗     ███████╗███████╗
██╔══██╗██║   ██║██║     ██╔════╝██╔════╝
██████╔╝██║   ██║██║     ███████╗█████╗
██╔═══╝ ██║   ██║██║     ╚════██║██╔══╝
██║     ╚██████╔╝███████╗███████║███████╗
╚═╝      ╚═════╝ ╚══════╝╚══════╝╚══════╝
`
