// ChatBotYard - chat widget configuration and session server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chatbotyard/chatbotyard/internal/api"
	"github.com/chatbotyard/chatbotyard/internal/assistant"
	"github.com/chatbotyard/chatbotyard/internal/config"
	"github.com/chatbotyard/chatbotyard/internal/identity"
	"github.com/chatbotyard/chatbotyard/internal/store"
	"github.com/chatbotyard/chatbotyard/internal/sweeper"
	"github.com/chatbotyard/chatbotyard/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	sqliteStore, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := sqliteStore.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	repo, err := store.NewCached(sqliteStore, cfg.ConfigCacheSize)
	if err != nil {
		slog.Error("Failed to initialize project cache", "error", err)
		os.Exit(1)
	}

	if cfg.SeedFile != "" {
		if _, err := store.LoadSeed(ctx, repo, cfg.SeedFile); err != nil {
			slog.Error("Failed to load seed file", "error", err, "path", cfg.SeedFile)
			os.Exit(1)
		}
	}

	// Assistant transport: gRPC when configured, canned replies otherwise.
	var replier assistant.Replier = assistant.NewCanned()
	var assistantHealth api.HealthChecker
	if cfg.Assistant.Addr != "" {
		grpcCfg := assistant.DefaultGrpcClientConfig(cfg.Assistant.Addr)
		grpcCfg.RequestTimeout = cfg.Assistant.Timeout
		grpcClient, err := assistant.NewGrpcClient(grpcCfg, logger)
		if err != nil {
			slog.Warn("Failed to connect to assistant, using canned replies", "error", err)
		} else {
			defer grpcClient.Close()
			replier = grpcClient
			assistantHealth = grpcClient
		}
	} else {
		slog.Info("ASSISTANT_ADDR not set, using canned replies")
	}

	csrf, err := identity.NewCSRF(cfg.CSRFSecret)
	if err != nil {
		slog.Error("Failed to initialize CSRF protection", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.RouterConfig{
		Repo:            repo,
		Replier:         replier,
		AssistantHealth: assistantHealth,
		CSRF:            csrf,
		Limiter:         api.NewRateLimiter(ctx, cfg.Sessions.MessagesPerMinute, time.Minute),
		AllowedOrigins:  cfg.AllowedOrigins,
		IsDevelopment:   cfg.IsDevelopment(),
		ReplyTimeout:    cfg.Assistant.Timeout,
		Static:          web.StaticHandler(),
	})

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Assistant.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start session sweeper.
	sweeper.Start(ctx, sqliteStore, cfg.Sessions.SweepInterval, cfg.Sessions.IdleTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
