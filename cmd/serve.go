package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teemow/schedassist/internal/calendar"
	"github.com/teemow/schedassist/internal/config"
	"github.com/teemow/schedassist/internal/conversation"
	"github.com/teemow/schedassist/internal/gemini"
	"github.com/teemow/schedassist/internal/gmail"
	"github.com/teemow/schedassist/internal/google"
	"github.com/teemow/schedassist/internal/instrumentation"
	"github.com/teemow/schedassist/internal/mailsync"
	"github.com/teemow/schedassist/internal/server"
	"github.com/teemow/schedassist/internal/store"
	"github.com/teemow/schedassist/internal/tools"
	"github.com/teemow/schedassist/internal/tools/scheduling"
)

const defaultSystemInstruction = `You are a scheduling assistant. You help the user manage their calendar
and email: answer availability questions, set up meetings, and draft or
send emails on their behalf. Use the provided tools to read real data
instead of guessing. Keep replies short and concrete. When an incoming
email asks for a meeting, check availability before proposing times.`

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduling assistant server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Instrumentation
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation configuration: %w", err)
	}
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("initialize instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown instrumentation", "error", err)
		}
	}()

	// Persistence
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close repository", "error", err)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	logger.Info("Database connected", "path", cfg.DBPath)

	// Google credentials
	tokens := google.NewStoreTokenProvider(repo, google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Metrics:      provider.Metrics(),
	}, logger)

	// Model backend
	model, err := gemini.NewClient(ctx, gemini.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
	if err != nil {
		return fmt.Errorf("initialize model client: %w", err)
	}

	// Tools
	registry := tools.NewRegistry(logger)
	err = scheduling.Register(registry,
		func(ctx context.Context, userID string) (scheduling.CalendarService, error) {
			return calendar.NewClientForUser(ctx, userID, tokens)
		},
		func(ctx context.Context, userID string) (scheduling.MailService, error) {
			return gmail.NewClientForUser(ctx, userID, tokens)
		},
	)
	if err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	// Conversation
	systemInstruction := cfg.SystemInstruction
	if systemInstruction == "" {
		systemInstruction = defaultSystemInstruction
	}
	orchestrator := conversation.New(model, registry, conversation.Config{
		SystemInstruction: systemInstruction,
		HistoryCapacity:   cfg.HistoryCapacity,
		Logger:            logger,
		Metrics:           provider.Metrics(),
	})

	// Mailbox sync
	synchronizer := mailsync.New(repo,
		func(ctx context.Context, userID string) (mailsync.MailboxClient, error) {
			return gmail.NewClientForUser(ctx, userID, tokens)
		},
		orchestrator,
		mailsync.Config{
			TopicName: cfg.PubSubTopic,
			Logger:    logger,
			Metrics:   provider.Metrics(),
		},
	)
	if cfg.PubSubTopic != "" {
		go synchronizer.RunRenewalLoop(ctx, cfg.WatchRenewalInterval)
	} else {
		logger.Warn("PUBSUB_TOPIC not set, mailbox watches will not be renewed")
	}

	// HTTP
	health := server.NewHealthChecker(repo)
	srv := server.New(orchestrator, synchronizer, health, server.Config{
		Logger:  logger,
		Metrics: provider.Metrics(),
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsServer *server.MetricsServer
	if provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:     ":" + cfg.MetricsPort,
			Provider: provider,
		})
		if err != nil {
			return fmt.Errorf("initialize metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", httpServer.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	health.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("Server stopped")
	return nil
}
