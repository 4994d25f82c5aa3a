package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"chatwidget-backend/internal/config"
	"chatwidget-backend/internal/conversation"
	"chatwidget-backend/internal/credentials"
	"chatwidget-backend/internal/database"
	"chatwidget-backend/internal/handlers"
	"chatwidget-backend/internal/middleware"
	"chatwidget-backend/internal/provider"
	"chatwidget-backend/internal/router"
	"chatwidget-backend/internal/services"
	"chatwidget-backend/internal/websocket"
	"chatwidget-backend/internal/worker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat widget and its API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)
	log.Info().Msg("🚀 Starting chat widget backend...")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log.Info().Msg("✓ Environment variables loaded")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Initialize Redis Clients ────
	var storeClient, pubsubClient *redis.Client
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("✗ Redis connection failed: %w", err)
		}
		defer redisClients.Close()
		storeClient, pubsubClient = redisClients.Store, redisClients.PubSub
		log.Info().Msg("✓ Redis connected")
	}

	// ──── Step 3: Credential Store ────
	creds, err := credentials.Open(cfg, storeClient)
	if err != nil {
		return fmt.Errorf("✗ credential store: %w", err)
	}
	log.Info().Str("backend", cfg.CredentialStore).Msg("✓ Credential store ready")

	// ──── Step 4: Completion Provider ────
	p, err := provider.New(cfg)
	if err != nil {
		return fmt.Errorf("✗ provider initialization failed: %w", err)
	}
	log.Info().Str("provider", p.Name()).Msg("✓ Completion provider initialized")

	// ──── Step 5: Sessions, WebSocket Hub, Chat Service ────
	sessionAuth := middleware.NewSessionAuth(cfg.SessionSecret)
	wsHub := websocket.NewHub(pubsubClient, sessionAuth)

	registry := conversation.NewRegistry(cfg.Greeting, func(id uuid.UUID) {
		// closing a view discards its credential too
		delCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := creds.Delete(delCtx, id.String()); err != nil {
			log.Warn().Err(err).Str("session_id", id.String()).Msg("failed to delete session credential")
		}
		wsHub.CloseSession(id)
	})
	go registry.RunReaper(ctx, cfg.SessionIdleTTL, time.Minute)

	chatService := services.NewChatService(registry, p, creds, wsHub, cfg.ProviderAPIKey, cfg.Language)
	log.Info().Msg("✓ WebSocket hub started")

	// ──── Step 6: Start Worker Pool ────
	workerPool := worker.NewPool(chatService, cfg.WorkerCount, cfg.WorkerCount*16)
	workerPool.Start()
	chatService.SetDispatcher(workerPool)
	log.Info().Int("workers", cfg.WorkerCount).Msg("✓ Worker pool started")

	// ──── Step 7: Start HTTP Server ────
	submitLimiter := middleware.NewRateLimiter(cfg.SubmitRateLimit, time.Minute)
	defer submitLimiter.Close()

	r := router.New(
		sessionAuth,
		handlers.NewSessionHandler(chatService, sessionAuth),
		handlers.NewChatHandler(chatService),
		wsHub,
		submitLimiter,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Msgf("✓ Chat widget ready on http://localhost:%s", cfg.Port)
	log.Info().Msgf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Info().Msgf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	// let in-flight turns append their replies before exiting
	workerPool.Stop()
	return nil
}
