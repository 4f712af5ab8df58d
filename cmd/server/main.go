// Studio - Guided Writing Workspace Server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/piwrite/studio/internal/api"
	"github.com/piwrite/studio/internal/coach"
	"github.com/piwrite/studio/internal/config"
	"github.com/piwrite/studio/internal/identity"
	"github.com/piwrite/studio/internal/middleware"
	"github.com/piwrite/studio/internal/store"
	"github.com/piwrite/studio/internal/workspace"
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

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Coaching service gateway (optional). Without it the workspace still
	// runs; sessions fall back to inline notices instead of coach replies.
	var invoker workspace.Invoker
	if cfg.CoachEnabled() {
		client, err := coach.NewHTTPClient(coach.ClientConfig{
			BaseURL: cfg.CoachBaseURL,
			Timeout: cfg.CoachTimeout,
		}, logger)
		if err != nil {
			slog.Error("Failed to initialize coach client", "error", err)
			os.Exit(1)
		}
		invoker = client
		slog.Info("Coach gateway configured", "base_url", cfg.CoachBaseURL)
	} else {
		slog.Warn("Coach features disabled (COACH_BASE_URL not set)")
	}

	sessions := workspace.NewManager(repo, invoker, workspace.Config{
		AutosaveDelay:      cfg.AutosaveDelay,
		IdleCheckDelay:     cfg.IdleCheckDelay,
		MinAnalyzeLength:   cfg.MinAnalyzeLength,
		MinSavingIndicator: cfg.MinSavingIndicator,
	}, logger)
	defer sessions.CloseAll()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, sessions)
	wsHandler := api.NewWebSocketHandler(baseHandler, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	corsOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		corsOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(corsOrigins))

	// Public routes.
	r.Get("/health", baseHandler.Health)

	// All API routes run behind anonymous learner identity (no auth needed).
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.DefaultGradeLevel, cfg.IsDevelopment()))

		r.Route("/api/documents", func(r chi.Router) {
			r.Post("/", baseHandler.CreateDocument)
			r.Get("/", baseHandler.ListDocuments)
			r.Get("/{id}", baseHandler.GetDocument)
			r.Patch("/{id}", baseHandler.RenameDocument)
		})

		r.Route("/api/workspace/{id}", func(r chi.Router) {
			r.Post("/open", baseHandler.OpenWorkspace)
			r.Post("/content", baseHandler.UpdateContent)
			r.Post("/message", baseHandler.SendMessage)
			r.Post("/stage", baseHandler.ChangeStage)
			r.Get("/plan", baseHandler.GetPlan)
			r.Post("/close", baseHandler.CloseWorkspace)
		})

		// WebSocket endpoint.
		r.Get("/ws/workspace/{id}", wsHandler.ServeHTTP)
	})

	// No WriteTimeout: workspace sockets and coach invocations are
	// long-lived.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Evict idle sessions so abandoned tabs do not pin memory forever.
	sessions.StartSweeper(ctx, cfg.SessionTTL, cfg.SessionTTL/4)
	slog.Info("Session sweeper started", "session_ttl", cfg.SessionTTL)

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
