// interviewd - mock interview backend server
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
	"github.com/mockmate/interviewd/internal/api"
	"github.com/mockmate/interviewd/internal/config"
	"github.com/mockmate/interviewd/internal/gemini"
	"github.com/mockmate/interviewd/internal/interview"
	"github.com/mockmate/interviewd/internal/middleware"
	"github.com/mockmate/interviewd/internal/store"
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

	slog.Info("Starting server", "port", cfg.Port, "model", cfg.GeminiModel, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo := store.NewMemory()

	gateway, err := gemini.NewClient(cfg.GoogleAPIKey,
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithModel(cfg.GeminiModel),
		gemini.WithHTTPClient(&http.Client{Timeout: cfg.GeminiTimeout}),
	)
	if err != nil {
		slog.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}

	transcript, err := interview.NewTranscriptLogger(interview.TranscriptConfig{
		Enabled:       cfg.TranscriptLog.Enabled,
		Dir:           cfg.TranscriptLog.Dir,
		GlobalEnabled: cfg.TranscriptLog.GlobalEnabled,
		GlobalPath:    cfg.TranscriptLog.GlobalPath,
		QueueSize:     cfg.TranscriptLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}

	svc, err := interview.NewService(repo, gateway, transcript, logger)
	if err != nil {
		slog.Error("Failed to initialize interview service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Initialize handlers.
	interviewHandler := api.NewInterviewHandler(svc)
	streamHandler := api.NewStreamHandler(svc, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	interviewHandler.RegisterRoutes(r)

	// WebSocket endpoint for streamed turns.
	r.Get("/ws/interview", streamHandler.ServeHTTP)

	// Create server. WriteTimeout stays 0 so a slow model reply streamed
	// over the WebSocket is not cut off mid-turn.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
