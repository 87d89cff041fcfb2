package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/slack-go/slack"

	"github.com/tbracken/groqlet/internal/config"
	"github.com/tbracken/groqlet/internal/delivery"
	"github.com/tbracken/groqlet/internal/frontdoor"
	"github.com/tbracken/groqlet/internal/groq"
	"github.com/tbracken/groqlet/internal/server"
	"github.com/tbracken/groqlet/internal/signing"
	"github.com/tbracken/groqlet/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	mode, err := delivery.ParseMode(cfg.Delivery.Mode)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize OpenTelemetry
	shutdownTracer, err := telemetry.InitTracer("groqlet", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	slackOpts := []slack.Option{
		slack.OptionHTTPClient(&http.Client{Timeout: cfg.Slack.Timeout}),
	}
	if cfg.Slack.APIURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(cfg.Slack.APIURL))
	}
	slackClient := slack.New(cfg.Slack.BotToken, slackOpts...)

	completer := groq.New(cfg.Groq.APIKey,
		groq.WithBaseURL(cfg.Groq.BaseURL),
		groq.WithHTTPClient(&http.Client{Timeout: cfg.Groq.Timeout}),
		groq.WithMaxTokens(cfg.Groq.MaxTokens),
	)

	dispatcher := delivery.NewDispatcher(slackClient, mode, logger)
	handler := frontdoor.NewHandler(slackClient, completer, dispatcher, cfg.Models, logger)
	verifier := signing.NewVerifier(cfg.Slack.SigningSecret)

	srv := server.New(cfg.Server.Port, logger)
	srv.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	srv.Router.Group(func(r chi.Router) {
		r.Use(server.VerifySlack(verifier))
		r.Post("/slack/command", handler.HandleCommand)
		r.Post("/slack/interact", handler.HandleInteraction)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("groqlet started",
		slog.Int("port", cfg.Server.Port),
		slog.String("delivery_mode", string(mode)),
		slog.Int("models", len(cfg.Models)))

	// Wait for shutdown signal or server failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
