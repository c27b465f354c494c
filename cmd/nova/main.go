package main

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

	"github.com/MikeSquared-Agency/nova/internal/anthropic"
	"github.com/MikeSquared-Agency/nova/internal/api"
	"github.com/MikeSquared-Agency/nova/internal/config"
	"github.com/MikeSquared-Agency/nova/internal/conversation"
	"github.com/MikeSquared-Agency/nova/internal/embedding"
	"github.com/MikeSquared-Agency/nova/internal/extractor"
	"github.com/MikeSquared-Agency/nova/internal/hermes"
	"github.com/MikeSquared-Agency/nova/internal/knowledge"
	"github.com/MikeSquared-Agency/nova/internal/llm"
	"github.com/MikeSquared-Agency/nova/internal/metrics"
	"github.com/MikeSquared-Agency/nova/internal/persona"
	"github.com/MikeSquared-Agency/nova/internal/processor"
	"github.com/MikeSquared-Agency/nova/internal/slack"
	"github.com/MikeSquared-Agency/nova/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)
	logger := slog.Default()

	slog.Info("nova starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL, cfg.EmbeddingDimensions)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected")

	// Providers
	var gen llm.Generator = llm.Unconfigured{}
	if cfg.AnthropicAPIKey != "" {
		gen = anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.GenerationRetries)
		slog.Info("anthropic client ready", "model", cfg.AnthropicModel)
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, replies fall back to canned text and extraction is unavailable")
	}

	var emb llm.Embedder = llm.Unconfigured{}
	if cfg.EmbeddingAPIKey != "" {
		emb = embedding.NewClient(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
		slog.Info("embedding client ready", "model", cfg.EmbeddingModel, "dimensions", cfg.EmbeddingDimensions)
	} else {
		slog.Warn("EMBEDDING_API_KEY not set, knowledge retrieval disabled")
	}

	personas, err := loadPersonas(cfg.PersonasFile)
	if err != nil {
		slog.Error("failed to load personas", "error", err)
		os.Exit(1)
	}
	if _, ok := personas.Get(cfg.DefaultPersona); !ok {
		slog.Error("default persona not found", "persona", cfg.DefaultPersona, "available", personas.IDs())
		os.Exit(1)
	}

	// NATS/Hermes (optional, Nova works without events)
	var publisher hermes.Publisher = hermes.Noop{}
	hermesClient, err := hermes.NewClient(cfg.NatsURL, cfg.NatsToken, logger)
	if err != nil {
		slog.Warn("NATS unavailable, running without events", "error", err)
		hermesClient = nil
	} else {
		defer hermesClient.Close()
		publisher = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Slack review loop (optional, without it specifications are reviewed via the API only)
	var reviewer processor.Reviewer
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		reviewer = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, running without review loop")
	}

	m := metrics.New()

	retriever := knowledge.NewRetriever(emb, db, knowledge.RetrieverConfig{
		TopK:      cfg.RetrievalTopK,
		Threshold: cfg.RetrievalThreshold,
		Timeout:   cfg.RetrievalTimeout,
		Metrics:   m,
	}, logger)

	sessions := conversation.NewManager(personas, gen, retriever, conversation.Config{
		DefaultPersona: cfg.DefaultPersona,
		MinMessages:    cfg.MinMessages,
		Metrics:        m,
	}, logger)

	// Processor, the main pipeline
	proc := processor.New(processor.Deps{
		Sessions:   sessions,
		Extractor:  extractor.New(gen, extractor.Config{HourlyRateEUR: cfg.HourlyRateEUR, Metrics: m}, logger),
		Store:      db,
		Summarizer: knowledge.NewSummarizer(gen, m, logger),
		Writer:     knowledge.NewWriter(emb, db, m, logger),
		Retriever:  retriever,
		Publisher:  publisher,
		Metrics:    m,
		Reviewer:   reviewer,
		Reviews:    db,
	}, logger)

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectDesignPaymentCompleted, proc.HandleDesignPayment); err != nil {
			slog.Error("failed to subscribe to payment events", "error", err)
			os.Exit(1)
		}
		if err := hermesClient.Subscribe(hermes.SubjectFulfillmentUpdated, proc.HandleFulfillment); err != nil {
			slog.Error("failed to subscribe to fulfillment events", "error", err)
			os.Exit(1)
		}
		if reviewer != nil {
			if err := hermesClient.Subscribe(hermes.SubjectSlackReaction, proc.HandleReaction); err != nil {
				slog.Error("failed to subscribe to slack reactions", "error", err)
				os.Exit(1)
			}
		}
	}

	// HTTP API
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.NewServer(cfg.APIToken, proc, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("API server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	// Announce registration
	if err := publisher.Publish(hermes.SubjectAgentRegistered, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
		"personas":  personas.IDs(),
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("nova ready", "port", cfg.Port, "personas", personas.IDs())

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	slog.Info("nova stopped")
}

func loadPersonas(path string) (*persona.Registry, error) {
	if path == "" {
		return persona.Default()
	}
	return persona.LoadFile(path)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
