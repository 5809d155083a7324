package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/atscore/internal/app"
	"github.com/kailas-cloud/atscore/internal/config"
	logpkg "github.com/kailas-cloud/atscore/internal/logger"
	"github.com/kailas-cloud/atscore/internal/metrics"
	chiTransport "github.com/kailas-cloud/atscore/internal/transport/chi"
	"github.com/kailas-cloud/atscore/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, zap.String("service", "atscore"))
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting atscore API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_provider", cfg.Embedding.Vectorizer.Provider),
		zap.String("embedding_model", cfg.Embedding.Vectorizer.Model),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	if len(cfg.Auth.APIKeys) == 0 {
		logger.Warn("API authentication is disabled: auth.api_keys is empty")
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterScoringMetrics()

	ctx := context.Background()
	pipeline, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build scoring pipeline", zap.Error(err))
	}
	defer pipeline.Close()

	server := chiTransport.NewServer(pipeline.Scoring, pipeline.Extractor, pipeline.Usage, pipeline.Health, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys: cfg.Auth.APIKeys,
		RateLimit: chiTransport.RateLimitConfig{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		},
	})

	if cfg.Embedding.Vectorizer.WarmUp {
		// Build the embedder chain off the request path; a failed build is retried on first use.
		go func() {
			if _, err := pipeline.Embedder.Get(ctx); err != nil {
				logger.Error("Embedder warm-up failed", zap.Error(err))
				return
			}
			logger.Info("Embedder warmed up")
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
