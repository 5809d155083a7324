// Package app wires configuration into the scoring pipeline shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/atscore/internal/config"
	"github.com/kailas-cloud/atscore/internal/db"
	dbRedis "github.com/kailas-cloud/atscore/internal/db/redis"
	"github.com/kailas-cloud/atscore/internal/domain"
	"github.com/kailas-cloud/atscore/internal/domain/feedback"
	"github.com/kailas-cloud/atscore/internal/extractor"
	"github.com/kailas-cloud/atscore/internal/metrics"
	budgetrepo "github.com/kailas-cloud/atscore/internal/repository/budget"
	"github.com/kailas-cloud/atscore/internal/repository/embcache"
	geminiEmb "github.com/kailas-cloud/atscore/internal/transport/gemini"
	openaiEmb "github.com/kailas-cloud/atscore/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/atscore/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/atscore/internal/usecase/health"
	scoringuc "github.com/kailas-cloud/atscore/internal/usecase/scoring"
	usageuc "github.com/kailas-cloud/atscore/internal/usecase/usage"
)

// warmUpText is embedded once when vectorizer.warm_up is set.
const warmUpText = "warm up"

// App is the assembled pipeline.
type App struct {
	Scoring   *scoringuc.Service
	Extractor *extractor.Extractor
	Usage     *usageuc.Service
	Health    *healthuc.Service
	Embedder  *embeddinguc.Lazy

	store db.Store
}

// New builds the pipeline. The embedding provider is created lazily on first use;
// the cache store, when enabled, is connected here and must answer within its readiness timeout.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	classifier, err := feedback.NewClassifier(cfg.Scoring.StrongThreshold, cfg.Scoring.AverageThreshold)
	if err != nil {
		return nil, fmt.Errorf("scoring thresholds: %w", err)
	}

	a := &App{Extractor: extractor.New(cfg.Upload.MaxBytes, logger)}

	if cfg.Cache.Enabled {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s cache store: %w", cfg.Cache.Driver, err)
		}
		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, fmt.Errorf("cache not ready: %w", err)
		}
		a.store = store
		logger.Info("Connected to cache",
			zap.String("driver", cfg.Cache.Driver),
			zap.Strings("addrs", cfg.Cache.Addrs),
		)
	}

	provName := cfg.Embedding.Vectorizer.Provider
	provCfg := cfg.Embedding.Providers[provName]

	// One tracker shared by the embedder chain and the usage service.
	var budget *embeddinguc.BudgetTracker
	if provCfg.Budget.Enabled() {
		action := embeddinguc.BudgetActionWarn
		if provCfg.Budget.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			provName, provCfg.Budget.DailyTokenLimit, provCfg.Budget.MonthlyTokenLimit, action, logger,
		)
		if a.store != nil {
			budget.WithStore(ctx, budgetrepo.New(a.store, 0, 0))
		}
	}

	// Typed nil pointers must not leak into the interfaces below.
	var (
		budgetChecker embeddinguc.BudgetChecker
		budgetReader  usageuc.BudgetReader
		cachePinger   healthuc.CachePinger
	)
	if budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}
	if a.store != nil {
		cachePinger = a.store
	}

	warmUp := ""
	if cfg.Embedding.Vectorizer.WarmUp {
		warmUp = warmUpText
	}
	a.Embedder = embeddinguc.NewLazy(chainFactory(cfg, a.store, budgetChecker, logger), warmUp)

	a.Scoring = scoringuc.New(a.Embedder, scoringuc.Config{
		MaxChars:            cfg.Scoring.MaxChars,
		DocumentInstruction: cfg.Embedding.Vectorizer.DocumentInstruction,
		QueryInstruction:    cfg.Embedding.Vectorizer.QueryInstruction,
		Classifier:          &classifier,
	})
	a.Usage = usageuc.New(budgetReader)
	a.Health = healthuc.New(cachePinger, a.Embedder)

	return a, nil
}

// Close releases the cache connection.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// chainFactory assembles provider -> breaker -> cache -> instrumented.
// The breaker sits under the cache so hits keep working while the provider is down.
func chainFactory(
	cfg config.Config,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) embeddinguc.Factory {
	return func(ctx context.Context) (domain.Embedder, error) {
		vec := cfg.Embedding.Vectorizer
		provName := vec.Provider

		base, err := newProvider(ctx, provName, cfg.Embedding.Providers[provName], vec, logger)
		if err != nil {
			return nil, err
		}

		embedder := base
		if cfg.Breaker.Enabled {
			embedder = embeddinguc.NewBreakerEmbedder(embedder, provName, embeddinguc.BreakerConfig{
				MinRequests:      cfg.Breaker.MinRequests,
				FailureRatio:     cfg.Breaker.FailureRatio,
				OpenTimeout:      time.Duration(cfg.Breaker.OpenTimeoutSec) * time.Second,
				HalfOpenMaxCalls: cfg.Breaker.HalfOpenMaxCalls,
			}, logger)
		}
		if store != nil {
			embedder = embcache.New(embedder, store, vec.Model, cfg.Cache.TTL(), metrics.EmbeddingCacheTotal, logger)
		}
		embedder = embeddinguc.NewInstrumentedEmbedder(embedder, provName, vec.Model, budget, logger)

		logger.Info("Embedder created",
			zap.String("provider", provName),
			zap.String("model", vec.Model),
			zap.Int("dimensions", vec.Dimensions),
			zap.Bool("breaker", cfg.Breaker.Enabled),
			zap.Bool("cache", store != nil),
		)
		return embedder, nil
	}
}

func newProvider(
	ctx context.Context,
	name string,
	p config.ProviderConfig,
	vec config.VectorizerConfig,
	logger *zap.Logger,
) (domain.Embedder, error) {
	switch p.Type {
	case config.ProviderGemini:
		e, err := geminiEmb.NewEmbedder(ctx, &geminiEmb.Config{
			APIKey:     p.APIKey,
			BaseURL:    p.BaseURL,
			Model:      vec.Model,
			Dimensions: vec.Dimensions,
			TaskType:   vec.TaskType,
			Provider:   name,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini provider %s: %w", name, err)
		}
		return e, nil
	default:
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     p.APIKey,
			BaseURL:    p.BaseURL,
			Model:      vec.Model,
			Dimensions: vec.Dimensions,
			Provider:   name,
			Timeout:    time.Duration(p.TimeoutSec) * time.Second,
			Logger:     logger,
		}), nil
	}
}
