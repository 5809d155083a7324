package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/atscore/internal/domain"
	"github.com/kailas-cloud/atscore/internal/metrics"
)

// BreakerConfig tunes the circuit breaker around the embedding provider.
type BreakerConfig struct {
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

func (c BreakerConfig) normalize() BreakerConfig {
	if c.MinRequests == 0 {
		c.MinRequests = 5
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = 0.5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls == 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

// BreakerEmbedder fails fast with domain.ErrEmbeddingUnavailable while the provider keeps failing.
// Calls are never retried.
type BreakerEmbedder struct {
	inner    domain.Embedder
	provider string
	cb       *gobreaker.CircuitBreaker[domain.BatchEmbeddingResult]
}

// NewBreakerEmbedder wraps inner with a circuit breaker named after the provider.
func NewBreakerEmbedder(inner domain.Embedder, provider string, cfg BreakerConfig, logger *zap.Logger) *BreakerEmbedder {
	cfg = cfg.normalize()
	metrics.EmbeddingBreakerState.WithLabelValues(provider).Set(stateValue(gobreaker.StateClosed))

	settings := gobreaker.Settings{
		Name:        provider,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// A cancelled client or a spent budget says nothing about provider health.
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, domain.ErrEmbeddingQuotaExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.EmbeddingBreakerState.WithLabelValues(name).Set(stateValue(to))
			logger.Warn("Embedding circuit breaker state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerEmbedder{
		inner:    inner,
		provider: provider,
		cb:       gobreaker.NewCircuitBreaker[domain.BatchEmbeddingResult](settings),
	}
}

// Embed implements domain.Embedder.
func (b *BreakerEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := b.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (b *BreakerEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := b.cb.Execute(func() (domain.BatchEmbeddingResult, error) {
		return domain.EmbedAll(ctx, b.inner, texts)
	})
	if err != nil {
		if isCircuitOpen(err) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("%s circuit %s: %w", b.provider, b.cb.State(), domain.ErrEmbeddingUnavailable)
		}
		return domain.BatchEmbeddingResult{}, err
	}
	return res, nil
}

// State exposes the breaker state for health reporting.
func (b *BreakerEmbedder) State() gobreaker.State { return b.cb.State() }

// HealthCheck reports an open circuit as unhealthy and otherwise delegates to the provider.
func (b *BreakerEmbedder) HealthCheck(ctx context.Context) error {
	if b.cb.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s circuit open: %w", b.provider, domain.ErrEmbeddingUnavailable)
	}
	if hc, ok := b.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}

func isCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
