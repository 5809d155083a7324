package embedding

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kailas-cloud/atscore/internal/domain"
)

// Factory builds the embedder chain. It runs until one build succeeds.
type Factory func(ctx context.Context) (domain.Embedder, error)

type builtChain struct {
	embedder domain.Embedder
}

// Lazy is the process-wide embedder handle. The chain is built on first use and only a
// successful build is kept: a failed build is retried by the next caller. Concurrent
// callers wait for the build in progress, bounded by their own context.
type Lazy struct {
	factory Factory
	warmUp  string

	sem   chan struct{}
	chain atomic.Pointer[builtChain]
}

// NewLazy creates a lazy handle. A non-empty warmUp text is embedded once right after construction;
// its failure fails that build attempt.
func NewLazy(factory Factory, warmUp string) *Lazy {
	return &Lazy{
		factory: factory,
		warmUp:  warmUp,
		sem:     make(chan struct{}, 1),
	}
}

// Get returns the built embedder, building it under ctx when no build has succeeded yet.
func (l *Lazy) Get(ctx context.Context) (domain.Embedder, error) {
	if c := l.chain.Load(); c != nil {
		return c.embedder, nil
	}

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for embedder build: %w", ctx.Err())
	}
	defer func() { <-l.sem }()

	if c := l.chain.Load(); c != nil {
		return c.embedder, nil
	}

	e, err := l.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	if l.warmUp != "" {
		if _, err := e.Embed(ctx, l.warmUp); err != nil {
			return nil, fmt.Errorf("warm up embedder: %w", err)
		}
	}
	l.chain.Store(&builtChain{embedder: e})
	return e, nil
}

// Built reports whether a build has succeeded.
func (l *Lazy) Built() bool { return l.chain.Load() != nil }

// Embed implements domain.Embedder.
func (l *Lazy) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	e, err := l.Get(ctx)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return e.Embed(ctx, text) //nolint:wrapcheck // pass-through
}

// BatchEmbed implements domain.BatchEmbedder, falling back to per-text calls when the chain cannot batch.
func (l *Lazy) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e, err := l.Get(ctx)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return domain.EmbedAll(ctx, e, texts) //nolint:wrapcheck // pass-through
}

// HealthCheck builds the chain if needed, within ctx's deadline, and delegates to it
// when it can report health.
func (l *Lazy) HealthCheck(ctx context.Context) error {
	e, err := l.Get(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if hc, ok := e.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}
