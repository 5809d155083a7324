package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/atscore/internal/domain"
)

func TestLazy_BuildsOnceUnderConcurrency(t *testing.T) {
	var builds atomic.Int32
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	l := NewLazy(func(context.Context) (domain.Embedder, error) {
		builds.Add(1)
		return inner, nil
	}, "")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Embed(context.Background(), "x"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Errorf("expected a single build, got %d", builds.Load())
	}
}

func TestLazy_NotBuiltUntilUsed(t *testing.T) {
	var built bool
	_ = NewLazy(func(context.Context) (domain.Embedder, error) {
		built = true
		return &mockEmbedder{}, nil
	}, "")

	if built {
		t.Error("factory must not run at construction")
	}
}

// flakyEmbedder fails the first `failures` calls, then succeeds.
type flakyEmbedder struct {
	failures int
	calls    int
}

func (f *flakyEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return domain.EmbeddingResult{}, errors.New("connection reset")
	}
	return domain.EmbeddingResult{Embedding: []float32{1}}, nil
}

func TestLazy_RetriesFailedBuild(t *testing.T) {
	var builds int
	boom := errors.New("dial tcp: connection refused")
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	l := NewLazy(func(context.Context) (domain.Embedder, error) {
		builds++
		if builds == 1 {
			return nil, boom
		}
		return inner, nil
	}, "")

	_, err := l.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("expected unavailable wrapping cause, got %v", err)
	}
	if l.Built() {
		t.Fatal("failed build must not be kept")
	}

	for range 3 {
		if _, err := l.Embed(context.Background(), "x"); err != nil {
			t.Fatalf("expected recovery after failed build, got %v", err)
		}
	}
	if builds != 2 {
		t.Errorf("expected two build attempts, got %d", builds)
	}
}

func TestLazy_WarmUpFailureRecovers(t *testing.T) {
	provider := &flakyEmbedder{failures: 1}
	l := NewLazy(func(context.Context) (domain.Embedder, error) { return provider, nil }, "warm up")

	if _, err := l.Embed(context.Background(), "resume"); !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected warm-up failure, got %v", err)
	}

	for i := range 3 {
		if _, err := l.Embed(context.Background(), "resume"); err != nil {
			t.Fatalf("call %d: expected success once the provider recovers, got %v", i+2, err)
		}
	}
	// failed warm-up, successful warm-up, three embeds
	if provider.calls != 5 {
		t.Errorf("expected 5 provider calls, got %d", provider.calls)
	}
}

func TestLazy_BuildBoundedByCallerContext(t *testing.T) {
	l := NewLazy(func(ctx context.Context) (domain.Embedder, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.HealthCheck(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected unavailable with deadline, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("health check ignored the caller deadline")
	}
}

func TestLazy_WaiterHonorsContext(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	l := NewLazy(func(context.Context) (domain.Embedder, error) {
		close(started)
		<-release
		return &mockEmbedder{}, nil
	}, "")

	go func() { _, _ = l.Get(context.Background()) }()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Get(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected waiter to give up, got %v", err)
	}
	close(release)
}

func TestLazy_WarmUp(t *testing.T) {
	inner := &plainMockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	l := NewLazy(func(context.Context) (domain.Embedder, error) { return inner, nil }, "warm up")

	if _, err := l.Get(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := l.Get(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected one warm-up call, got %d", inner.calls)
	}

	failing := &plainMockEmbedder{err: domain.ErrEmbeddingProviderError}
	l = NewLazy(func(context.Context) (domain.Embedder, error) { return failing, nil }, "warm up")
	if _, err := l.Get(context.Background()); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected warm-up failure, got %v", err)
	}
}

func TestLazy_BatchEmbedAndHealth(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	l := NewLazy(func(context.Context) (domain.Embedder, error) { return inner, nil }, "")

	res, err := l.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || inner.batchCalls != 1 {
		t.Errorf("expected one batch call, got %d", inner.batchCalls)
	}

	inner.healthErr = errors.New("down")
	if err := l.HealthCheck(context.Background()); err == nil {
		t.Error("expected health error from inner")
	}
}
