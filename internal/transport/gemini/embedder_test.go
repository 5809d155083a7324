package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/atscore/internal/domain"
	"github.com/kailas-cloud/atscore/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

func newTestEmbedder(t *testing.T, url string) *Embedder {
	t.Helper()
	e, err := NewEmbedder(context.Background(), &Config{
		APIKey:     "test-key",
		BaseURL:    url,
		Dimensions: 2,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	return e
}

func TestNewEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewEmbedder(context.Background(), &Config{APIKey: "  "}); err == nil {
		t.Fatal("expected error for blank api key")
	}
}

func TestEmbedder_BatchEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/"+defaultModel+":batchEmbedContents") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			Requests []map[string]any `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Requests) != 2 {
			t.Errorf("expected 2 requests, got %d", len(body.Requests))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[0.1,0.2]},{"values":[0.3,0.4]}]}`))
	}))
	defer server.Close()

	res, err := newTestEmbedder(t, server.URL).BatchEmbed(context.Background(), []string{"resume text", "job text"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	if res.Embeddings[0][0] != 0.1 || res.Embeddings[1][1] != 0.4 {
		t.Errorf("unexpected vectors %v", res.Embeddings)
	}
	// "resume text" = 11 runes -> 3, "job text" = 8 runes -> 2
	if res.TotalTokens != 5 {
		t.Errorf("expected 5 estimated tokens, got %d", res.TotalTokens)
	}
}

func TestEmbedder_Embed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer server.Close()

	_, err := newTestEmbedder(t, server.URL).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	_, err := newTestEmbedder(t, server.URL).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("expected provider message in %q", err.Error())
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		texts []string
		want  int
	}{
		{nil, 0},
		{[]string{""}, 0},
		{[]string{"abcd"}, 1},
		{[]string{"abcde"}, 2},
		{[]string{"привет"}, 2},
	}
	for _, tc := range tests {
		if got := estimateTokens(tc.texts); got != tc.want {
			t.Errorf("estimateTokens(%v) = %d, want %d", tc.texts, got, tc.want)
		}
	}
}
