package scoring

import (
	"context"

	"github.com/kailas-cloud/atscore/internal/domain"
)

// Embedder vectorizes texts. A domain.BatchEmbedder implementation gets the pair in one call.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
