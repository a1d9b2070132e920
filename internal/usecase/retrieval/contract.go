package retrieval

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain/record"
)

// QueryEmbedder embeds questions in query mode.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher answers nearest-neighbor queries.
type VectorSearcher interface {
	Query(ctx context.Context, vec []float32, k int) ([]record.Hit, error)
}
