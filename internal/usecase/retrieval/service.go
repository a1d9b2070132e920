package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain/record"
)

// DefaultTopK is the number of chunks fed to generation.
const DefaultTopK = 1

// Service finds the chunks most similar to a question.
type Service struct {
	embedder QueryEmbedder
	store    VectorSearcher
	topK     int
	logger   *zap.Logger
}

// New creates a retrieval service. topK <= 0 uses DefaultTopK.
func New(embedder QueryEmbedder, store VectorSearcher, topK int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{embedder: embedder, store: store, topK: topK, logger: logger}
}

// Retrieve embeds question and returns up to k chunk texts, most similar
// first. k <= 0 uses the configured top K. An empty result is not an error.
func (s *Service) Retrieve(ctx context.Context, question string, k int) ([]string, error) {
	vec, err := s.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, vec, k)
}

// Embed is the first half of Retrieve.
func (s *Service) Embed(ctx context.Context, question string) ([]float32, error) {
	vec, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	return vec, nil
}

// Search is the second half of Retrieve.
func (s *Service) Search(ctx context.Context, vec []float32, k int) ([]string, error) {
	if k <= 0 {
		k = s.topK
	}
	hits, err := s.store.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	if len(hits) > 0 {
		s.logger.Debug("chunks retrieved",
			zap.Int("k", k),
			zap.Int("hits", len(hits)),
			zap.String("top_id", hits[0].ID),
			zap.Float64("top_score", hits[0].Score),
		)
	}
	return record.Texts(hits), nil
}
