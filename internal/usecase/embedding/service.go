package embedding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Service exposes the two embedding modes. query and document are decorator
// chains over the same provider that differ in their instruction prefix.
type Service struct {
	query    domain.Embedder
	document domain.Embedder
	dim      int
	logger   *zap.Logger
}

// NewService creates the embedding service. dim > 0 enforces the vector length.
func NewService(query, document domain.Embedder, dim int, logger *zap.Logger) *Service {
	return &Service{query: query, document: document, dim: dim, logger: logger}
}

// Dimensions returns the enforced vector length (0 when unchecked).
func (s *Service) Dimensions() int { return s.dim }

// EmbedQuery embeds a question for retrieval.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	res, err := s.query.Embed(ctx, text)
	if err != nil {
		return nil, failure("embed query", err)
	}
	if err := domain.CheckVector(res.Embedding, s.dim); err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return res.Embedding, nil
}

// EmbedDocument embeds one chunk for storage.
func (s *Service) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	res, err := s.document.Embed(ctx, text)
	if err != nil {
		return nil, failure("embed document", err)
	}
	if err := domain.CheckVector(res.Embedding, s.dim); err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}
	return res.Embedding, nil
}

// EmbedDocuments embeds chunks for storage, preserving order.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	res, err := domain.EmbedAll(ctx, s.document, texts)
	if err != nil {
		return nil, failure("embed documents", err)
	}

	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed documents: sent %d, got %d: %w",
			len(texts), len(res.Embeddings), domain.ErrEmbeddingFailure)
	}
	for i, vec := range res.Embeddings {
		if err := domain.CheckVector(vec, s.dim); err != nil {
			return nil, fmt.Errorf("embed documents [%d]: %w", i, err)
		}
	}

	s.logger.Debug("documents embedded",
		zap.Int("count", len(texts)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res.Embeddings, nil
}

// failure makes sure a provider error carries ErrEmbeddingFailure.
// Context errors stay unwrapped so callers can tell a timeout apart.
func failure(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrEmbeddingFailure),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrEmbeddingFailure, err)
	}
}
