package embedding

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// DefaultMaxAPIBatchSize is the Cohere embed limit per request.
const DefaultMaxAPIBatchSize = 96

// Retrier re-runs an operation while it fails transiently.
type Retrier interface {
	Do(ctx context.Context, name string, op func(ctx context.Context) error) error
}

// Resilient puts retries and request-size limits in front of a provider.
// Provider metrics (requests, latency, tokens) live in transport/openai;
// this layer only counts retries.
type Resilient struct {
	inner     domain.Embedder
	provider  string
	model     string
	retrier   Retrier
	batchSize int
	logger    *zap.Logger
}

// NewResilient wraps inner. With a nil retrier every call is tried once.
func NewResilient(inner domain.Embedder, provider, model string, retrier Retrier, logger *zap.Logger) *Resilient {
	return &Resilient{
		inner:     inner,
		provider:  provider,
		model:     model,
		retrier:   retrier,
		batchSize: DefaultMaxAPIBatchSize,
		logger:    logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// Embed embeds one text, retrying transient failures.
func (r *Resilient) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	var res domain.EmbeddingResult
	err := r.attempt(ctx, "embed", func(ctx context.Context) (err error) {
		res, err = r.inner.Embed(ctx, text)
		return err
	})
	if err != nil {
		r.logger.Error("Embedding failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	r.logger.Debug("Embedded text",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed sends texts in provider-sized slices, each retried on its own,
// and concatenates the vectors in input order.
func (r *Resilient) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	offset := 0
	for part := range slices.Chunk(texts, r.batchSize) {
		var res domain.BatchEmbeddingResult
		err := r.attempt(ctx, "batch_embed", func(ctx context.Context) (err error) {
			res, err = domain.EmbedAll(ctx, r.inner, part)
			return err
		})
		if err != nil {
			r.logger.Error("Batch embedding failed",
				zap.Int("offset", offset),
				zap.Int("size", len(part)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed at %d: %w", offset, err)
		}
		if len(res.Embeddings) != len(part) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed at %d: sent %d, got %d: %w",
				offset, len(part), len(res.Embeddings), domain.ErrEmbeddingFailure)
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
		offset += len(part)
	}

	r.logger.Debug("Embedded batch",
		zap.Duration("duration", time.Since(start)),
		zap.Int("texts", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// attempt runs op under the retrier and counts every call after the first.
func (r *Resilient) attempt(ctx context.Context, name string, op func(ctx context.Context) error) error {
	if r.retrier == nil {
		return op(ctx)
	}
	calls := 0
	return r.retrier.Do(ctx, name, func(ctx context.Context) error {
		if calls++; calls > 1 {
			metrics.EmbeddingRetriesTotal.WithLabelValues(r.provider).Inc()
		}
		return op(ctx)
	})
}
