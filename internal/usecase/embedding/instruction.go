package embedding

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Instructed prefixes every text with a fixed instruction. A query and a
// document Instructed over the same provider give asymmetric embeddings.
type Instructed struct {
	inner       domain.Embedder
	instruction string
}

// WithInstruction decorates inner. An empty instruction returns inner as is.
func WithInstruction(inner domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return inner
	}
	return &Instructed{inner: inner, instruction: instruction}
}

// Embed embeds instruction+text.
func (e *Instructed) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("instructed embed: %w", err)
	}
	return res, nil
}

// BatchEmbed embeds every text with the instruction in front.
func (e *Instructed) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.instruction + t
	}
	res, err := domain.EmbedAll(ctx, e.inner, prefixed)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("instructed batch embed: %w", err)
	}
	return res, nil
}
