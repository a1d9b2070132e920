// Package embcache caches provider embeddings in the key-value side of the
// vector store, so re-ingesting the same document does not re-bill the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config tunes the cache.
type Config struct {
	// KeyPrefix namespaces entries; it should name the model and dimension
	// so that switching either never serves stale vectors.
	KeyPrefix string
	// TTL expires entries; zero keeps them forever.
	TTL time.Duration
	// Dim, when positive, turns cached vectors of another length into misses.
	Dim int
}

// CachedEmbedder caches embeddings in a key-value store.
// It sits below the instruction decorators, so the cached text already
// carries the query or document instruction and the two modes never collide.
// Cache failures are logged and degrade to provider calls.
type CachedEmbedder struct {
	inner   domain.Embedder
	store   store
	cfg     Config
	lookups *prometheus.CounterVec
	logger  *zap.Logger
}

// New creates a caching decorator. lookups is a counter vec with label
// "result" ("hit"/"miss"); nil disables counting.
func New(inner domain.Embedder, s store, cfg Config, lookups *prometheus.CounterVec, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{inner: inner, store: s, cfg: cfg, lookups: lookups, logger: logger}
}

// Embed returns a cached embedding or calls the inner embedder.
// A hit reports zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)
	if vec, ok := c.load(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.save(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed serves hits from the cache and sends only the misses to the
// inner embedder, in one batch call when it supports one.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var misses []int
	for i, t := range texts {
		keys[i] = c.key(t)
		if vec, ok := c.load(ctx, keys[i]); ok {
			out[i] = vec
		} else {
			misses = append(misses, i)
		}
	}
	if len(misses) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	pending := make([]string, len(misses))
	for j, i := range misses {
		pending[j] = texts[i]
	}
	res, err := domain.EmbedAll(ctx, c.inner, pending)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d uncached texts: %w", len(pending), err)
	}
	if len(res.Embeddings) != len(pending) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: provider returned %d vectors for %d texts",
			domain.ErrEmbeddingFailure, len(res.Embeddings), len(pending))
	}

	for j, i := range misses {
		out[i] = res.Embeddings[j]
		c.save(ctx, keys[i], out[i])
	}
	res.Embeddings = out
	return res, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.cfg.KeyPrefix + hex.EncodeToString(sum[:])
}

// load returns a usable cached vector. Anything else counts as a miss.
func (c *CachedEmbedder) load(ctx context.Context, key string) ([]float32, bool) {
	vec, err := c.read(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Ignoring cached embedding", zap.String("key", key), zap.Error(err))
		}
		c.count("miss")
		return nil, false
	}
	c.count("hit")
	return vec, true
}

func (c *CachedEmbedder) read(ctx context.Context, key string) ([]float32, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	vec, err := db.DecodeVector(string(data))
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 || (c.cfg.Dim > 0 && len(vec) != c.cfg.Dim) {
		return nil, fmt.Errorf("cached vector has %d dimensions, want %d", len(vec), c.cfg.Dim)
	}
	return vec, nil
}

func (c *CachedEmbedder) save(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.Set(ctx, key, []byte(db.EncodeVector(vec)), c.cfg.TTL); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}
