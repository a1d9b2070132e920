package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/config"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/record"
	"github.com/kailas-cloud/ragdex/internal/language"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/parser"
	"github.com/kailas-cloud/ragdex/internal/repository/embcache"
	"github.com/kailas-cloud/ragdex/internal/repository/vectorstore"
	"github.com/kailas-cloud/ragdex/internal/retry"
	openaiProv "github.com/kailas-cloud/ragdex/internal/transport/openai"
	answeruc "github.com/kailas-cloud/ragdex/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/ragdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	pipelineuc "github.com/kailas-cloud/ragdex/internal/usecase/pipeline"
	retrievaluc "github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

// vectorStore is what every backend offers to the use cases.
type vectorStore interface {
	Add(ctx context.Context, recs []record.Record) error
	Query(ctx context.Context, vec []float32, k int) ([]record.Hit, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, ids []string) error
	Ping(ctx context.Context) error
}

// app is the wired object graph shared by the serve and ingest commands.
type app struct {
	pipeline *pipelineuc.Service
	ingest   *ingestuc.Service
	health   *healthuc.Service
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build is the composition root: clients are created here and injected.
func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	dim := cfg.Embedding.Dimensions

	store, kv, err := openStore(ctx, cfg, dim, a, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	retrier := retry.New(retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: time.Duration(cfg.Retry.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.Retry.MaxIntervalMs) * time.Millisecond,
	}, openaiProv.IsTransient, logger)

	// Embedder chain per mode: OpenAI -> Cached -> Resilient -> Instructed
	embProv := cfg.EmbeddingProvider()
	embedderFor := func(mode, inputType, instruction string) (*openaiProv.Embedder, domain.Embedder) {
		base := openaiProv.NewEmbedder(&openaiProv.Config{
			APIKey:     embProv.APIKey,
			BaseURL:    embProv.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: dim,
			Provider:   cfg.Embedding.Provider,
			InputType:  inputType,
			Logger:     logger,
		})
		var e domain.Embedder = base
		if kv != nil && cfg.Embedding.Cache {
			prefix := fmt.Sprintf("%semb:%s:%d:%s:", cfg.Storage.KeyPrefix, cfg.Embedding.Model, dim, mode)
			e = embcache.New(base, kv, embcache.Config{
				KeyPrefix: prefix,
				TTL:       time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour,
				Dim:       dim,
			}, metrics.EmbeddingCacheTotal, logger)
		}
		e = embeddinguc.NewResilient(e, cfg.Embedding.Provider, cfg.Embedding.Model, retrier, logger)
		return base, embeddinguc.WithInstruction(e, instruction)
	}
	queryBase, queryEmbedder := embedderFor("query", cfg.Embedding.QueryInputType, cfg.Embedding.QueryInstruction)
	_, docEmbedder := embedderFor("doc", cfg.Embedding.DocumentInputType, cfg.Embedding.DocumentInstruction)
	embeddings := embeddinguc.NewService(queryEmbedder, docEmbedder, dim, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", dim),
		zap.String("query_input_type", cfg.Embedding.QueryInputType),
		zap.String("document_input_type", cfg.Embedding.DocumentInputType),
		zap.Bool("cache", kv != nil && cfg.Embedding.Cache),
	)

	genProv := cfg.GenerationProvider()
	generator := openaiProv.NewGenerator(&openaiProv.GeneratorConfig{
		Config: openaiProv.Config{
			APIKey:   genProv.APIKey,
			BaseURL:  genProv.BaseURL,
			Model:    cfg.Generation.Model,
			Provider: cfg.Generation.Provider,
			Logger:   logger,
		},
		MaxTokens: cfg.Generation.MaxTokens,
		Seed:      cfg.Generation.Seed,
	})

	detector, err := language.NewLingua(language.Config{
		Default:       cfg.Language.Default,
		MinConfidence: cfg.Language.MinConfidence,
		Languages:     cfg.Language.Languages,
	}, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("language detector: %w", err)
	}

	retriever := retrievaluc.New(embeddings, store, cfg.Pipeline.TopK, logger)
	answers := answeruc.New(generator, cfg.Generation.EmojiCount, retrier, logger)

	a.pipeline = pipelineuc.New(retriever, detector, answers, cfg.Pipeline.TopK, pipelineuc.Timeouts{
		Embed:    time.Duration(cfg.Pipeline.EmbedTimeoutSec) * time.Second,
		Search:   time.Duration(cfg.Pipeline.SearchTimeoutSec) * time.Second,
		Generate: time.Duration(cfg.Pipeline.GenerateTimeoutSec) * time.Second,
	}, logger)
	a.ingest = ingestuc.New(parser.Reader{}, embeddings, store, logger)
	a.health = healthuc.New(store, healthProviders(cfg.HTTP, queryBase, generator)).
		WithTimeout(time.Duration(cfg.HTTP.HealthTimeoutSec) * time.Second)
	return a, nil
}

// healthProviders lists the provider checks /health runs. Without the
// opt-in only the vector store is checked.
func healthProviders(cfg config.HTTPConfig, emb, gen healthuc.ProviderChecker) map[string]healthuc.ProviderChecker {
	if !cfg.HealthCheckProviders {
		return nil
	}
	return map[string]healthuc.ProviderChecker{"embedding": emb, "generation": gen}
}

// openStore connects the configured vector store. kv is non-nil only for
// backends that can also hold the embedding cache.
func openStore(
	ctx context.Context, cfg config.Config, dim int, a *app, logger *zap.Logger,
) (vectorStore, *dbRedis.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverRedis, config.DriverValkey:
		// Redis 8 and Valkey with valkey-search speak the same FT.* dialect.
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
		}
		a.closers = append(a.closers, store.Close)

		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			return nil, nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database",
			zap.String("driver", cfg.Database.Driver),
			zap.Strings("addrs", cfg.Database.Addrs),
		)

		vs := vectorstore.NewRedis(store, cfg.Storage.KeyPrefix, cfg.Storage.Collection, dim, vectorstore.HNSW{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
		return vs, store, nil

	case config.DriverPostgres:
		pg, err := vectorstore.OpenPostgres(ctx, cfg.Database.DSN, cfg.Storage.Collection, dim)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, pg.Close)
		logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))
		return pg, nil, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory vector store; records are lost on exit")
		return vectorstore.NewMemory(dim), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

