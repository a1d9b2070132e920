package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/chunk"
	"github.com/kailas-cloud/ragdex/internal/domain/record"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// Report summarizes one ingestion run. Total is the store size afterwards,
// -1 when it could not be counted.
type Report struct {
	Path       string
	Paragraphs int
	Chunks     int
	Stored     int
	Pruned     int
	Total      int
	Duration   time.Duration
}

// Service loads the document into the vector store.
type Service struct {
	reader   DocumentReader
	embedder DocumentEmbedder
	store    RecordWriter
	logger   *zap.Logger
}

// New creates an ingestion service.
func New(reader DocumentReader, embedder DocumentEmbedder, store RecordWriter, logger *zap.Logger) *Service {
	return &Service{reader: reader, embedder: embedder, store: store, logger: logger}
}

// Ingest reads the document at path, chunks it, embeds the chunks in
// document mode and upserts them as id_<i> records. Re-ingesting the same
// document overwrites the same ids; when the new version has fewer chunks,
// the leftover ids from the previous run are deleted afterwards.
//
// An unreadable document yields a zero-chunk report and an error wrapping
// domain.ErrDocumentUnreadable; callers decide whether that is fatal.
func (s *Service) Ingest(ctx context.Context, path string) (Report, error) {
	start := time.Now()
	rep := Report{Path: path, Total: -1}

	paras, err := s.reader.Read(path)
	if err != nil {
		s.logger.Error("document unreadable, nothing ingested",
			zap.String("path", path),
			zap.Error(err),
		)
		if !errors.Is(err, domain.ErrDocumentUnreadable) {
			err = fmt.Errorf("%w: %w", domain.ErrDocumentUnreadable, err)
		}
		return rep, fmt.Errorf("ingest %s: %w", path, err)
	}
	rep.Paragraphs = len(paras)

	chunks := chunk.FromParagraphs(paras)
	rep.Chunks = len(chunks)
	if len(chunks) == 0 {
		s.logger.Warn("document has no text", zap.String("path", path), zap.Int("paragraphs", len(paras)))
		rep.Duration = time.Since(start)
		return rep, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text()
	}

	vecs, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		metrics.IngestChunksTotal.WithLabelValues("failed").Add(float64(len(chunks)))
		return rep, fmt.Errorf("ingest %s: %w", path, err)
	}
	if len(vecs) != len(chunks) {
		return rep, fmt.Errorf("ingest %s: %d chunks, %d vectors: %w", path, len(chunks), len(vecs), domain.ErrEmbeddingFailure)
	}

	recs := make([]record.Record, len(chunks))
	for i, c := range chunks {
		rec, err := record.New(c.ID(), vecs[i], c.Text(), c.Metadata())
		if err != nil {
			return rep, fmt.Errorf("ingest %s: %w", path, err)
		}
		recs[i] = rec
	}

	before, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Warn("count before ingest failed, stale chunks will not be pruned", zap.Error(err))
		before = 0
	}

	if err := s.store.Add(ctx, recs); err != nil {
		var pw *domain.PartialWriteError
		if errors.As(err, &pw) {
			rep.Stored = pw.Written
		}
		metrics.IngestChunksTotal.WithLabelValues("stored").Add(float64(rep.Stored))
		metrics.IngestChunksTotal.WithLabelValues("failed").Add(float64(len(recs) - rep.Stored))
		s.logger.Error("storing chunks failed",
			zap.String("path", path),
			zap.Int("stored", rep.Stored),
			zap.Int("chunks", len(recs)),
			zap.Error(err),
		)
		return rep, fmt.Errorf("ingest %s: %w", path, err)
	}
	rep.Stored = len(recs)
	metrics.IngestChunksTotal.WithLabelValues("stored").Add(float64(rep.Stored))

	if before > len(recs) {
		stale := make([]string, 0, before-len(recs))
		for i := len(recs); i < before; i++ {
			stale = append(stale, chunk.IDFor(i))
		}
		if err := s.store.Delete(ctx, stale); err != nil {
			s.logger.Warn("pruning stale chunks failed", zap.Int("stale", len(stale)), zap.Error(err))
		} else {
			rep.Pruned = len(stale)
		}
	}

	if n, err := s.store.Count(ctx); err != nil {
		s.logger.Warn("count after ingest failed", zap.Error(err))
	} else {
		rep.Total = n
	}
	rep.Duration = time.Since(start)

	s.logger.Info("document ingested",
		zap.String("path", path),
		zap.Int("paragraphs", rep.Paragraphs),
		zap.Int("chunks", rep.Chunks),
		zap.Int("pruned", rep.Pruned),
		zap.Int("total_records", rep.Total),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}
