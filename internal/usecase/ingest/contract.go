package ingest

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain/record"
)

// DocumentReader yields the ordered paragraphs of a local document.
type DocumentReader interface {
	Read(path string) ([]string, error)
}

// DocumentEmbedder embeds chunks in document mode.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// RecordWriter persists vector records.
type RecordWriter interface {
	Add(ctx context.Context, recs []record.Record) error
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, ids []string) error
}
