package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

func TestResilient_Embed(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		max       int
		wantErr   bool
		wantCalls int
		retries   float64
	}{
		{name: "first try", failures: 0, max: 3, wantCalls: 1},
		{name: "recovers", failures: 2, max: 3, wantCalls: 3, retries: 2},
		{name: "gives up", failures: 5, max: 2, wantErr: true, wantCalls: 2, retries: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := "cohere-" + tc.name
			inner := &flakyEmbedder{failures: tc.failures}
			r := NewResilient(inner, provider, "embed-multilingual-v3.0", countingRetrier{max: tc.max}, zap.NewNop())

			res, err := r.Embed(context.Background(), "¿Cuál es la capital de Francia?")
			if tc.wantErr {
				if !errors.Is(err, errUnavailable) {
					t.Fatalf("expected last provider error, got %v", err)
				}
			} else if err != nil || len(res.Embedding) != 2 {
				t.Fatalf("got %v, %v", res, err)
			}
			if inner.calls != tc.wantCalls {
				t.Errorf("calls = %d, want %d", inner.calls, tc.wantCalls)
			}
			if got := testutil.ToFloat64(metrics.EmbeddingRetriesTotal.WithLabelValues(provider)); got != tc.retries {
				t.Errorf("retries counted = %v, want %v", got, tc.retries)
			}
		})
	}
}

func TestResilient_EmbedWithoutRetrier(t *testing.T) {
	inner := &plainMockEmbedder{err: fmt.Errorf("bad key: %w", domain.ErrEmbeddingFailure)}
	r := NewResilient(inner, "cohere", "m", nil, zap.NewNop())

	if _, err := r.Embed(context.Background(), "x"); !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected ErrEmbeddingFailure, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestResilient_EmbedPassesUsageThrough(t *testing.T) {
	inner := &plainMockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, PromptTokens: 7, TotalTokens: 7}}
	r := NewResilient(inner, "cohere", "m", nil, zap.NewNop())

	res, err := r.Embed(context.Background(), "x")
	if err != nil || res.TotalTokens != 7 {
		t.Fatalf("got %+v, %v", res, err)
	}
}

func TestResilient_BatchSplitsAtProviderLimit(t *testing.T) {
	inner := &batchMockEmbedder{plainMockEmbedder: plainMockEmbedder{
		result: domain.EmbeddingResult{Embedding: []float32{0.5}, PromptTokens: 1, TotalTokens: 1},
	}}
	r := NewResilient(inner, "cohere", "m", nil, zap.NewNop())

	texts := make([]string, 2*DefaultMaxAPIBatchSize+3)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}
	res, err := r.BatchEmbed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := fmt.Sprint([]int{DefaultMaxAPIBatchSize, DefaultMaxAPIBatchSize, 3}); fmt.Sprint(inner.sizes) != want {
		t.Errorf("batch sizes = %v, want %s", inner.sizes, want)
	}
	if len(res.Embeddings) != len(texts) || res.TotalTokens != len(texts) {
		t.Errorf("got %d vectors, %d tokens", len(res.Embeddings), res.TotalTokens)
	}
	if inner.batched[len(texts)-1] != texts[len(texts)-1] {
		t.Error("order not preserved across batches")
	}
}

func TestResilient_BatchFailures(t *testing.T) {
	tests := []struct {
		name  string
		inner *batchMockEmbedder
		want  error
	}{
		{"provider error", &batchMockEmbedder{batchErr: errUnavailable}, errUnavailable},
		{"vector count mismatch", &batchMockEmbedder{
			plainMockEmbedder: plainMockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}},
			short:             true,
		}, domain.ErrEmbeddingFailure},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewResilient(tc.inner, "cohere", "m", nil, zap.NewNop())
			if _, err := r.BatchEmbed(context.Background(), []string{"a", "b"}); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestResilient_BatchWithoutBatchSupport(t *testing.T) {
	inner := &plainMockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	r := NewResilient(inner, "cohere", "m", nil, zap.NewNop())

	res, err := r.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil || len(res.Embeddings) != 2 || inner.calls != 2 {
		t.Fatalf("got %d vectors, %d calls, %v", len(res.Embeddings), inner.calls, err)
	}
}

func TestResilient_BatchEmpty(t *testing.T) {
	inner := &batchMockEmbedder{}
	r := NewResilient(inner, "cohere", "m", nil, zap.NewNop())

	res, err := r.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil || len(inner.sizes) != 0 {
		t.Fatalf("got %+v, %v, %d provider calls", res, err, len(inner.sizes))
	}
}

func TestWithInstruction(t *testing.T) {
	inner := &batchMockEmbedder{plainMockEmbedder: plainMockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}}

	if got := WithInstruction(inner, ""); got != domain.Embedder(inner) {
		t.Error("empty instruction must not wrap")
	}

	e := WithInstruction(inner, "search_query: ")
	if _, err := e.Embed(context.Background(), "hola"); err != nil {
		t.Fatal(err)
	}
	if _, err := domain.EmbedAll(context.Background(), e, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if inner.texts[0] != "search_query: hola" {
		t.Errorf("single call saw %q", inner.texts[0])
	}
	if fmt.Sprint(inner.batched) != "[search_query: a search_query: b]" {
		t.Errorf("batch call saw %q", inner.batched)
	}
}

func TestWithInstruction_WrapsErrors(t *testing.T) {
	inner := &plainMockEmbedder{err: errUnavailable}
	if _, err := WithInstruction(inner, "q: ").Embed(context.Background(), "x"); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
