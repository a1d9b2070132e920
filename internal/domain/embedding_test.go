package domain

import (
	"context"
	"errors"
	"testing"
)

// lenEmbedder returns {len(text)} and charges one token per text.
type lenEmbedder struct {
	calls []string
	failOn string
}

func (e *lenEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	e.calls = append(e.calls, text)
	if text == e.failOn {
		return EmbeddingResult{}, errors.New("rate limited")
	}
	return EmbeddingResult{Embedding: []float32{float32(len(text))}, PromptTokens: 1, TotalTokens: 1}, nil
}

type batchLenEmbedder struct {
	lenEmbedder
	batches int
}

func (e *batchLenEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	e.batches++
	return BatchFallback(ctx, &e.lenEmbedder, texts)
}

func TestBatchFallback(t *testing.T) {
	tests := []struct {
		name      string
		texts     []string
		failOn    string
		wantErr   bool
		wantCalls int
		wantVecs  []float32
	}{
		{name: "in order", texts: []string{"a", "bbb", "cc"}, wantCalls: 3, wantVecs: []float32{1, 3, 2}},
		{name: "empty", texts: nil, wantCalls: 0},
		{name: "stops at failure", texts: []string{"a", "boom", "c"}, failOn: "boom", wantErr: true, wantCalls: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := &lenEmbedder{failOn: tc.failOn}
			res, err := BatchFallback(context.Background(), e, tc.texts)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if len(e.calls) != tc.wantCalls {
				t.Errorf("calls = %d, want %d", len(e.calls), tc.wantCalls)
			}
			if tc.wantErr {
				return
			}
			if len(res.Embeddings) != len(tc.wantVecs) {
				t.Fatalf("got %d vectors, want %d", len(res.Embeddings), len(tc.wantVecs))
			}
			for i, v := range tc.wantVecs {
				if res.Embeddings[i][0] != v {
					t.Errorf("vector %d = %v, want %v", i, res.Embeddings[i], v)
				}
			}
			if res.TotalTokens != len(tc.texts) || res.PromptTokens != len(tc.texts) {
				t.Errorf("usage = %d/%d, want %d", res.PromptTokens, res.TotalTokens, len(tc.texts))
			}
		})
	}
}

func TestEmbedAll_PrefersBatch(t *testing.T) {
	e := &batchLenEmbedder{}
	res, err := EmbedAll(context.Background(), e, []string{"x", "yy"})
	if err != nil {
		t.Fatal(err)
	}
	if e.batches != 1 || len(res.Embeddings) != 2 {
		t.Errorf("batches = %d, vectors = %d", e.batches, len(res.Embeddings))
	}
}

func TestEmbedAll_FallsBackToSingle(t *testing.T) {
	e := &lenEmbedder{}
	if _, err := EmbedAll(context.Background(), e, []string{"x", "yy"}); err != nil {
		t.Fatal(err)
	}
	if len(e.calls) != 2 {
		t.Errorf("single calls = %d, want 2", len(e.calls))
	}
}

func TestCheckVector(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
		dim  int
		want error
	}{
		{"valid", []float32{0, 0.3}, 2, nil},
		{"unchecked length", []float32{1, 2, 3}, 0, nil},
		{"empty", nil, 2, ErrEmbeddingFailure},
		{"all zero", []float32{0, 0}, 2, ErrEmbeddingFailure},
		{"wrong length", []float32{1}, 2, ErrVectorDimMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckVector(tc.vec, tc.dim)
			if tc.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			if KindOf(err) == "" {
				t.Error("every rejection must map to an error kind")
			}
		})
	}
}
