package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	fsm "github.com/kailas-cloud/ragdex/internal/domain/pipeline"
	"github.com/kailas-cloud/ragdex/internal/domain/query"
	"github.com/kailas-cloud/ragdex/internal/language"
	"github.com/kailas-cloud/ragdex/internal/repository/vectorstore"
	"github.com/kailas-cloud/ragdex/internal/transport/openai"
	"github.com/kailas-cloud/ragdex/internal/usecase/answer"
	"github.com/kailas-cloud/ragdex/internal/usecase/embedding"
	"github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	"github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

// --- Fakes ---

var vocabulary = []string{"paris", "france", "berlin", "germany", "capital", "eiffel", "tower"}

// keywordEmbedder maps text to keyword counts over a fixed vocabulary.
// Instruction prefixes are ignored since they contain no vocabulary words.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	text = strings.ToLower(text)
	vec := make([]float32, len(vocabulary))
	for i, w := range vocabulary {
		vec[i] = float32(strings.Count(text, w))
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

type stubReader struct{ paras []string }

func (r stubReader) Read(string) ([]string, error) { return r.paras, nil }

// echoGenerator answers deterministically from its inputs.
type echoGenerator struct {
	calls   int
	context []string
	lang    string
}

func (g *echoGenerator) Generate(_ context.Context, _ string, contextTexts []string, lang string) (string, error) {
	g.calls++
	g.context = contextTexts
	g.lang = lang
	return "They say: " + contextTexts[0], nil
}

type stubRetriever struct {
	embedErr  error
	searchErr error
	texts     []string
	delay     time.Duration
}

func (r stubRetriever) Embed(ctx context.Context, _ string) ([]float32, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []float32{1}, r.embedErr
}

func (r stubRetriever) Search(context.Context, []float32, int) ([]string, error) {
	return r.texts, r.searchErr
}

type failingGenerator struct{ err error }

func (g failingGenerator) Generate(context.Context, string, []string, string) (string, error) {
	return "", g.err
}

func fixedLanguage(t *testing.T) LanguageDetector {
	t.Helper()
	d, err := language.NewFixed("en")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// newStack wires the real retrieval path over the memory store and ingests paras.
func newStack(t *testing.T, paras []string) (*retrieval.Service, *vectorstore.Memory) {
	t.Helper()
	emb := embedding.NewService(
		embedding.WithInstruction(keywordEmbedder{}, "query: "),
		embedding.WithInstruction(keywordEmbedder{}, "passage: "),
		len(vocabulary), zap.NewNop(),
	)
	store := vectorstore.NewMemory(len(vocabulary))
	if len(paras) > 0 {
		if _, err := ingest.New(stubReader{paras}, emb, store, zap.NewNop()).Ingest(context.Background(), "doc.docx"); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	return retrieval.New(emb, store, 1, zap.NewNop()), store
}

func mustQuery(t *testing.T, question string) query.Query {
	t.Helper()
	q, err := query.New("Alice", question)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

// --- Scenarios ---

func TestAnswer_RetrievesClosestChunk(t *testing.T) {
	ret, _ := newStack(t, []string{"Paris is the capital of France.", "", "Berlin is the capital of Germany."})
	gen := &echoGenerator{}
	svc := New(ret, fixedLanguage(t), gen, 1, Timeouts{}, zap.NewNop())

	got, err := svc.Answer(context.Background(), mustQuery(t, "What is the capital of France?"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "They say: Paris is the capital of France." {
		t.Errorf("answer = %q", got)
	}
	if len(gen.context) != 1 {
		t.Errorf("expected 1 context chunk, got %d", len(gen.context))
	}
	if gen.lang != "English (en)" {
		t.Errorf("lang = %q", gen.lang)
	}
}

func TestAnswer_SharedEntityPicksMatchingParagraph(t *testing.T) {
	// both paragraphs mention Paris
	ret, _ := newStack(t, []string{"Paris is the capital of France.", "The Eiffel Tower is in Paris."})

	tests := []struct {
		question string
		want     string
	}{
		{"What is the capital of France?", "Paris is the capital of France."},
		{"Where is the Eiffel Tower?", "The Eiffel Tower is in Paris."},
	}
	for _, tc := range tests {
		t.Run(tc.question, func(t *testing.T) {
			gen := &echoGenerator{}
			svc := New(ret, fixedLanguage(t), gen, 1, Timeouts{}, zap.NewNop())

			got, err := svc.Answer(context.Background(), mustQuery(t, tc.question))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(gen.context) != 1 || gen.context[0] != tc.want {
				t.Errorf("context = %q, want [%q]", gen.context, tc.want)
			}
			if got != "They say: "+tc.want {
				t.Errorf("answer = %q", got)
			}
		})
	}
}

func TestAnswer_EmptyStoreHasNoContext(t *testing.T) {
	ret, _ := newStack(t, nil)
	gen := &echoGenerator{}
	svc := New(ret, fixedLanguage(t), gen, 1, Timeouts{}, zap.NewNop())

	_, err := svc.Answer(context.Background(), mustQuery(t, "What is the capital of France?"))
	if !errors.Is(err, domain.ErrNoRelevantContext) {
		t.Fatalf("expected ErrNoRelevantContext, got %v", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != fsm.Retrieving {
		t.Errorf("expected failure in retrieving, got %v", err)
	}
	if gen.calls != 0 {
		t.Error("generator must not be called without context")
	}
}

func TestAnswer_DeterministicOverProvider(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var body struct {
			Temperature *float64 `json:"temperature"`
			Seed        *int     `json:"seed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Temperature == nil || *body.Temperature > 1e-30 {
			t.Errorf("expected temperature 0, got %v", body.Temperature)
		}
		if body.Seed == nil {
			t.Error("expected a fixed seed")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "x",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "Alice learns that Paris is the capital of France 🇫🇷🗼🥐"},
				"finish_reason": "stop",
			}},
		})
	}))
	defer server.Close()

	gen := openai.NewGenerator(&openai.GeneratorConfig{
		Config: openai.Config{APIKey: "k", BaseURL: server.URL, Model: "command-r-plus-08-2024", Provider: "test"},
		Seed:   7,
	})
	ret, _ := newStack(t, []string{"Paris is the capital of France.", "Berlin is the capital of Germany."})
	svc := New(ret, fixedLanguage(t), answer.New(gen, 3, nil, zap.NewNop()), 1, Timeouts{}, zap.NewNop())

	q := mustQuery(t, "What is the capital of France?")
	first, err := svc.Answer(context.Background(), q)
	if err != nil {
		t.Fatalf("first answer: %v", err)
	}
	second, err := svc.Answer(context.Background(), q)
	if err != nil {
		t.Fatalf("second answer: %v", err)
	}
	if first != second {
		t.Errorf("answers differ: %q vs %q", first, second)
	}
	if n := requests.Load(); n != 2 {
		t.Errorf("expected 2 provider calls, got %d", n)
	}
}

// --- Failure paths ---

func TestAnswer_InvalidQuery(t *testing.T) {
	svc := New(stubRetriever{}, fixedLanguage(t), &echoGenerator{}, 1, Timeouts{}, zap.NewNop())

	_, err := svc.Answer(context.Background(), query.Query{UserName: "bob", Question: "  "})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestAnswer_StageFailures(t *testing.T) {
	tests := []struct {
		name      string
		retriever stubRetriever
		gen       AnswerGenerator
		stage     fsm.State
		want      error
	}{
		{"embedding", stubRetriever{embedErr: domain.ErrEmbeddingFailure}, &echoGenerator{}, fsm.Embedding, domain.ErrEmbeddingFailure},
		{"dimension", stubRetriever{searchErr: domain.ErrVectorDimMismatch}, &echoGenerator{}, fsm.Retrieving, domain.ErrVectorDimMismatch},
		{"generation", stubRetriever{texts: []string{"ctx"}}, failingGenerator{domain.ErrGenerationFailure}, fsm.Generating, domain.ErrGenerationFailure},
		{"unexpected", stubRetriever{texts: []string{"ctx"}}, failingGenerator{errors.New("boom")}, fsm.Generating, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(tt.retriever, fixedLanguage(t), tt.gen, 1, Timeouts{}, zap.NewNop())

			_, err := svc.Answer(context.Background(), mustQuery(t, "q"))
			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("expected StageError, got %v", err)
			}
			if se.Stage != tt.stage {
				t.Errorf("stage = %s, want %s", se.Stage, tt.stage)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if tt.want == nil && domain.KindOf(err) != domain.KindUnexpected {
				t.Errorf("kind = %s, want unexpected", domain.KindOf(err))
			}
		})
	}
}

func TestAnswer_StageTimeout(t *testing.T) {
	svc := New(stubRetriever{delay: time.Second, texts: []string{"ctx"}}, fixedLanguage(t), &echoGenerator{},
		1, Timeouts{Embed: 10 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	_, err := svc.Answer(context.Background(), mustQuery(t, "q"))
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("stage timeout not applied")
	}
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if domain.KindOf(err) != domain.KindTimeout {
		t.Errorf("kind = %s, want timeout", domain.KindOf(err))
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != fsm.Embedding {
		t.Errorf("expected failure in embedding, got %v", err)
	}
}
