package pipeline

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/language"
)

// Retriever embeds a question and finds the closest chunk texts.
type Retriever interface {
	Embed(ctx context.Context, question string) ([]float32, error)
	Search(ctx context.Context, vec []float32, k int) ([]string, error)
}

// LanguageDetector picks the answer language. It never fails.
type LanguageDetector interface {
	Detect(text string) language.Result
}

// AnswerGenerator produces the final answer from retrieved context.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, contextTexts []string, lang string) (string, error)
}
