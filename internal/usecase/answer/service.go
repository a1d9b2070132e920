package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Service produces the templated one-sentence answer.
type Service struct {
	gen        domain.Generator
	emojiCount int
	retrier    Retrier
	logger     *zap.Logger
}

// New creates an answer service. A nil retrier calls the generator once.
func New(gen domain.Generator, emojiCount int, retrier Retrier, logger *zap.Logger) *Service {
	if emojiCount <= 0 {
		emojiCount = DefaultEmojiCount
	}
	return &Service{gen: gen, emojiCount: emojiCount, retrier: retrier, logger: logger}
}

// Generate answers question from the retrieved context in lang.
// The context is passed as reference documents, the question as the user turn.
func (s *Service) Generate(ctx context.Context, question string, contextTexts []string, lang string) (string, error) {
	req := domain.GenerationRequest{
		System:    SystemPrompt(lang, s.emojiCount),
		Documents: contextTexts,
		Prompt:    question,
	}

	start := time.Now()
	var res domain.GenerationResult
	call := func(ctx context.Context) error {
		var err error
		res, err = s.gen.Generate(ctx, req)
		return err
	}

	var err error
	if s.retrier != nil {
		err = s.retrier.Do(ctx, "generate", call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		s.logger.Error("Generation request failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return "", failure(err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fmt.Errorf("generate: empty answer: %w", domain.ErrGenerationFailure)
	}

	s.logger.Debug("Answer generated",
		zap.String("language", lang),
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens),
	)
	return text, nil
}

func failure(err error) error {
	switch {
	case errors.Is(err, domain.ErrGenerationFailure),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("generate: %w", err)
	default:
		return fmt.Errorf("generate: %w: %w", domain.ErrGenerationFailure, err)
	}
}
