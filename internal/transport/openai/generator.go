package openai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// ZeroTemperature is what the client must send for temperature 0: the request
// field is omitempty, so a literal 0 would be dropped and the provider default used.
const ZeroTemperature = math.SmallestNonzeroFloat32

// GeneratorConfig extends Config with decoding settings.
type GeneratorConfig struct {
	Config
	MaxTokens int
	Seed      int
}

// Generator is a chat completion provider on the OpenAI-compatible API.
type Generator struct {
	client    *openai.Client
	model     string
	maxTokens int
	seed      int
	provider  string
	logger    *zap.Logger
}

// NewGenerator creates an OpenAI-compatible generation provider.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:    newClient(&cfg.Config),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		seed:      cfg.Seed,
		provider:  cfg.Provider,
		logger:    logger,
	}
}

// Generate implements domain.Generator with deterministic decoding: temperature
// 0, a fixed seed and a single choice.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	seed := g.seed
	chatReq := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    buildMessages(req),
		Temperature: ZeroTemperature,
		Seed:        &seed,
		N:           1,
	}
	if g.maxTokens > 0 {
		chatReq.MaxTokens = g.maxTokens
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		g.fail("api_error")
		return domain.GenerationResult{}, parseAPIError("generation", err, domain.ErrGenerationFailure)
	}
	if len(resp.Choices) == 0 {
		g.fail("empty_response")
		return domain.GenerationResult{}, fmt.Errorf("no choices in completion: %w", domain.ErrGenerationFailure)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		g.fail("empty_answer")
		return domain.GenerationResult{}, fmt.Errorf("empty completion (finish_reason=%s): %w",
			resp.Choices[0].FinishReason, domain.ErrGenerationFailure)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(g.provider, g.model).Observe(time.Since(start).Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	g.logger.Debug("completion generated",
		zap.String("model", g.model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return domain.GenerationResult{
		Text:             text,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (g *Generator) fail(errorType string) {
	metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
	metrics.GenerationErrorsTotal.WithLabelValues(g.provider, g.model, errorType).Inc()
}

// HealthCheck verifies API availability via ListModels.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// buildMessages lays the request out as system instruction, one system
// message carrying the reference documents, then the user turn.
func buildMessages(req domain.GenerationRequest) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, 3)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	if len(req.Documents) > 0 {
		var sb strings.Builder
		sb.WriteString("Documents:")
		for i, d := range req.Documents {
			fmt.Fprintf(&sb, "\n[%d] %s", i+1, d)
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: sb.String()})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
	return msgs
}
