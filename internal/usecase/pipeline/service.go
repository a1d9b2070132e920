package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	fsm "github.com/kailas-cloud/ragdex/internal/domain/pipeline"
	"github.com/kailas-cloud/ragdex/internal/domain/query"
	"github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// StageError is a pipeline failure tagged with the stage it happened in.
type StageError struct {
	Stage fsm.State
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Timeouts bound each stage. Zero means no stage deadline.
type Timeouts struct {
	Embed    time.Duration
	Search   time.Duration
	Generate time.Duration
}

// Service runs the query path: embed, retrieve, detect language, generate.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	retriever Retriever
	detector  LanguageDetector
	generator AnswerGenerator
	topK      int
	timeouts  Timeouts
	logger    *zap.Logger
}

// New creates the orchestrator. topK <= 0 lets the retriever pick its default.
func New(
	retriever Retriever, detector LanguageDetector, generator AnswerGenerator,
	topK int, timeouts Timeouts, logger *zap.Logger,
) *Service {
	return &Service{
		retriever: retriever,
		detector:  detector,
		generator: generator,
		topK:      topK,
		timeouts:  timeouts,
		logger:    logger,
	}
}

// run is the per-request state.
type run struct {
	m   *fsm.Machine
	log *zap.Logger
}

// Answer runs one question through the pipeline. Failures come back as
// *StageError wrapping a domain sentinel; invalid queries fail before any stage.
func (s *Service) Answer(ctx context.Context, q query.Query) (string, error) {
	if err := q.Validate(); err != nil {
		metrics.PipelineOutcomesTotal.WithLabelValues(string(domain.KindInvalidQuery)).Inc()
		return "", err
	}

	r := &run{m: fsm.NewMachine(), log: logger.FromContext(ctx, s.logger)}

	// Idle -> Embedding
	var vec []float32
	err := s.stage(ctx, r, s.timeouts.Embed, func(ctx context.Context) error {
		var err error
		vec, err = s.retriever.Embed(ctx, q.Question)
		return err
	})
	if err != nil {
		return "", err
	}

	// Embedding -> Retrieving
	var texts []string
	err = s.stage(ctx, r, s.timeouts.Search, func(ctx context.Context) error {
		var err error
		texts, err = s.retriever.Search(ctx, vec, s.topK)
		if err == nil && len(texts) == 0 {
			return domain.ErrNoRelevantContext
		}
		return err
	})
	if err != nil {
		return "", err
	}

	lang := s.detector.Detect(q.Question)
	r.log.Debug("language detected",
		zap.String("language", lang.Code),
		zap.Float64("confidence", lang.Confidence),
		zap.Bool("fallback", lang.Fallback),
	)

	// Retrieving -> Generating
	var answer string
	err = s.stage(ctx, r, s.timeouts.Generate, func(ctx context.Context) error {
		var err error
		answer, err = s.generator.Generate(ctx, q.Question, texts, fmt.Sprintf("%s (%s)", lang.Name, lang.Code))
		return err
	})
	if err != nil {
		return "", err
	}

	// Generating -> Done
	if _, err := r.m.Advance(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnexpected, err)
	}
	r.log.Debug("pipeline transition", zap.String("state", string(r.m.State())))
	metrics.PipelineOutcomesTotal.WithLabelValues("ok").Inc()
	return answer, nil
}

// stage advances the machine, runs fn under the stage timeout and fails the
// machine on error.
func (s *Service) stage(ctx context.Context, r *run, timeout time.Duration, fn func(ctx context.Context) error) error {
	st, err := r.m.Advance()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnexpected, err)
	}
	r.log.Debug("pipeline transition", zap.String("state", string(st)))

	stageCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	start := time.Now()
	err = fn(stageCtx)
	cancel()

	if err == nil {
		metrics.PipelineStageDuration.WithLabelValues(string(st), "ok").Observe(time.Since(start).Seconds())
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		err = fmt.Errorf("%w after %s: %w", domain.ErrTimeout, time.Since(start).Round(time.Millisecond), err)
	}
	kind := domain.KindOf(err)
	metrics.PipelineStageDuration.WithLabelValues(string(st), "error").Observe(time.Since(start).Seconds())
	metrics.PipelineOutcomesTotal.WithLabelValues(string(kind)).Inc()

	_ = r.m.Fail()
	r.log.Debug("pipeline transition",
		zap.String("state", string(r.m.State())),
		zap.String("from", string(st)),
		zap.String("kind", string(kind)),
	)
	return &StageError{Stage: st, Err: err}
}
