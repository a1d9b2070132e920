// Package language detects the language a question is written in.
package language

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// Result is a detection outcome. Fallback is set when the default language
// was used instead of a confident detection.
type Result struct {
	Code       string // ISO 639-1, lower case
	Name       string
	Confidence float64
	Fallback   bool
}

// Detector detects the language of a text. It never fails.
type Detector interface {
	Detect(text string) Result
}

// Config is the detection policy.
type Config struct {
	Default       string
	MinConfidence float64
	Languages     []string
}

// Lingua is the default Detector, backed by lingua-go in low accuracy mode.
type Lingua struct {
	detector      lingua.LanguageDetector
	fallback      Result
	minConfidence float64
	logger        *zap.Logger
}

// NewLingua builds the detector and preloads its language models.
func NewLingua(cfg Config, logger *zap.Logger) (*Lingua, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	defaultLang, err := lookup(cfg.Default)
	if err != nil {
		return nil, fmt.Errorf("language.default: %w", err)
	}
	fallback := resultOf(defaultLang)
	fallback.Fallback = true

	builder := lingua.NewLanguageDetectorBuilder()
	switch len(cfg.Languages) {
	case 0:
		builder = builder.FromAllLanguages()
	case 1:
		return nil, fmt.Errorf("language detection needs at least 2 languages, got %v", cfg.Languages)
	default:
		langs := make([]lingua.Language, 0, len(cfg.Languages))
		for _, code := range cfg.Languages {
			l, err := lookup(code)
			if err != nil {
				return nil, fmt.Errorf("language.languages: %w", err)
			}
			langs = append(langs, l)
		}
		builder = builder.FromLanguages(langs...)
	}

	return &Lingua{
		detector:      builder.WithLowAccuracyMode().WithPreloadedLanguageModels().Build(),
		fallback:      fallback,
		minConfidence: cfg.MinConfidence,
		logger:        logger,
	}, nil
}

// Detect returns the most likely language, or the configured default when
// the text is empty, undetectable or below the confidence threshold.
func (d *Lingua) Detect(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return d.useFallback("empty", 0)
	}

	values := d.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return d.useFallback("undetected", 0)
	}

	top := values[0]
	if top.Value() < d.minConfidence {
		return d.useFallback("low_confidence", top.Value())
	}

	metrics.LanguageDetectionsTotal.WithLabelValues("detected").Inc()
	r := resultOf(top.Language())
	r.Confidence = top.Value()
	return r
}

func (d *Lingua) useFallback(reason string, confidence float64) Result {
	metrics.LanguageDetectionsTotal.WithLabelValues("fallback").Inc()
	d.logger.Debug("language fallback",
		zap.String("reason", reason),
		zap.Float64("confidence", confidence),
		zap.String("language", d.fallback.Code),
	)
	r := d.fallback
	r.Confidence = confidence
	return r
}

// Fixed always reports one language.
type Fixed struct {
	Result Result
}

// NewFixed returns a Detector that always answers code.
func NewFixed(code string) (*Fixed, error) {
	l, err := lookup(code)
	if err != nil {
		return nil, err
	}
	r := resultOf(l)
	r.Confidence = 1
	return &Fixed{Result: r}, nil
}

// Detect implements Detector.
func (f *Fixed) Detect(string) Result { return f.Result }

// lookup resolves an ISO 639-1 code.
func lookup(code string) (lingua.Language, error) {
	iso := lingua.GetIsoCode639_1FromValue(strings.ToUpper(strings.TrimSpace(code)))
	if iso == lingua.UnknownIsoCode639_1 {
		return lingua.Unknown, fmt.Errorf("unknown ISO 639-1 code %q", code)
	}
	return lingua.GetLanguageFromIsoCode639_1(iso), nil
}

func resultOf(l lingua.Language) Result {
	return Result{Code: strings.ToLower(l.IsoCode639_1().String()), Name: l.String()}
}
