package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"summaryrelay/internal/domain/entity"
	"summaryrelay/internal/domain/repository"
	"summaryrelay/internal/infrastructure/content"
	"summaryrelay/internal/infrastructure/metrics"
)

type Options struct {
	PromptPrefix string
	// AllowEmpty returns an empty successful summary instead of ErrEmptySummary.
	AllowEmpty bool
	Extractor  content.Extractor
	Recorder   metrics.Recorder
	Logger     *slog.Logger
}

type SummaryService struct {
	generator    repository.GeneratorRepository
	extractor    content.Extractor
	recorder     metrics.Recorder
	promptPrefix string
	allowEmpty   bool
	log          *slog.Logger
}

func NewSummaryService(generator repository.GeneratorRepository, opts Options) *SummaryService {
	prefix := opts.PromptPrefix
	if prefix == "" {
		prefix = entity.DefaultPromptPrefix
	}

	extractor := opts.Extractor
	if extractor == nil {
		extractor = content.PassthroughExtractor{}
	}

	var recorder metrics.Recorder = metrics.Nop{}
	if opts.Recorder != nil {
		recorder = opts.Recorder
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &SummaryService{
		generator:    generator,
		extractor:    extractor,
		recorder:     recorder,
		promptPrefix: prefix,
		allowEmpty:   opts.AllowEmpty,
		log:          log,
	}
}

// GenerateSummary validates req, sends one prompt to the backend and returns
// the aggregated completion. Elapsed time covers the backend call only.
func (s *SummaryService) GenerateSummary(ctx context.Context, req *entity.SummaryRequest) (*entity.Summary, error) {
	s.log.InfoContext(ctx, "Received summary request",
		"module", req.Module,
		"contentBytes", len(req.Content))

	if err := req.Validate(); err != nil {
		s.recorder.ObserveRequest(metrics.ModuleInvalid, metrics.OutcomeInvalidInput)
		s.log.InfoContext(ctx, "Rejected summary request",
			"error", err,
			"module", req.Module)
		return nil, err
	}

	shaped := entity.NewGenerateRequest(s.promptPrefix, &entity.SummaryRequest{
		Module:  req.Module,
		Content: s.extractor.Extract(req.Content),
	})

	start := time.Now()
	text, err := s.generator.Generate(ctx, shaped)
	elapsed := time.Since(start)
	s.recorder.ObserveGeneration(req.Module, elapsed)

	if err != nil {
		s.recorder.ObserveRequest(req.Module, outcomeOf(err))
		s.log.ErrorContext(ctx, "Summary generation failed",
			"error", err,
			"module", req.Module,
			"provider", s.generator.Name(),
			"elapsedMs", elapsed.Milliseconds())
		return nil, fmt.Errorf("failed to generate summary with %s: %w", s.generator.Name(), err)
	}

	if text == "" && !s.allowEmpty {
		s.recorder.ObserveRequest(req.Module, metrics.OutcomeEmpty)
		s.log.WarnContext(ctx, "Backend stream contained no response fragments",
			"module", req.Module,
			"provider", s.generator.Name(),
			"elapsedMs", elapsed.Milliseconds())
		return nil, entity.ErrEmptySummary
	}

	s.recorder.ObserveRequest(req.Module, metrics.OutcomeSuccess)
	s.log.InfoContext(ctx, "Summary generated",
		"module", req.Module,
		"provider", s.generator.Name(),
		"elapsedMs", elapsed.Milliseconds(),
		"responseBytes", len(text))

	return entity.NewSummary(req.Module, elapsed, text), nil
}

func outcomeOf(err error) string {
	var (
		backendErr   *entity.BackendError
		timeoutErr   *entity.BackendTimeoutError
		transportErr *entity.TransportError
	)
	switch {
	case errors.As(err, &backendErr):
		return metrics.OutcomeBackendError
	case errors.As(err, &timeoutErr):
		return metrics.OutcomeTimeout
	case errors.As(err, &transportErr):
		return metrics.OutcomeTransport
	default:
		return metrics.OutcomeUnknown
	}
}
