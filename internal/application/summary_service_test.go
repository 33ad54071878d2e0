package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"summaryrelay/internal/domain/entity"
	"summaryrelay/internal/infrastructure/content"
	"summaryrelay/internal/infrastructure/metrics"
)

type mockGenerator struct {
	text     string
	err      error
	delay    time.Duration
	requests []*entity.GenerateRequest
}

func (m *mockGenerator) Generate(ctx context.Context, req *entity.GenerateRequest) (string, error) {
	m.requests = append(m.requests, req)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *mockGenerator) Name() string {
	return "mock"
}

type mockRecorder struct {
	modules     []string
	outcomes    []string
	generations int
}

func (m *mockRecorder) ObserveRequest(module, outcome string) {
	m.modules = append(m.modules, module)
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockRecorder) ObserveGeneration(module string, elapsed time.Duration) {
	m.generations++
}

func (m *mockRecorder) ObserveMalformedLine(provider string) {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(gen *mockGenerator, rec *mockRecorder, opts Options) *SummaryService {
	opts.Logger = discardLogger()
	opts.Recorder = rec
	return NewSummaryService(gen, opts)
}

func TestSummaryService_GenerateSummary_Success(t *testing.T) {
	gen := &mockGenerator{text: "ABC", delay: 20 * time.Millisecond}
	rec := &mockRecorder{}
	service := newTestService(gen, rec, Options{})

	summary, err := service.GenerateSummary(context.Background(), entity.NewSummaryRequest("llama3", "long text"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Module != "llama3" {
		t.Errorf("expected module 'llama3', got %s", summary.Module)
	}
	if summary.Response != "ABC" {
		t.Errorf("expected response 'ABC', got %s", summary.Response)
	}
	if summary.Elapsed < 20*time.Millisecond {
		t.Errorf("expected elapsed to cover the backend call, got %v", summary.Elapsed)
	}

	if len(gen.requests) != 1 {
		t.Fatalf("expected 1 backend call, got %d", len(gen.requests))
	}
	if gen.requests[0].Model != "llama3" {
		t.Errorf("expected model 'llama3', got %s", gen.requests[0].Model)
	}
	if gen.requests[0].Prompt != entity.DefaultPromptPrefix+"long text" {
		t.Errorf("unexpected prompt: %q", gen.requests[0].Prompt)
	}

	if len(rec.outcomes) != 1 || rec.outcomes[0] != metrics.OutcomeSuccess {
		t.Errorf("expected success outcome, got %v", rec.outcomes)
	}
	if rec.generations != 1 {
		t.Errorf("expected 1 generation observation, got %d", rec.generations)
	}
}

func TestSummaryService_GenerateSummary_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		module  string
		content string
	}{
		{"empty module", "", "text"},
		{"empty content", "llama3", ""},
		{"blank both", " ", "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{text: "unused"}
			rec := &mockRecorder{}
			service := newTestService(gen, rec, Options{})

			_, err := service.GenerateSummary(context.Background(), entity.NewSummaryRequest(tt.module, tt.content))
			if !entity.IsInvalidInput(err) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
			if len(gen.requests) != 0 {
				t.Errorf("expected zero backend calls, got %d", len(gen.requests))
			}
			if rec.generations != 0 {
				t.Errorf("expected no generation timing, got %d", rec.generations)
			}
			if len(rec.outcomes) != 1 || rec.outcomes[0] != metrics.OutcomeInvalidInput {
				t.Errorf("expected invalid_input outcome, got %v", rec.outcomes)
			}
			if len(rec.modules) != 1 || rec.modules[0] != metrics.ModuleInvalid {
				t.Errorf("expected rejected request to use the %q module label, got %v", metrics.ModuleInvalid, rec.modules)
			}
		})
	}
}

func TestSummaryService_GenerateSummary_BackendFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"backend error", &entity.BackendError{StatusCode: 500, Body: "oom"}, metrics.OutcomeBackendError},
		{"timeout", &entity.BackendTimeoutError{Err: context.DeadlineExceeded}, metrics.OutcomeTimeout},
		{"transport", &entity.TransportError{Err: errors.New("connection refused")}, metrics.OutcomeTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{err: tt.err}
			rec := &mockRecorder{}
			service := newTestService(gen, rec, Options{})

			summary, err := service.GenerateSummary(context.Background(), entity.NewSummaryRequest("m", "c"))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if summary != nil {
				t.Errorf("expected no summary, got %+v", summary)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("expected wrapped %T, got %v", tt.err, err)
			}
			if !entity.IsGenerationFailure(err) {
				t.Errorf("expected generation failure kind, got %v", err)
			}
			if len(rec.outcomes) != 1 || rec.outcomes[0] != tt.outcome {
				t.Errorf("expected outcome %s, got %v", tt.outcome, rec.outcomes)
			}
		})
	}
}

func TestSummaryService_GenerateSummary_EmptyPolicy(t *testing.T) {
	t.Run("rejected by default", func(t *testing.T) {
		rec := &mockRecorder{}
		service := newTestService(&mockGenerator{text: ""}, rec, Options{})

		_, err := service.GenerateSummary(context.Background(), entity.NewSummaryRequest("m", "c"))
		if !errors.Is(err, entity.ErrEmptySummary) {
			t.Fatalf("expected ErrEmptySummary, got %v", err)
		}
		if len(rec.outcomes) != 1 || rec.outcomes[0] != metrics.OutcomeEmpty {
			t.Errorf("expected empty outcome, got %v", rec.outcomes)
		}
	})

	t.Run("allowed when configured", func(t *testing.T) {
		service := newTestService(&mockGenerator{text: ""}, &mockRecorder{}, Options{AllowEmpty: true})

		summary, err := service.GenerateSummary(context.Background(), entity.NewSummaryRequest("m", "c"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Response != "" {
			t.Errorf("expected empty response, got %q", summary.Response)
		}
	})
}

func TestSummaryService_GenerateSummary_CustomPrefixAndExtractor(t *testing.T) {
	gen := &mockGenerator{text: "ok"}
	service := newTestService(gen, &mockRecorder{}, Options{
		PromptPrefix: "TL;DR:\n",
		Extractor:    content.NewExtractor(discardLogger()),
	})

	_, err := service.GenerateSummary(context.Background(), entity.NewSummaryRequest("m", "<p>Hello <b>World</b></p>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := gen.requests[0].Prompt; got != "TL;DR:\nHello World" {
		t.Errorf("unexpected prompt: %q", got)
	}
}

func TestSummaryService_GenerateSummary_ContentUntouchedByDefault(t *testing.T) {
	gen := &mockGenerator{text: "ok"}
	service := newTestService(gen, &mockRecorder{}, Options{})

	raw := "<p>keep <b>markup</b></p>"
	_, err := service.GenerateSummary(context.Background(), entity.NewSummaryRequest("m", raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasSuffix(gen.requests[0].Prompt, raw) {
		t.Errorf("expected raw content in prompt, got %q", gen.requests[0].Prompt)
	}
}

func TestSummaryService_GenerateSummary_MetricSeriesBounded(t *testing.T) {
	exporter := metrics.NewPrometheusExporter(metrics.Config{MaxModuleLabels: 4})
	service := NewSummaryService(&mockGenerator{text: ""}, Options{
		Recorder: exporter,
		Logger:   discardLogger(),
	})

	for i := 0; i < 1000; i++ {
		_, _ = service.GenerateSummary(context.Background(), entity.NewSummaryRequest(fmt.Sprintf("bad-%d", i), " "))
		_, _ = service.GenerateSummary(context.Background(), entity.NewSummaryRequest(fmt.Sprintf("junk-%d", i), "text"))
	}

	requests, err := testutil.GatherAndCount(exporter.Registry(), "summary_relay_requests_total")
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	// four kept modules and other for empty results, one series for rejected input
	if requests != 6 {
		t.Errorf("expected 6 request series, got %d", requests)
	}

	generation, err := testutil.GatherAndCount(exporter.Registry(), "summary_relay_generation_seconds")
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if generation != 5 {
		t.Errorf("expected 5 latency series, got %d", generation)
	}
}
