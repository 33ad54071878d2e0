package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"summaryrelay/internal/domain/entity"
	"summaryrelay/internal/domain/repository"
)

const (
	// DefaultOllamaEndpoint is the generate route of a local Ollama daemon.
	DefaultOllamaEndpoint = "http://localhost:11434/api/generate"

	ollamaProviderName = "ollama"
	maxErrorBodyBytes  = int64(64 * 1024)
)

// ollamaGenerator posts a prompt to an Ollama style endpoint and aggregates
// the newline-delimited JSON stream it answers with.
type ollamaGenerator struct {
	client     *http.Client
	endpoint   string
	timeout    time.Duration
	log        *slog.Logger
	aggregator *streamAggregator
}

func newOllamaGenerator(cfg Config) (repository.GeneratorRepository, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
	}

	u, err := url.ParseRequestURI(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama endpoint %q", endpoint)
	}

	log := cfg.logger().With("provider", ollamaProviderName)

	return &ollamaGenerator{
		client:     cfg.httpClient(),
		endpoint:   endpoint,
		timeout:    cfg.timeout(),
		log:        log,
		aggregator: newStreamAggregator(ollamaProviderName, log, cfg.Observer),
	}, nil
}

func (g *ollamaGenerator) Name() string {
	return ollamaProviderName
}

func (g *ollamaGenerator) Generate(ctx context.Context, req *entity.GenerateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	g.log.DebugContext(ctx, "Sending generate request",
		"endpoint", g.endpoint,
		"model", req.Model,
		"payload", string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		classified := classifyTransportErr(ctx, err)
		g.log.ErrorContext(ctx, "Generate request failed",
			"error", classified,
			"model", req.Model)
		return "", classified
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Best effort, a failed read leaves the body empty.
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		backendErr := &entity.BackendError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(errBody)),
		}
		g.log.ErrorContext(ctx, "Backend returned non-success status",
			"statusCode", backendErr.StatusCode,
			"body", backendErr.Body,
			"model", req.Model)
		return "", backendErr
	}

	text, err := g.aggregator.Aggregate(ctx, resp.Body)
	if err != nil {
		classified := classifyTransportErr(ctx, err)
		g.log.ErrorContext(ctx, "Reading backend stream failed",
			"error", classified,
			"model", req.Model)
		return "", classified
	}

	return text, nil
}

// streamAggregator concatenates the "response" field of every line of a
// newline-delimited JSON stream. It keeps no state between calls.
type streamAggregator struct {
	provider string
	log      *slog.Logger
	observer StreamObserver
}

func newStreamAggregator(provider string, log *slog.Logger, observer StreamObserver) *streamAggregator {
	return &streamAggregator{
		provider: provider,
		log:      log,
		observer: observer,
	}
}

// Aggregate reads r line by line until EOF. Malformed lines are logged and
// skipped; only read errors abort and in that case no text is returned.
func (a *streamAggregator) Aggregate(ctx context.Context, r io.Reader) (string, error) {
	reader := bufio.NewReader(r)

	var (
		builder   strings.Builder
		lines     int
		fragments int
		done      bool
	)

	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			lines++
			fragment, ok, lineDone := a.parseLine(ctx, lines, line)
			if ok {
				builder.WriteString(fragment)
				fragments++
			}
			done = done || lineDone
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	a.log.DebugContext(ctx, "Backend stream finished",
		"lines", lines,
		"fragments", fragments,
		"doneSeen", done,
		"responseBytes", builder.Len())

	return builder.String(), nil
}

func (a *streamAggregator) parseLine(ctx context.Context, lineNo int, line string) (string, bool, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		a.log.WarnContext(ctx, "Skipping malformed stream line",
			"error", err,
			"lineNo", lineNo,
			"line", trimmed)
		if a.observer != nil {
			a.observer.ObserveMalformedLine(a.provider)
		}
		return "", false, false
	}

	if raw, ok := fields["error"]; ok {
		a.log.WarnContext(ctx, "Backend reported an error in stream",
			"lineNo", lineNo,
			"error", string(raw))
	}

	var done bool
	if raw, ok := fields["done"]; ok {
		_ = json.Unmarshal(raw, &done)
	}

	raw, ok := fields["response"]
	if !ok {
		return "", false, done
	}

	var fragment string
	if err := json.Unmarshal(raw, &fragment); err != nil {
		a.log.DebugContext(ctx, "Ignoring non-string response field",
			"lineNo", lineNo,
			"value", string(raw))
		return "", false, done
	}

	return fragment, true, done
}
