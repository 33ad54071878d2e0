package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"summaryrelay/internal/domain/entity"
	"summaryrelay/internal/domain/repository"
)

const geminiProviderName = "gemini"

// geminiGenerator streams a completion from the Gemini API and concatenates
// the text of every chunk, mirroring the ollama aggregation contract.
type geminiGenerator struct {
	client  *genai.Client
	timeout time.Duration
	log     *slog.Logger
}

func newGeminiGenerator(ctx context.Context, cfg Config) (repository.GeneratorRepository, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set LLM_API_KEY)")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient(),
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiGenerator{
		client:  client,
		timeout: cfg.timeout(),
		log:     cfg.logger().With("provider", geminiProviderName),
	}, nil
}

func (g *geminiGenerator) Name() string {
	return geminiProviderName
}

func (g *geminiGenerator) Generate(ctx context.Context, req *entity.GenerateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.log.DebugContext(ctx, "Sending generate request",
		"model", req.Model,
		"promptBytes", len(req.Prompt))

	var (
		builder strings.Builder
		chunks  int
	)
	for resp, err := range g.client.Models.GenerateContentStream(ctx, req.Model, genai.Text(req.Prompt), nil) {
		if err != nil {
			classified := classifyGeminiErr(ctx, err)
			g.log.ErrorContext(ctx, "Gemini stream failed",
				"error", classified,
				"model", req.Model,
				"chunks", chunks)
			return "", classified
		}
		chunks++
		if resp == nil {
			continue
		}
		builder.WriteString(resp.Text())
	}

	g.log.DebugContext(ctx, "Gemini stream finished",
		"chunks", chunks,
		"responseBytes", builder.Len())

	return builder.String(), nil
}

func classifyGeminiErr(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &entity.BackendError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &entity.BackendError{StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
	}

	return classifyTransportErr(ctx, err)
}
