package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"summaryrelay/internal/domain/entity"
	"summaryrelay/internal/domain/repository"
)

// DefaultTimeout bounds one backend call including the whole stream read.
const DefaultTimeout = 10 * time.Minute

// StreamObserver is notified about stream lines that had to be skipped.
type StreamObserver interface {
	ObserveMalformedLine(provider string)
}

// Config selects and configures a generation backend.
type Config struct {
	Provider   string        // "ollama" (default when empty), "gemini" or "bedrock"
	Endpoint   string        // ollama generate URL, or gemini/bedrock base URL override
	APIKey     string        // required for gemini; bearer token for bedrock
	Region     string        // bedrock only
	Timeout    time.Duration // per call, defaults to DefaultTimeout
	HTTPClient *http.Client  // shared across calls, a new client when nil; bedrock uses the SDK client
	Logger     *slog.Logger
	Observer   StreamObserver
}

// NewGeneratorRepository builds the GeneratorRepository named by cfg.Provider.
func NewGeneratorRepository(ctx context.Context, cfg Config) (repository.GeneratorRepository, error) {
	switch cfg.Provider {
	case "ollama", "":
		return newOllamaGenerator(cfg)
	case "gemini":
		return newGeminiGenerator(ctx, cfg)
	case "bedrock":
		return newBedrockGenerator(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

func (cfg Config) timeout() time.Duration {
	if cfg.Timeout <= 0 {
		return DefaultTimeout
	}
	return cfg.Timeout
}

func (cfg Config) logger() *slog.Logger {
	if cfg.Logger == nil {
		return slog.Default()
	}
	return cfg.Logger
}

func (cfg Config) httpClient() *http.Client {
	if cfg.HTTPClient == nil {
		return &http.Client{}
	}
	return cfg.HTTPClient
}

// classifyTransportErr maps a failed call or read onto the timeout or transport kind.
func classifyTransportErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &entity.BackendTimeoutError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &entity.BackendTimeoutError{Err: err}
	}

	return &entity.TransportError{Err: err}
}
