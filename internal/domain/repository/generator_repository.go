package repository

import (
	"context"

	"summaryrelay/internal/domain/entity"
)

// GeneratorRepository sends one prompt to a text generation backend and
// returns the full aggregated completion.
type GeneratorRepository interface {
	// Generate issues exactly one backend call. Failures are reported as
	// *entity.BackendError, *entity.BackendTimeoutError or *entity.TransportError.
	// An empty string with a nil error is a successful, empty completion.
	Generate(ctx context.Context, req *entity.GenerateRequest) (string, error)

	// Name identifies the backend provider in logs and metrics.
	Name() string
}
