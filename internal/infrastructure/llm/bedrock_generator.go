package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/auth/bearer"

	"summaryrelay/internal/domain/entity"
	"summaryrelay/internal/domain/repository"
)

const bedrockProviderName = "bedrock"

// bedrockGenerator streams a completion with the Bedrock ConverseStream API.
// module is used as the model ID.
type bedrockGenerator struct {
	client  *bedrockruntime.Client
	timeout time.Duration
	log     *slog.Logger
}

func newBedrockGenerator(ctx context.Context, cfg Config) (repository.GeneratorRepository, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("bedrock bearer token is required (set LLM_API_KEY)")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("bedrock region is required (set LLM_REGION)")
	}

	// The SDK keeps its own buildable client: AWS_CA_BUNDLE can only be
	// applied to a client that accepts transport options.
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient()),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	sdkConfig.BearerAuthTokenProvider = bearer.NewTokenCache(bearer.StaticTokenProvider{
		Token: bearer.Token{Value: cfg.APIKey},
	})
	sdkConfig.AuthSchemePreference = []string{"httpBearerAuth"}

	client := bedrockruntime.NewFromConfig(sdkConfig, func(o *bedrockruntime.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &bedrockGenerator{
		client:  client,
		timeout: cfg.timeout(),
		log:     cfg.logger().With("provider", bedrockProviderName),
	}, nil
}

func (g *bedrockGenerator) Name() string {
	return bedrockProviderName
}

func (g *bedrockGenerator) Generate(ctx context.Context, req *entity.GenerateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.log.DebugContext(ctx, "Sending converse stream request",
		"model", req.Model,
		"promptBytes", len(req.Prompt))

	out, err := g.client.ConverseStream(ctx, buildConverseStreamInput(req))
	if err != nil {
		classified := classifyBedrockErr(ctx, err)
		g.log.ErrorContext(ctx, "Bedrock request failed",
			"error", classified,
			"model", req.Model)
		return "", classified
	}

	stream := out.GetStream()
	defer stream.Close()

	text, stopReason := collectConverseStream(stream.Events())
	if err := stream.Err(); err != nil {
		classified := classifyBedrockErr(ctx, err)
		g.log.ErrorContext(ctx, "Bedrock stream failed",
			"error", classified,
			"model", req.Model)
		return "", classified
	}

	g.log.DebugContext(ctx, "Bedrock stream finished",
		"stopReason", stopReason,
		"responseBytes", len(text))

	return text, nil
}

func buildConverseStreamInput(req *entity.GenerateRequest) *bedrockruntime.ConverseStreamInput {
	return &bedrockruntime.ConverseStreamInput{
		ModelId: aws.String(req.Model),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
	}
}

// collectConverseStream concatenates text deltas in arrival order until the
// channel closes. Non-text events contribute nothing.
func collectConverseStream(events <-chan types.ConverseStreamOutput) (string, types.StopReason) {
	var (
		builder    strings.Builder
		stopReason types.StopReason
	)
	for event := range events {
		switch v := event.(type) {
		case *types.ConverseStreamOutputMemberContentBlockDelta:
			if delta, ok := v.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
				builder.WriteString(delta.Value)
			}
		case *types.ConverseStreamOutputMemberMessageStop:
			stopReason = v.Value.StopReason
		}
	}
	return builder.String(), stopReason
}

func classifyBedrockErr(ctx context.Context, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		status := 0
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			status = respErr.HTTPStatusCode()
		}
		return &entity.BackendError{StatusCode: status, Body: apiErr.ErrorMessage()}
	}

	return classifyTransportErr(ctx, err)
}
