package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/gommon/bytes"

	"summaryrelay/internal/domain/entity"
)

type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`

	LLMProvider string `envconfig:"LLM_PROVIDER" default:"ollama"`
	LLMEndpoint string `envconfig:"LLM_ENDPOINT"`
	LLMAPIKey   string `envconfig:"LLM_API_KEY"`
	LLMRegion   string `envconfig:"LLM_REGION"`
	// LLMTimeout is in seconds.
	LLMTimeout int `envconfig:"LLM_TIMEOUT" default:"600"`

	PromptPrefix      string `envconfig:"PROMPT_PREFIX"`
	AllowEmptySummary bool   `envconfig:"ALLOW_EMPTY_SUMMARY" default:"false"`
	ContentExtraction bool   `envconfig:"CONTENT_EXTRACTION" default:"false"`

	CORSAllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	MetricsEnabled   bool     `envconfig:"METRICS_ENABLED" default:"true"`
	// MaxBodySize uses the B/K/M/G notation, e.g. "4M".
	MaxBodySize string `envconfig:"MAX_BODY_SIZE" default:"4M"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// ShutdownTimeout is in seconds.
	ShutdownTimeout int `envconfig:"SHUTDOWN_TIMEOUT" default:"15"`
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "ollama":
	case "gemini", "bedrock":
		if c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required for the %s provider", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (expected ollama, gemini or bedrock)", c.LLMProvider)
	}

	if c.LLMProvider == "bedrock" && c.LLMRegion == "" {
		return fmt.Errorf("LLM_REGION is required for the bedrock provider")
	}

	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %d", c.LLMTimeout)
	}

	if size, err := bytes.Parse(c.MaxBodySize); err != nil || size <= 0 {
		return fmt.Errorf("invalid MAX_BODY_SIZE %q (expected e.g. 512K or 4M)", c.MaxBodySize)
	}

	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q (expected json or text)", c.LogFormat)
	}

	return nil
}

func (c *Config) GetLLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeout) * time.Second
}

func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

func (c *Config) GetPromptPrefix() string {
	if c.PromptPrefix == "" {
		return entity.DefaultPromptPrefix
	}
	// Allow "\n" escapes in single-line env files.
	return strings.ReplaceAll(c.PromptPrefix, `\n`, "\n")
}

func (c *Config) GetLogLevel() slog.Level {
	level, err := parseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unsupported LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
