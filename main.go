package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"summaryrelay/internal/application"
	"summaryrelay/internal/infrastructure/content"
	"summaryrelay/internal/infrastructure/llm"
	"summaryrelay/internal/infrastructure/metrics"
	"summaryrelay/internal/interfaces/config"
	"summaryrelay/internal/interfaces/httpapi"
)

var rootCmd = &cobra.Command{
	Use:          "summary-relay",
	Short:        "HTTP relay that turns module/content requests into a single streamed LLM summary.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		if err := applyFlags(cmd, cfg); err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().String("addr", "", "listen address, overrides LISTEN_ADDR")
	rootCmd.Flags().String("endpoint", "", "LLM endpoint URL, overrides LLM_ENDPOINT")
	rootCmd.Flags().String("provider", "", `LLM provider ("ollama", "gemini" or "bedrock"), overrides LLM_PROVIDER`)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.ListenAddr, _ = flags.GetString("addr")
	}
	if flags.Changed("endpoint") {
		cfg.LLMEndpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("provider") {
		cfg.LLMProvider, _ = flags.GetString("provider")
	}
	return errors.Wrap(cfg.Validate(), "invalid command line flags")
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.GetLogLevel()}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())

	// One client for every outbound call; the per-call deadline comes from the generator.
	httpClient := &http.Client{}

	generator, err := llm.NewGeneratorRepository(ctx, llm.Config{
		Provider:   cfg.LLMProvider,
		Endpoint:   cfg.LLMEndpoint,
		APIKey:     cfg.LLMAPIKey,
		Region:     cfg.LLMRegion,
		Timeout:    cfg.GetLLMTimeout(),
		HTTPClient: httpClient,
		Logger:     logger,
		Observer:   exporter,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize LLM generator")
	}

	var extractor content.Extractor = content.PassthroughExtractor{}
	if cfg.ContentExtraction {
		extractor = content.NewExtractor(logger)
	}

	service := application.NewSummaryService(generator, application.Options{
		PromptPrefix: cfg.GetPromptPrefix(),
		AllowEmpty:   cfg.AllowEmptySummary,
		Extractor:    extractor,
		Recorder:     exporter,
		Logger:       logger,
	})

	serverCfg := httpapi.ServerConfig{
		Addr:             cfg.ListenAddr,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		BodyLimit:        cfg.MaxBodySize,
	}
	if cfg.MetricsEnabled {
		serverCfg.MetricsHandler = exporter.Handler()
	}
	server := httpapi.NewServer(serverCfg, httpapi.NewSummaryHandler(service, logger), logger)

	logger.Info("Starting summary relay",
		"provider", generator.Name(),
		"addr", cfg.ListenAddr,
		"timeout", cfg.GetLLMTimeout(),
		"contentExtraction", cfg.ContentExtraction,
		"allowEmptySummary", cfg.AllowEmptySummary)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "HTTP server stopped")
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	logger.Info("Shutting down...")
	return nil
}
