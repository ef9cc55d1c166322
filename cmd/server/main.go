package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/vanshika/cypherguard/internal/chain"
	"github.com/vanshika/cypherguard/internal/config"
	"github.com/vanshika/cypherguard/internal/cypher"
	"github.com/vanshika/cypherguard/internal/graph"
	"github.com/vanshika/cypherguard/internal/logging"
	"github.com/vanshika/cypherguard/internal/metrics"
	"github.com/vanshika/cypherguard/internal/schema"
	"github.com/vanshika/cypherguard/internal/server"
	"github.com/vanshika/cypherguard/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	graphClient, err := buildGraphClient(ctx, cfg)
	switch {
	case errors.Is(err, graph.ErrMissingURI) && cfg.Schema.File != "":
		logger.Info("no graph configured, serving schema from file", "path", cfg.Schema.File)
	case err != nil:
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if graphClient != nil {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}
	}()

	structured, err := schema.Resolve(ctx, cfg.Schema.File, graphClient, logger)
	if err != nil {
		logger.Error("failed to load graph schema", "error", err)
		os.Exit(1)
	}
	schemaText, err := schema.Format(structured, cfg.Schema.IncludeTypes, cfg.Schema.ExcludeTypes)
	if err != nil {
		logger.Error("failed to format schema", "error", err)
		os.Exit(1)
	}

	var (
		recorder  cypher.Recorder
		observer  server.RequestObserver
		metricsUI http.Handler
	)
	if cfg.HTTP.MetricsEnabled {
		m := metrics.New()
		recorder, observer, metricsUI = m, m, m.Handler()
	}

	correctorOpts := []cypher.Option{cypher.WithLogger(logger)}
	if recorder != nil {
		correctorOpts = append(correctorOpts, cypher.WithRecorder(recorder))
	}
	corrector := cypher.NewCorrector(structured.Corrector(), correctorOpts...)

	qa := buildQA(logger, cfg, graphClient, structured, recorder)

	apiHandlers := server.NewAPIHandlers(logger, server.HandlerDependencies{
		Corrector:    corrector,
		Batch:        service.NewBatchCorrector(corrector, cfg.Corrector.Workers),
		Schema:       structured,
		SchemaText:   schemaText,
		QA:           qa,
		MaxBatchSize: cfg.Corrector.MaxBatchSize,
	})

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.ReadinessProbe{Client: graphClient, Corrector: corrector},
		API:              apiHandlers,
		Metrics:          metricsUI,
		Observer:         observer,
		AllowedOrigins:   config.ParseCSV(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildGraphClient(ctx context.Context, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, graph.ErrMissingURI
	}

	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	return graph.NewNeo4jClient(ctx, opts)
}

// buildQA returns nil when question answering cannot be offered; the API
// then answers /qa with 503.
func buildQA(logger *slog.Logger, cfg config.Config, client graph.Client, s schema.Structured, recorder cypher.Recorder) server.QuestionAnswerer {
	if cfg.LLM.Model == "" {
		return nil
	}
	if client == nil {
		logger.Warn("question answering disabled: no graph connection")
		return nil
	}

	llmOpts := []openai.Option{openai.WithModel(cfg.LLM.Model)}
	if cfg.LLM.APIKey != "" {
		llmOpts = append(llmOpts, openai.WithToken(cfg.LLM.APIKey))
	}
	if cfg.LLM.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	llm, err := openai.New(llmOpts...)
	if err != nil {
		logger.Warn("question answering disabled: llm client", "error", err)
		return nil
	}

	policy := chain.RejectSkip
	if cfg.QA.PassthroughRejected {
		policy = chain.RejectPassthrough
	}
	qa, err := chain.New(chain.Options{
		Graph:                  client,
		Schema:                 s,
		LLM:                    llm,
		ValidateCypher:         cfg.QA.ValidateCypher,
		OnRejection:            policy,
		Recorder:               recorder,
		TopK:                   cfg.QA.TopK,
		IncludeTypes:           cfg.Schema.IncludeTypes,
		ExcludeTypes:           cfg.Schema.ExcludeTypes,
		AllowDangerousRequests: cfg.QA.AllowDangerousRequests,
		UseFunctionResponse:    cfg.QA.UseFunctionResponse,
		Sanitize:               cfg.QA.SanitizeRows,
		Logger:                 logger,
	})
	if err != nil {
		logger.Warn("question answering disabled", "error", err)
		return nil
	}
	logger.Info("question answering enabled", "model", cfg.LLM.Model)
	return qa
}
