package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/dgallion1/casegest/internal/chat"
	"github.com/dgallion1/casegest/internal/chunker"
	"github.com/dgallion1/casegest/internal/config"
	"github.com/dgallion1/casegest/internal/extract"
	"github.com/dgallion1/casegest/internal/logging"
	"github.com/dgallion1/casegest/internal/metrics"
	"github.com/dgallion1/casegest/internal/parser"
	"github.com/dgallion1/casegest/internal/pipeline"
	"github.com/dgallion1/casegest/internal/store"
)

const metricsNamespace = "casegest"

// app holds the wired collaborators shared by every subcommand.
type app struct {
	cfg          config.Config
	log          *slog.Logger
	logCloser    io.Closer
	metrics      *metrics.Collector
	store        *store.Store
	ocr          *parser.OCRClient
	llm          *extract.Client
	chat         *chat.Service
	orchestrator *pipeline.Orchestrator
}

func loadConfig(cmd *cobra.Command, cfgPath string) (config.Config, error) {
	cfg, err := config.Load(cfgPath, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	log, logCloser, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		logCloser: logCloser,
		metrics:   metrics.NewCollector(metricsNamespace),
		store:     store.New(),
	}

	if cfg.PDFOCREndpoint != "" {
		a.ocr = parser.NewOCRClient(cfg.PDFOCREndpoint, cfg.PDFOCRTimeout)
	}
	texts := parser.NewExtractor(parser.Options{
		OCR:               a.ocr,
		FallbackPdftotext: cfg.PDFFallbackPdftotext,
	}, log)

	gen, err := extract.NewGenerator(ctx, extract.BackendConfig{
		Provider: cfg.LLMProvider,
		Endpoint: cfg.LLMEndpoint,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
	}, &http.Client{})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("llm backend: %w", err)
	}
	a.llm = extract.NewClient(gen, extract.ClientConfig{
		Timeout:            cfg.LLMTimeout,
		MaxRetries:         cfg.LLMMaxRetries,
		RateLimit:          cfg.LLMRateLimit,
		RateBurst:          cfg.LLMRateBurst,
		BreakerFailures:    cfg.BreakerFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
	}, log, extract.WithObserver(a.metrics))

	events := extract.NewService(a.llm, extract.Config{
		MaxTokens: cfg.LLMMaxTokens,
		Chunking:  cfg.ChunkEnabled,
		Chunk: chunker.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		},
	}, log)
	a.chat = chat.NewService(a.llm, a.store.Timeline(), cfg.LLMMaxTokens, log)

	proc := pipeline.NewProcessor(texts, events, a.store, cfg.PipelineWorkers, log)
	proc.SetObserver(a.metrics)
	a.orchestrator = pipeline.NewOrchestrator(proc, pipeline.OrchestratorConfig{
		Workers:   cfg.WorkerCount,
		QueueSize: cfg.MaxQueueSize,
		BatchTTL:  cfg.JobTTL,
	}, log)

	a.metrics.RegisterGauge(metricsNamespace, "timeline_events", "Events on the timeline",
		func() float64 { return float64(a.store.Timeline().Len()) })
	a.metrics.RegisterGauge(metricsNamespace, "batch_queue_depth", "Batches waiting for a worker",
		func() float64 { return float64(a.orchestrator.QueueDepth()) })

	log.Info("llm backend ready", "backend", gen.Name(), "timeout", cfg.LLMTimeout, "max_retries", cfg.LLMMaxRetries)
	return a, nil
}

// Close releases clients in reverse order of creation.
func (a *app) Close() {
	if a.orchestrator != nil {
		a.orchestrator.Stop()
	}
	if a.llm != nil {
		a.llm.Close()
	}
	if a.ocr != nil {
		a.ocr.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
