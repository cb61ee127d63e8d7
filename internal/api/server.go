// Package api exposes the upload pipeline, timeline, mindmap and chat over
// HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dgallion1/casegest/internal/config"
	"github.com/dgallion1/casegest/internal/extract"
	"github.com/dgallion1/casegest/internal/metrics"
	"github.com/dgallion1/casegest/internal/mindmap"
	"github.com/dgallion1/casegest/internal/pipeline"
	"github.com/dgallion1/casegest/internal/store"
)

// Pipeline runs upload batches.
type Pipeline interface {
	Submit(b *pipeline.Batch) error
	Run(ctx context.Context, b *pipeline.Batch) error
	GetBatch(id string) *pipeline.Batch
}

// Asker answers questions about the timeline.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// LLMInfo reports on the text generation backend.
type LLMInfo interface {
	Name() string
	Stats() extract.StatsSnapshot
	BreakerState() string
}

// Deps are the collaborators the server routes to. LLM and Metrics may be nil.
type Deps struct {
	Pipeline Pipeline
	Store    *store.Store
	Chat     Asker
	LLM      LLMInfo
	Metrics  *metrics.Collector
}

// Server is the HTTP API server for casegest.
type Server struct {
	router chi.Router
	deps   Deps
	canvas mindmap.Canvas
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		deps: deps,
		canvas: mindmap.Canvas{
			Width:   cfg.CanvasWidth,
			Height:  cfg.CanvasHeight,
			Padding: cfg.CanvasPadding,
		},
		log: log,
		cfg: cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log, s.deps.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/documents/upload", s.handleUpload)
		r.Get("/documents/upload/{batchID}/status", s.handleUploadStatus)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/timeline/events", s.handleTimelineEvents)
		r.Get("/documents/{docID}", s.handleGetDocument)
		r.Get("/mindmap", s.handleMindmap)
		r.Post("/chat", s.handleChat)
		r.Get("/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
