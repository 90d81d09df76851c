package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"pulsewire/features/cluster"
	"pulsewire/features/connector"
	"pulsewire/features/item"
	"pulsewire/features/pipeline"
	"pulsewire/features/source"
	"pulsewire/features/stats"
	"pulsewire/features/story"
	"pulsewire/features/summary"
	"pulsewire/internal/cache"
	"pulsewire/internal/config"
	"pulsewire/internal/metrics"
	"pulsewire/internal/middleware"
)

type App struct {
	Handler        http.Handler
	Pipeline       *pipeline.Service
	IngestConsumer *pipeline.Consumer
	port           int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	taskPub pipeline.EventPublisher,
	feedCache *cache.Cache,
) (*App, error) {
	// Feature: Source
	sourceRepo := source.NewPostgresRepo(db)
	sourceService := source.NewService(sourceRepo)
	sourceHandler := source.NewHandler(sourceService)

	// Feature: Connector
	registry := connector.NewRegistry(cfg)

	// Feature: Item
	itemRepo := item.NewPostgresRepo(db)
	itemService := item.NewService(itemRepo)

	// Feature: Cluster
	clusterRepo := cluster.NewPostgresRepo(db)
	engine := cluster.NewEngine(clusterRepo, cfg)

	// Feature: Summary
	summaryRepo := summary.NewPostgresRepo(db)
	summaryService := summary.NewService(summaryRepo, summary.NewSummarizer(cfg), cfg)

	// Feature: Pipeline
	runRepo := pipeline.NewPostgresRunRepo(db)
	pipelineService := pipeline.NewService(sourceRepo, registry, itemService, engine, clusterRepo, summaryService, runRepo, cfg)

	var dispatcher *pipeline.Dispatcher
	if taskPub != nil {
		dispatcher = pipeline.NewDispatcher(taskPub)
	}
	pipelineHandler := pipeline.NewHandler(pipelineService, dispatcher, runRepo, cfg.AdminToken)

	// Feature: Story (public read model)
	storyRepo := story.NewPostgresRepo(db)
	storyHandler := story.NewHandler(storyRepo, feedCache)

	// Feature: Stats
	statsHandler := stats.NewHandler(sourceRepo, itemRepo, clusterRepo, summaryRepo)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /sources", middleware.CorrelationID(enableCORS(sourceHandler.Create)))
	mux.Handle("GET /sources", middleware.CorrelationID(enableCORS(sourceHandler.List)))
	mux.Handle("GET /sources/{id}", middleware.CorrelationID(enableCORS(sourceHandler.Get)))
	mux.Handle("PATCH /sources/{id}/enabled", middleware.CorrelationID(enableCORS(sourceHandler.SetEnabled)))

	mux.Handle("GET /v1/latest", middleware.CorrelationID(enableCORS(storyHandler.Latest)))
	mux.Handle("GET /v1/breaking", middleware.CorrelationID(enableCORS(storyHandler.Breaking)))
	mux.Handle("GET /v1/stories", middleware.CorrelationID(enableCORS(storyHandler.List)))
	mux.Handle("GET /v1/stories/{id}", middleware.CorrelationID(enableCORS(storyHandler.Get)))
	mux.Handle("GET /v1/categories", middleware.CorrelationID(enableCORS(storyHandler.Categories)))

	mux.Handle("POST /admin/reingest", middleware.CorrelationID(enableCORS(pipelineHandler.Reingest)))
	mux.Handle("GET /admin/runs", middleware.CorrelationID(enableCORS(pipelineHandler.ListRuns)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:        mux,
		Pipeline:       pipelineService,
		IngestConsumer: pipeline.NewConsumer(pipelineService),
		port:           cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
