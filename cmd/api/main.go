package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/statement-extractor/internal/api/handlers"
	"github.com/dvloznov/statement-extractor/internal/api/middleware"
	"github.com/dvloznov/statement-extractor/internal/config"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/gcsuploader"
	"github.com/dvloznov/statement-extractor/internal/inference"
	infraBQ "github.com/dvloznov/statement-extractor/internal/infra/bigquery"
	"github.com/dvloznov/statement-extractor/internal/ingest"
	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/dvloznov/statement-extractor/internal/jobs/inmemory"
	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/metrics"
	"github.com/dvloznov/statement-extractor/internal/pipeline"
	"github.com/dvloznov/statement-extractor/internal/render"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := context.Background()

	layout, err := extract.Lookup(cfg.Layout)
	if err != nil {
		log.Fatal().Err(err).Msg("Unknown statement layout")
	}

	// The classifier is built once and shared by every request.
	classifier, err := inference.New(ctx, cfg.Model)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Model.Backend).Msg("Failed to create classifier")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	processor := pipeline.NewProcessor(render.NewRenderer(log), classifier, layout, recorder, log)

	deps := ingest.Deps{
		Processor: processor,
		Metrics:   recorder,
		Layout:    layout.Name(),
		Backend:   classifier.Name(),
	}

	if cfg.Storage.Bucket != "" {
		archive, err := gcsuploader.NewArchive(ctx, cfg.Storage.Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create statement archive")
		}
		defer archive.Close()
		deps.Archive = archive
		log.Info().Str("bucket", cfg.Storage.Bucket).Msg("Statement archival enabled")
	} else {
		log.Warn().Msg("No GCS bucket configured - statements will not be archived")
	}

	if cfg.Warehouse.Project != "" {
		sink, err := infraBQ.NewBigQuerySink(ctx, cfg.Warehouse.Project, cfg.Warehouse.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create warehouse sink")
		}
		defer sink.Close()
		deps.Sink = sink
		log.Info().Str("project", cfg.Warehouse.Project).Str("dataset", cfg.Warehouse.Dataset).Msg("Warehouse export enabled")
	}

	service := ingest.NewService(deps, log)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.QueueSize, cfg.Jobs.Workers, jobStore, log)
	registry.MustRegister(metrics.NewJobsCollector(jobStore))

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, jobs.JobHandler(service.HandleJob)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	sweeper := jobs.NewSweeper(jobStore, cfg.Jobs.Retention, log)
	if err := sweeper.Start(cfg.Jobs.SweepSchedule); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job sweeper")
	}

	// Create router
	mux := handlers.NewRouter(
		handlers.NewExtractionHandler(service, cfg.Server.MaxUploadBytes, log),
		handlers.NewJobsHandler(jobStore, jobQueue, cfg.Server.MaxUploadBytes, log),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.RateLimit(middleware.NewLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst), log)(mux),
				),
			),
		),
	)

	// Create HTTP server. Extraction runs inside the request, so the write
	// timeout is generous.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("layout", layout.Name()).
			Str("backend", classifier.Name()).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	<-sweeper.Stop().Done()

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
