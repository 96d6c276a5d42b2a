package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/statement-importer/internal/api/handlers"
	"github.com/dvloznov/statement-importer/internal/api/middleware"
	"github.com/dvloznov/statement-importer/internal/blob"
	"github.com/dvloznov/statement-importer/internal/config"
	"github.com/dvloznov/statement-importer/internal/currency"
	"github.com/dvloznov/statement-importer/internal/extraction"
	"github.com/dvloznov/statement-importer/internal/importer"
	"github.com/dvloznov/statement-importer/internal/jobs"
	"github.com/dvloznov/statement-importer/internal/logger"
	"github.com/dvloznov/statement-importer/internal/rules"
	"github.com/dvloznov/statement-importer/internal/storage/postgres"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create database pool")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	jobRepo := postgres.NewJobRepository(pool)
	cardRepo := postgres.NewCardRepository(pool)
	rateRepo := postgres.NewRateRepository(pool)

	blobStore, err := newBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create blob store")
	}

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction provider")
	}

	extractor, err := extraction.NewService(provider, log, cfg.Extraction.RequestTimeout, cfg.Extraction.HeartbeatInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction service")
	}

	converter := currency.NewRateConverter(rateRepo)
	statementImporter := importer.New(pool, converter, log)
	rulesEngine := rules.NewSQLEngine(pool)

	processor := jobs.NewProcessor(jobRepo, cardRepo, blobStore, extractor, statementImporter, rulesEngine, log)

	queue := jobs.NewQueue(cfg.Queue.BufferSize, cfg.Queue.Workers)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	go func() {
		log.Info().Int("workers", cfg.Queue.Workers).Msg("Starting job workers")
		if err := queue.Start(workerCtx, processor.ProcessUploadJob); err != nil {
			log.Error().Err(err).Msg("Job workers stopped with error")
		}
	}()

	uploadHandler := handlers.NewUploadHandler(jobRepo, blobStore, queue, log)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/statements/upload", uploadHandler.Upload)
	mux.HandleFunc("GET /api/jobs", uploadHandler.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", uploadHandler.GetJob)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(mux),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop accepting tasks and wait for in-flight jobs to finish.
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorkers()

	if closer, ok := blobStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close blob store")
		}
	}

	log.Info().Msg("Server exited")
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Blob.Backend {
	case "gcs":
		return blob.NewGCSStore(ctx, cfg.Blob.GCSBucket, cfg.Blob.GCSCredentials)
	case "local":
		return blob.NewLocalStore(cfg.Blob.LocalDir)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
}

func newProvider(ctx context.Context, cfg *config.Config) (extraction.Provider, error) {
	switch cfg.Extraction.Provider {
	case "gemini":
		return extraction.NewGeminiProvider(ctx)
	case "openrouter":
		return extraction.NewOpenRouterProvider(cfg.Extraction.APIKey), nil
	case "groq":
		return extraction.NewGroqProvider(cfg.Extraction.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Extraction.Provider)
	}
}
