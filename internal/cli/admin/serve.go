package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/mwanachuomind/backend/internal/api/handlers"
	"github.com/mwanachuomind/backend/internal/config"
	"github.com/mwanachuomind/backend/internal/database"
	"github.com/mwanachuomind/backend/internal/domain"
	"github.com/mwanachuomind/backend/internal/jobs"
	"github.com/mwanachuomind/backend/internal/openai"
	"github.com/mwanachuomind/backend/internal/repository"
	"github.com/mwanachuomind/backend/internal/server"
	"github.com/mwanachuomind/backend/internal/service"
	"github.com/mwanachuomind/backend/internal/storage"
	"github.com/mwanachuomind/backend/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the Mwanachuomind API server with the ingestion worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Disable the background document worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Ingestion needs object storage, and both pipelines need the model
	// provider; fail fast instead of serving half an API.
	if !cfg.HasS3() {
		return fmt.Errorf("object storage not configured: MIND_S3_ENDPOINT, MIND_S3_ACCESS_KEY_ID and MIND_S3_SECRET_ACCESS_KEY are required")
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("model provider not configured: MIND_OPENAI_API_KEY is required")
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, "file://migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	analysisRepo := repository.NewAnalysisRepository(pool)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	aiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
		VisionModel:         cfg.VisionModel,
	})

	extractor := service.NewTextExtractor(aiClient)
	embeddingSvc := service.NewEmbeddingService(aiClient, cfg.EmbedBatchSize)
	analysisSvc := service.NewNoteAnalysisService(aiClient)

	chunkCfg := service.ChunkConfig{
		Size:     cfg.ChunkSize,
		Overlap:  cfg.ChunkOverlap,
		MinChars: cfg.ChunkMinChars,
	}
	ingestionSvc := service.NewIngestionService(docRepo, chunkRepo, s3Client, extractor, embeddingSvc, analysisSvc, analysisRepo, chunkCfg, cfg.InsertBatchSize)

	retrievalSvc := service.NewRetrievalService(
		&searchStore{chunks: chunkRepo, docs: docRepo},
		service.RetrievalConfig{
			Threshold:       cfg.SearchThreshold,
			TopK:            cfg.SearchTopK,
			ScopedThreshold: cfg.ScopedSearchThreshold,
			ScopedTopK:      cfg.ScopedSearchTopK,
			WidenFactor:     cfg.SearchWidenFactor,
		},
	)

	chatSvc := service.NewChatService(embeddingSvc, retrievalSvc, &completionAdapter{client: aiClient})

	var documentWorker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker {
		sweeper := jobs.NewDocumentWorker(docRepo, ingestionSvc)
		documentWorker = jobs.NewWorker("document", sweeper, time.Duration(cfg.WorkerPollSeconds)*time.Second)
		go documentWorker.Start(ctx)
		log.Println("document worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(docRepo, ingestionSvc, analysisRepo),
		ChatHandler:     handlers.NewChatHandler(chatSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if documentWorker != nil {
		documentWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// searchStore joins the chunk search primitive with the course membership
// lookup, which live in separate repositories.
type searchStore struct {
	chunks *repository.ChunkRepository
	docs   *repository.DocumentRepository
}

func (s *searchStore) SearchChunks(ctx context.Context, embedding []float32, documentID string, threshold float32, limit int) ([]domain.RetrievedChunk, error) {
	return s.chunks.SearchChunks(ctx, embedding, documentID, threshold, limit)
}

func (s *searchStore) ListDocumentIDsByCourse(ctx context.Context, courseID string) ([]string, error) {
	return s.docs.ListDocumentIDsByCourse(ctx, courseID)
}

// completionAdapter narrows the OpenAI client to the streaming interface the
// chat service consumes.
type completionAdapter struct {
	client *openai.Client
}

func (a *completionAdapter) StreamCompletion(ctx context.Context, system, prompt string) (service.AnswerStream, error) {
	stream, err := a.client.StreamCompletion(ctx, system, prompt)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func runMigrations(databaseURL, sourceURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	}

	if upErr == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
