package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mwanachuomind/backend/internal/config"
	"github.com/mwanachuomind/backend/internal/database"
	"github.com/mwanachuomind/backend/internal/domain"
	"github.com/mwanachuomind/backend/internal/openai"
	"github.com/mwanachuomind/backend/internal/repository"
	"github.com/mwanachuomind/backend/internal/service"
	"github.com/mwanachuomind/backend/internal/storage"
)

// ProcessCmd returns the process command
func ProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [document-id...]",
		Short: "Run document ingestion from the command line",
		Long:  "Process the given documents synchronously, or reprocess every failed document with --failed",
		RunE:  runProcess,
	}

	cmd.Flags().Bool("failed", false, "Reprocess all documents currently in the failed state")
	cmd.Flags().Int("limit", 50, "Maximum number of documents to pick up with --failed")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	reprocessFailed, _ := cmd.Flags().GetBool("failed")
	limit, _ := cmd.Flags().GetInt("limit")

	if len(args) == 0 && !reprocessFailed {
		return fmt.Errorf("provide document ids or --failed")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasS3() {
		return fmt.Errorf("object storage not configured: MIND_S3_ENDPOINT, MIND_S3_ACCESS_KEY_ID and MIND_S3_SECRET_ACCESS_KEY are required")
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("model provider not configured: MIND_OPENAI_API_KEY is required")
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	docRepo := repository.NewDocumentRepository(pool)

	ingestionSvc, err := buildIngestion(ctx, cfg, pool)
	if err != nil {
		return err
	}

	ids := args
	if reprocessFailed {
		docs, err := docRepo.ListByStatus(ctx, domain.DocumentStatusFailed, limit)
		if err != nil {
			return fmt.Errorf("failed to list failed documents: %w", err)
		}
		for _, doc := range docs {
			ids = append(ids, doc.ID)
		}
		if len(ids) == 0 {
			fmt.Println("No documents to process")
			return nil
		}
	}

	var failures int
	for _, id := range ids {
		fmt.Printf("Processing %s...\n", id)
		if err := ingestionSvc.Process(ctx, id); err != nil {
			failures++
			fmt.Printf("  failed: %v\n", err)
			continue
		}
		fmt.Println("  done")
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d documents failed", failures, len(ids))
	}
	return nil
}

func buildIngestion(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*service.IngestionService, error) {
	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	aiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
		VisionModel:         cfg.VisionModel,
	})

	return service.NewIngestionService(
		repository.NewDocumentRepository(pool),
		repository.NewChunkRepository(pool),
		s3Client,
		service.NewTextExtractor(aiClient),
		service.NewEmbeddingService(aiClient, cfg.EmbedBatchSize),
		service.NewNoteAnalysisService(aiClient),
		repository.NewAnalysisRepository(pool),
		service.ChunkConfig{
			Size:     cfg.ChunkSize,
			Overlap:  cfg.ChunkOverlap,
			MinChars: cfg.ChunkMinChars,
		},
		cfg.InsertBatchSize,
	), nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return pool, nil
}
