package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mwanachuomind/backend/internal/domain"
	"github.com/mwanachuomind/backend/internal/telemetry"
)

// IngestionDocumentRepository persists the per-document processing record.
type IngestionDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	SetStatus(ctx context.Context, id string, status domain.DocumentStatus, message string) error
	SetExtractedText(ctx context.Context, id string, text string) error
	SetSummary(ctx context.Context, id string, summary string) error
	MarkCompleted(ctx context.Context, id string, summary string, chunkCount int) error
}

// IngestionChunkRepository persists embedded chunks.
type IngestionChunkRepository interface {
	DeleteByDocument(ctx context.Context, documentID string) error
	InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error
}

// ObjectDownloader fetches raw document bytes from the object store.
type ObjectDownloader interface {
	DownloadObject(ctx context.Context, key string) ([]byte, error)
}

// Extractor obtains plain text from document bytes.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ChunkEmbedder embeds chunk texts in bounded batches.
type ChunkEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) []EmbeddedText
}

// NoteAnalyzer produces the study-metadata enrichment for note text.
type NoteAnalyzer interface {
	Analyze(ctx context.Context, text string) (*domain.NoteAnalysis, error)
}

// AnalysisStore persists the enrichment rows.
type AnalysisStore interface {
	ReplaceByDocument(ctx context.Context, documentID string, a *domain.NoteAnalysis) error
}

// IngestionService drives the document processing pipeline: download,
// extract, chunk, embed, persist. It owns the document's status record for
// the duration of a run; concurrent runs for the same document are tolerated
// with last-writer-wins status updates.
type IngestionService struct {
	docs            IngestionDocumentRepository
	chunks          IngestionChunkRepository
	store           ObjectDownloader
	extractor       Extractor
	embedder        ChunkEmbedder
	analyzer        NoteAnalyzer
	analyses        AnalysisStore
	chunkCfg        ChunkConfig
	insertBatchSize int
}

// NewIngestionService creates a new IngestionService instance
func NewIngestionService(
	docs IngestionDocumentRepository,
	chunks IngestionChunkRepository,
	store ObjectDownloader,
	extractor Extractor,
	embedder ChunkEmbedder,
	analyzer NoteAnalyzer,
	analyses AnalysisStore,
	chunkCfg ChunkConfig,
	insertBatchSize int,
) *IngestionService {
	if insertBatchSize <= 0 {
		insertBatchSize = 50
	}
	return &IngestionService{
		docs:            docs,
		chunks:          chunks,
		store:           store,
		extractor:       extractor,
		embedder:        embedder,
		analyzer:        analyzer,
		analyses:        analyses,
		chunkCfg:        chunkCfg,
		insertBatchSize: insertBatchSize,
	}
}

// ProcessAsync launches Process as a detached background task. The task runs
// on a fresh context so a client disconnect never cancels a started
// ingestion.
func (s *IngestionService) ProcessAsync(documentID string) {
	go func() {
		start := time.Now()
		if err := s.Process(context.Background(), documentID); err != nil {
			log.Printf("background ingestion for document %s failed after %v: %v", documentID, time.Since(start), err)
			return
		}
		log.Printf("background ingestion for document %s completed in %v", documentID, time.Since(start))
	}()
}

// Process runs one full ingestion for a document. Any stage failure aborts
// the remaining stages and marks the document failed with the captured
// error; resubmission moves it back to processing.
func (s *IngestionService) Process(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Process", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ingest",
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	// Entering processing clears any prior failure message.
	if err := s.docs.SetStatus(ctx, doc.ID, domain.DocumentStatusProcessing, "Processing: Downloading file..."); err != nil {
		return domain.NewPersistenceError("failed to update document status", err)
	}

	data, err := s.store.DownloadObject(ctx, doc.FilePath)
	if err != nil {
		return s.fail(ctx, doc.ID, domain.NewDownloadError(err))
	}

	if err := s.docs.SetStatus(ctx, doc.ID, domain.DocumentStatusProcessing, "Processing: Extracting text..."); err != nil {
		return domain.NewPersistenceError("failed to update document status", err)
	}

	text, err := s.extractor.Extract(ctx, data, doc.MimeType)
	if err != nil {
		return s.fail(ctx, doc.ID, err)
	}
	log.Printf("extracted %d characters from document %s", len(text), doc.ID)

	if err := s.docs.SetExtractedText(ctx, doc.ID, text); err != nil {
		return s.fail(ctx, doc.ID, domain.NewPersistenceError("failed to store extracted text", err))
	}

	// Notes additionally get study metadata: concepts, flashcards and a
	// summary, written before indexing so a later embedding failure leaves
	// the enrichment in place.
	if doc.Kind == domain.DocumentKindNote && s.analyzer != nil {
		if err := s.analyze(ctx, doc.ID, text); err != nil {
			return s.fail(ctx, doc.ID, err)
		}
	}

	chunks := SplitText(text, s.chunkCfg)
	log.Printf("split document %s into %d chunks", doc.ID, len(chunks))

	if err := s.docs.SetStatus(ctx, doc.ID, domain.DocumentStatusProcessing,
		fmt.Sprintf("Processing: Indexing %d chunks...", len(chunks))); err != nil {
		return domain.NewPersistenceError("failed to update document status", err)
	}

	// Full replace: prior chunks go before any new ones are written. This is
	// deliberately not one transaction; partial progress is visible and the
	// next successful run repairs it.
	if err := s.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return s.fail(ctx, doc.ID, domain.NewPersistenceError("failed to delete previous chunks", err))
	}

	inserted, err := s.embedAndInsert(ctx, doc.ID, chunks)
	if err != nil {
		return s.fail(ctx, doc.ID, err)
	}

	summary := fmt.Sprintf("Processed %d chunks", inserted)
	if err := s.docs.MarkCompleted(ctx, doc.ID, summary, inserted); err != nil {
		return domain.NewPersistenceError("failed to mark document completed", err)
	}

	return nil
}

// analyze runs the study-metadata stage for a note and persists the result.
func (s *IngestionService) analyze(ctx context.Context, documentID string, text string) error {
	if err := s.docs.SetStatus(ctx, documentID, domain.DocumentStatusProcessing, "Processing: AI Analysis..."); err != nil {
		return domain.NewPersistenceError("failed to update document status", err)
	}

	analysis, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		return err
	}
	log.Printf("analyzed note %s: %s", documentID, fmtAnalysisSummary(analysis))

	if err := s.docs.SetStatus(ctx, documentID, domain.DocumentStatusProcessing, "Processing: Saving metadata..."); err != nil {
		return domain.NewPersistenceError("failed to update document status", err)
	}

	if err := s.analyses.ReplaceByDocument(ctx, documentID, analysis); err != nil {
		return domain.NewPersistenceError("failed to store note analysis", err)
	}

	if analysis.Summary != "" {
		if err := s.docs.SetSummary(ctx, documentID, analysis.Summary); err != nil {
			return domain.NewPersistenceError("failed to store note summary", err)
		}
	}

	return nil
}

// embedAndInsert embeds chunk texts in bounded batches and writes surviving
// records progressively. Chunk indices are assigned before any embedding
// call and survive out-of-order batch completion.
func (s *IngestionService) embedAndInsert(ctx context.Context, documentID string, texts []string) (int, error) {
	embedded := s.embedder.EmbedBatch(ctx, texts)
	if len(embedded) == 0 && len(texts) > 0 {
		return 0, domain.NewEmbeddingError(fmt.Errorf("all %d chunks failed to embed", len(texts)))
	}

	now := time.Now().UTC()
	inserted := 0
	for start := 0; start < len(embedded); start += s.insertBatchSize {
		end := start + s.insertBatchSize
		if end > len(embedded) {
			end = len(embedded)
		}

		batch := make([]domain.DocumentChunk, 0, end-start)
		for _, item := range embedded[start:end] {
			batch = append(batch, domain.DocumentChunk{
				DocumentID: documentID,
				ChunkIndex: item.Index,
				Content:    item.Text,
				Embedding:  item.Embedding,
				CharCount:  len([]rune(item.Text)),
				CreatedAt:  now,
			})
		}

		if err := s.chunks.InsertChunks(ctx, batch); err != nil {
			return inserted, domain.NewPersistenceError("failed to insert chunks", err)
		}
		inserted += len(batch)
	}

	return inserted, nil
}

func (s *IngestionService) fail(ctx context.Context, documentID string, cause error) error {
	log.Printf("ingestion failed for document %s: %v", documentID, cause)
	telemetry.CaptureError(ctx, cause)
	if err := s.docs.SetStatus(ctx, documentID, domain.DocumentStatusFailed, cause.Error()); err != nil {
		log.Printf("failed to record failure for document %s: %v", documentID, err)
	}
	return cause
}
