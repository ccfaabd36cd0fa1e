package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/mwanachuomind/backend/internal/domain"
)

const (
	// DefaultSweepBatch bounds how many queued documents a single sweep claims.
	DefaultSweepBatch = 10
)

// QueuedDocumentRepository lists documents waiting for ingestion.
type QueuedDocumentRepository interface {
	ListByStatus(ctx context.Context, status domain.DocumentStatus, limit int) ([]*domain.Document, error)
}

// DocumentProcessor runs the ingestion pipeline for a single document.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID string) error
}

// DocumentWorker picks up documents stuck in the queued state and runs them
// through ingestion. Request-triggered processing handles the common path;
// this sweep is the safety net for uploads that never received a trigger or
// were interrupted before reaching a terminal status.
type DocumentWorker struct {
	repo      QueuedDocumentRepository
	processor DocumentProcessor
	batchSize int
}

func NewDocumentWorker(repo QueuedDocumentRepository, processor DocumentProcessor) *DocumentWorker {
	return &DocumentWorker{
		repo:      repo,
		processor: processor,
		batchSize: DefaultSweepBatch,
	}
}

// Sweep implements the Sweeper interface.
func (w *DocumentWorker) Sweep(ctx context.Context) error {
	docs, err := w.repo.ListByStatus(ctx, domain.DocumentStatusQueued, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list queued documents: %w", err)
	}

	if len(docs) == 0 {
		return nil
	}

	log.Printf("Processing %d queued documents", len(docs))

	for _, doc := range docs {
		if err := w.processor.Process(ctx, doc.ID); err != nil {
			// Process marks the document failed itself; a failure on one
			// document must not block the rest of the batch.
			log.Printf("Error processing document %s: %v", doc.ID, err)
		}
	}

	return nil
}
