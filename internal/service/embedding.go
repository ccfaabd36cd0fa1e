package service

import (
	"context"
	"log"
	"sync"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddedText pairs an input position with its embedding. Index refers to
// the caller's original slice, so batches completing out of order never
// reorder persisted chunk indices.
type EmbeddedText struct {
	Index     int
	Text      string
	Embedding []float32
}

// EmbeddingService wraps the embedding endpoint with bounded-concurrency
// batching.
type EmbeddingService struct {
	client    EmbeddingClient
	batchSize int
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, batchSize int) *EmbeddingService {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &EmbeddingService{
		client:    client,
		batchSize: batchSize,
	}
}

// Embed generates an embedding for a single text (the query path).
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.client.GenerateEmbedding(ctx, text)
}

// EmbedBatch embeds texts in parallel batches of at most batchSize. A failed
// item is logged and excluded from the result; the rest of the batch
// proceeds. An empty input is a no-op. Results are returned in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) []EmbeddedText {
	if len(texts) == 0 {
		return nil
	}

	results := make([]*EmbeddedText, len(texts))

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				embedding, err := s.client.GenerateEmbedding(ctx, texts[i])
				if err != nil {
					log.Printf("failed to embed chunk %d (starts %q): %v", i, prefix(texts[i], 50), err)
					return
				}
				results[i] = &EmbeddedText{Index: i, Text: texts[i], Embedding: embedding}
			}(i)
		}
		wg.Wait()
	}

	embedded := make([]EmbeddedText, 0, len(texts))
	for _, r := range results {
		if r != nil {
			embedded = append(embedded, *r)
		}
	}
	return embedded
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
