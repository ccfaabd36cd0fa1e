package domain

import "time"

// DocumentChunk represents an embedded segment of a document's extracted text.
// Chunks are immutable after insertion; reprocessing a document replaces the
// whole set. Chunk indices are assigned before embedding; a gap in the
// sequence marks a chunk whose embedding failed and was skipped.
type DocumentChunk struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Content    string
	Embedding  []float32
	CharCount  int
	CreatedAt  time.Time
}
