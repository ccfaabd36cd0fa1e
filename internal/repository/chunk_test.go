//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwanachuomind/backend/internal/domain"
	"github.com/mwanachuomind/backend/internal/testutil"
)

// unitVec returns a 1536-dimensional basis vector. Identical vectors score
// 1.0 under cosine similarity, orthogonal ones 0.0, which makes search
// results exactly predictable.
func unitVec(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis] = 1
	return v
}

func seedDocument(ctx context.Context, t *testing.T, docs *DocumentRepository, title string) *domain.Document {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := domain.NewDocument(id, uuid.NewString(), domain.DocumentKindDocument,
		title, "user-1/course/"+id+".pdf", "application/pdf", now)
	require.NoError(t, docs.Create(ctx, doc))
	return doc
}

func chunkFor(doc *domain.Document, index int, content string, embedding []float32) domain.DocumentChunk {
	return domain.DocumentChunk{
		DocumentID: doc.ID,
		ChunkIndex: index,
		Content:    content,
		Embedding:  embedding,
		CharCount:  len(content),
	}
}

func TestChunkRepository_InsertAndCount(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docs, "Biology Lecture 3")

	err := chunks.InsertChunks(ctx, []domain.DocumentChunk{
		chunkFor(doc, 0, "Mitosis divides cells.", unitVec(0)),
		chunkFor(doc, 1, "Meiosis halves chromosomes.", unitVec(1)),
	})
	require.NoError(t, err)

	count, err := chunks.CountByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestChunkRepository_InsertChunks_Empty(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunks := NewChunkRepository(pool)
	assert.NoError(t, chunks.InsertChunks(ctx, nil))
}

func TestChunkRepository_InsertChunks_DuplicateIndex(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docs, "Biology Lecture 3")

	require.NoError(t, chunks.InsertChunks(ctx, []domain.DocumentChunk{
		chunkFor(doc, 0, "first", unitVec(0)),
	}))
	err := chunks.InsertChunks(ctx, []domain.DocumentChunk{
		chunkFor(doc, 0, "duplicate", unitVec(1)),
	})
	assert.Error(t, err)
}

func TestChunkRepository_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docs, "Biology Lecture 3")
	other := seedDocument(ctx, t, docs, "Chemistry Lecture 1")

	require.NoError(t, chunks.InsertChunks(ctx, []domain.DocumentChunk{
		chunkFor(doc, 0, "a", unitVec(0)),
		chunkFor(doc, 1, "b", unitVec(1)),
		chunkFor(other, 0, "c", unitVec(2)),
	}))

	require.NoError(t, chunks.DeleteByDocument(ctx, doc.ID))

	count, err := chunks.CountByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	otherCount, err := chunks.CountByDocument(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, otherCount)

	// Idempotent on an already-empty document.
	assert.NoError(t, chunks.DeleteByDocument(ctx, doc.ID))
}

func TestChunkRepository_SearchChunks(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docs, "Biology Lecture 3")

	require.NoError(t, chunks.InsertChunks(ctx, []domain.DocumentChunk{
		chunkFor(doc, 0, "Mitosis divides cells.", unitVec(0)),
		chunkFor(doc, 1, "Meiosis halves chromosomes.", unitVec(1)),
	}))

	results, err := chunks.SearchChunks(ctx, unitVec(0), "", 0.5, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, doc.ID, results[0].DocumentID)
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.Equal(t, "Mitosis divides cells.", results[0].Content)
	assert.Equal(t, "Biology Lecture 3", results[0].SourceTitle)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
}

func TestChunkRepository_SearchChunks_ThresholdExcludes(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docs, "Biology Lecture 3")

	// Orthogonal to the query, similarity 0.0.
	require.NoError(t, chunks.InsertChunks(ctx, []domain.DocumentChunk{
		chunkFor(doc, 0, "Unrelated content.", unitVec(1)),
	}))

	results, err := chunks.SearchChunks(ctx, unitVec(0), "", 0.5, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	// The same row is admitted once the threshold allows it.
	results, err = chunks.SearchChunks(ctx, unitVec(0), "", 0.0, 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChunkRepository_SearchChunks_DocumentFilter(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool)

	target := seedDocument(ctx, t, docs, "Biology Lecture 3")
	other := seedDocument(ctx, t, docs, "Chemistry Lecture 1")

	require.NoError(t, chunks.InsertChunks(ctx, []domain.DocumentChunk{
		chunkFor(target, 0, "target chunk", unitVec(0)),
		chunkFor(other, 0, "other chunk", unitVec(0)),
	}))

	results, err := chunks.SearchChunks(ctx, unitVec(0), target.ID, 0.5, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, target.ID, results[0].DocumentID)
}

func TestChunkRepository_SearchChunks_OrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docs, "Biology Lecture 3")

	// Two exact matches (tie, broken by ascending index) and one weaker hit.
	weaker := make([]float32, 1536)
	weaker[0] = 1
	weaker[1] = 1
	require.NoError(t, chunks.InsertChunks(ctx, []domain.DocumentChunk{
		chunkFor(doc, 2, "exact late", unitVec(0)),
		chunkFor(doc, 0, "exact early", unitVec(0)),
		chunkFor(doc, 1, "partial", weaker),
	}))

	results, err := chunks.SearchChunks(ctx, unitVec(0), "", 0.5, 5)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.Equal(t, 2, results[1].ChunkIndex)
	assert.Equal(t, 1, results[2].ChunkIndex)
	assert.Greater(t, results[1].Score, results[2].Score)

	limited, err := chunks.SearchChunks(ctx, unitVec(0), "", 0.5, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, 0, limited[0].ChunkIndex)
	assert.Equal(t, 2, limited[1].ChunkIndex)
}

func TestChunkRepository_CascadeDeleteWithDocument(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool)

	doc := seedDocument(ctx, t, docs, "Biology Lecture 3")
	require.NoError(t, chunks.InsertChunks(ctx, []domain.DocumentChunk{
		chunkFor(doc, 0, "chunk", unitVec(0)),
	}))

	_, err := pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, doc.ID)
	require.NoError(t, err)

	count, err := chunks.CountByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
