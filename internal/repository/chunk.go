package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mwanachuomind/backend/internal/domain"
)

// ChunkRepository handles persistence and similarity search of embedded
// document chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// DeleteByDocument removes every chunk of a document. Combined with
// InsertChunks this implements the full-replace semantics of reprocessing.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}

// InsertChunks writes a batch of chunks. Callers insert progressively in
// bounded batches; a later failure leaves earlier batches visible.
func (r *ChunkRepository) InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO document_chunks (document_id, chunk_index, content, embedding, char_count, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.DocumentID,
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
			c.CharCount,
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// CountByDocument returns the number of persisted chunks for a document.
func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}

// SearchChunks performs cosine similarity search. The primitive filters by
// at most one document; results below the threshold are excluded even when
// the limit is not filled. Ties on score break on ascending chunk index for
// deterministic ordering.
func (r *ChunkRepository) SearchChunks(ctx context.Context, embedding []float32, documentID string, threshold float32, limit int) ([]domain.RetrievedChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	vec := pgvector.NewVector(embedding)

	var (
		query string
		args  []interface{}
	)
	if documentID != "" {
		query = `
			SELECT c.document_id, c.chunk_index, c.content, d.title,
			       1 - (c.embedding <=> $1) AS similarity
			FROM document_chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE 1 - (c.embedding <=> $1) >= $2
			  AND c.document_id = $3
			ORDER BY similarity DESC, c.chunk_index ASC
			LIMIT $4`
		args = []interface{}{vec, threshold, documentID, limit}
	} else {
		query = `
			SELECT c.document_id, c.chunk_index, c.content, d.title,
			       1 - (c.embedding <=> $1) AS similarity
			FROM document_chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE 1 - (c.embedding <=> $1) >= $2
			ORDER BY similarity DESC, c.chunk_index ASC
			LIMIT $3`
		args = []interface{}{vec, threshold, limit}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.RetrievedChunk, 0, limit)
	for rows.Next() {
		var c domain.RetrievedChunk
		if err := rows.Scan(&c.DocumentID, &c.ChunkIndex, &c.Content, &c.SourceTitle, &c.Score); err != nil {
			return nil, err
		}
		results = append(results, c)
	}

	return results, rows.Err()
}
