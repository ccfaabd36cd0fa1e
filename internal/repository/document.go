package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwanachuomind/backend/internal/domain"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, course_id, kind, title, file_path, mime_type, status, status_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, nullableString(d.CourseID), d.Kind, d.Title, d.FilePath, d.MimeType, d.Status, nullableString(d.StatusMessage), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, course_id, kind, title, file_path, mime_type, status, status_message, extracted_text, summary, chunk_count, created_at, updated_at, processed_at
		 FROM documents WHERE id = $1`,
		id,
	)
	return scanDocument(row)
}

func (r *DocumentRepository) GetByFilePath(ctx context.Context, filePath string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, course_id, kind, title, file_path, mime_type, status, status_message, extracted_text, summary, chunk_count, created_at, updated_at, processed_at
		 FROM documents WHERE file_path = $1`,
		filePath,
	)
	return scanDocument(row)
}

// SetStatus writes the processing state machine transition. Writes are
// last-writer-wins; concurrent runs for the same document may interleave.
func (r *DocumentRepository) SetStatus(ctx context.Context, id string, status domain.DocumentStatus, message string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $2, status_message = $3, updated_at = $4 WHERE id = $1`,
		id, status, nullableString(message), time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// SetSummary records the model-written summary of a note. The analysis
// stage writes it; the completion summary stays in status_message.
func (r *DocumentRepository) SetSummary(ctx context.Context, id string, summary string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET summary = $2, updated_at = $3 WHERE id = $1`,
		id, nullableString(summary), time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) SetExtractedText(ctx context.Context, id string, text string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET extracted_text = $2, updated_at = $3 WHERE id = $1`,
		id, text, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// MarkCompleted records a successful run: terminal status, human-readable
// summary, chunk count and completion time.
func (r *DocumentRepository) MarkCompleted(ctx context.Context, id string, summary string, chunkCount int) error {
	now := time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $2, status_message = $3, chunk_count = $4, processed_at = $5, updated_at = $5
		 WHERE id = $1`,
		id, domain.DocumentStatusCompleted, summary, chunkCount, now,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ListByStatus returns the oldest documents in the given status, used by the
// background worker to pick up queued rows.
func (r *DocumentRepository) ListByStatus(ctx context.Context, status domain.DocumentStatus, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, course_id, kind, title, file_path, mime_type, status, status_message, extracted_text, summary, chunk_count, created_at, updated_at, processed_at
		 FROM documents
		 WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) ListDocumentIDsByCourse(ctx context.Context, courseID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM documents WHERE course_id = $1`,
		courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var courseID, statusMessage, extractedText, summary pgtype.Text
	var processedAt pgtype.Timestamptz

	err := row.Scan(&d.ID, &courseID, &d.Kind, &d.Title, &d.FilePath, &d.MimeType,
		&d.Status, &statusMessage, &extractedText, &summary, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt, &processedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}

	if courseID.Valid {
		d.CourseID = courseID.String
	}
	if statusMessage.Valid {
		d.StatusMessage = statusMessage.String
	}
	if extractedText.Valid {
		d.ExtractedText = extractedText.String
	}
	if summary.Valid {
		d.Summary = summary.String
	}
	if processedAt.Valid {
		t := processedAt.Time
		d.ProcessedAt = &t
	}
	return &d, nil
}
