package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwanachuomind/backend/internal/domain"
)

// AnalysisRepository persists the study-metadata enrichment of a note:
// key concepts and flashcards in companion tables keyed by document.
type AnalysisRepository struct {
	db dbtx
}

func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{db: pool}
}

func NewAnalysisRepositoryWithTx(tx pgx.Tx) *AnalysisRepository {
	return &AnalysisRepository{db: tx}
}

// ReplaceByDocument removes any prior analysis rows for the document and
// writes the new set, mirroring the full-replace semantics of chunks.
func (r *AnalysisRepository) ReplaceByDocument(ctx context.Context, documentID string, a *domain.NoteAnalysis) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM note_concepts WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM note_flashcards WHERE document_id = $1`, documentID); err != nil {
		return err
	}

	for _, c := range a.Concepts {
		_, err := r.db.Exec(ctx,
			`INSERT INTO note_concepts (document_id, concept_text, context, page_number)
			 VALUES ($1, $2, $3, $4)`,
			documentID, c.Term, c.Definition, c.Page,
		)
		if err != nil {
			return err
		}
	}

	for _, f := range a.Flashcards {
		_, err := r.db.Exec(ctx,
			`INSERT INTO note_flashcards (document_id, question, answer, difficulty)
			 VALUES ($1, $2, $3, $4)`,
			documentID, f.Question, f.Answer, f.Difficulty,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetByDocument loads the persisted concepts and flashcards for a document.
// The summary lives on the document record, not here.
func (r *AnalysisRepository) GetByDocument(ctx context.Context, documentID string) (*domain.NoteAnalysis, error) {
	analysis := &domain.NoteAnalysis{}

	rows, err := r.db.Query(ctx,
		`SELECT concept_text, context, page_number
		 FROM note_concepts
		 WHERE document_id = $1
		 ORDER BY page_number ASC, concept_text ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.NoteConcept
		if err := rows.Scan(&c.Term, &c.Definition, &c.Page); err != nil {
			return nil, err
		}
		analysis.Concepts = append(analysis.Concepts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cardRows, err := r.db.Query(ctx,
		`SELECT question, answer, difficulty
		 FROM note_flashcards
		 WHERE document_id = $1
		 ORDER BY created_at ASC, question ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer cardRows.Close()

	for cardRows.Next() {
		var f domain.NoteFlashcard
		if err := cardRows.Scan(&f.Question, &f.Answer, &f.Difficulty); err != nil {
			return nil, err
		}
		analysis.Flashcards = append(analysis.Flashcards, f)
	}
	return analysis, cardRows.Err()
}
