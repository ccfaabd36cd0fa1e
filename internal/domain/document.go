package domain

import (
	"fmt"
	"time"
)

// DocumentKind distinguishes course documents from personal course notes.
type DocumentKind string

const (
	DocumentKindDocument DocumentKind = "document"
	DocumentKindNote     DocumentKind = "note"
)

// DocumentStatus represents the processing status of a document
type DocumentStatus string

const (
	DocumentStatusQueued     DocumentStatus = "queued"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents an uploaded course document and its processing record.
// The status fields form the ingestion state machine: queued -> processing ->
// completed|failed, where failed documents may be resubmitted.
type Document struct {
	ID            string
	CourseID      string
	Kind          DocumentKind
	Title         string
	FilePath      string
	MimeType      string
	Status        DocumentStatus
	StatusMessage string
	ExtractedText string
	Summary       string
	ChunkCount    int32
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   *time.Time
}

// NewDocument creates a new Document in the queued state.
func NewDocument(id, courseID string, kind DocumentKind, title, filePath, mimeType string, createdAt time.Time) *Document {
	return &Document{
		ID:        id,
		CourseID:  courseID,
		Kind:      kind,
		Title:     title,
		FilePath:  filePath,
		MimeType:  mimeType,
		Status:    DocumentStatusQueued,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.FilePath == "" {
		return fmt.Errorf("document FilePath is required")
	}

	if !isValidDocumentKind(d.Kind) {
		return fmt.Errorf("document Kind is invalid: %s", d.Kind)
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	return nil
}

func isValidDocumentKind(k DocumentKind) bool {
	switch k {
	case DocumentKindDocument, DocumentKindNote:
		return true
	}
	return false
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusQueued, DocumentStatusProcessing,
		DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends an ingestion run. A failed
// document is recoverable: resubmission moves it back to processing.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}
