package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"

	// Pipeline stage error codes
	ErrCodeDownloadFailed    = "DOWNLOAD_FAILED"
	ErrCodeExtractionFailed  = "EXTRACTION_FAILED"
	ErrCodeAnalysisFailed    = "ANALYSIS_FAILED"
	ErrCodeEmbeddingFailed   = "EMBEDDING_FAILED"
	ErrCodePersistenceFailed = "PERSISTENCE_FAILED"
	ErrCodeSearchFailed      = "SEARCH_FAILED"
	ErrCodeGenerationFailed  = "GENERATION_FAILED"
)

// Validation errors
var (
	ErrInvalidDocumentStatus = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidDocumentKind   = NewDomainError(ErrCodeValidation, "invalid document kind")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
)

// NewDownloadError wraps a storage download failure.
func NewDownloadError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeDownloadFailed, "failed to download document", err)
}

// NewExtractionError wraps a text extraction failure with its cause: parser
// error, model error, or an empty result.
func NewExtractionError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeExtractionFailed, message, err)
}

// NewAnalysisError wraps a failure of the note study-metadata stage: a model
// error or an unparseable response.
func NewAnalysisError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeAnalysisFailed, message, err)
}

// NewEmbeddingError wraps an embedding failure. Per-item embedding failures
// inside a batch are logged and skipped instead of raised.
func NewEmbeddingError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbeddingFailed, "failed to generate embedding", err)
}

// NewPersistenceError wraps a database write failure.
func NewPersistenceError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodePersistenceFailed, message, err)
}

// NewSearchError wraps a similarity search failure.
func NewSearchError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeSearchFailed, "similarity search failed", err)
}

// NewGenerationError wraps a completion failure. Fatal only when nothing has
// been streamed yet; afterwards it is surfaced as an in-stream error event.
func NewGenerationError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeGenerationFailed, "answer generation failed", err)
}
