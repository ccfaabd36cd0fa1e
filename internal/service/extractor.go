package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mwanachuomind/backend/internal/domain"
)

// TranscriptionClient is the multimodal fallback used when a document has no
// machine-readable text layer.
type TranscriptionClient interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// TextExtractor obtains plain text from stored document bytes. Native-text
// PDFs are parsed directly; scanned PDFs, slides and images go through the
// generative service's transcription call.
type TextExtractor struct {
	transcriber TranscriptionClient
}

// NewTextExtractor creates a new TextExtractor instance
func NewTextExtractor(transcriber TranscriptionClient) *TextExtractor {
	return &TextExtractor{transcriber: transcriber}
}

// Extract returns the plain text of a document or an extraction error that
// carries the underlying cause. It never returns empty text without error.
func (e *TextExtractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", domain.NewExtractionError("document is empty", nil)
	}

	var parserErr error
	if isPDF(mimeType, data) {
		text, err := extractPDFText(data)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		parserErr = err
	}

	text, err := e.transcriber.Transcribe(ctx, data, mimeType)
	if err != nil {
		if parserErr != nil {
			return "", domain.NewExtractionError(
				fmt.Sprintf("pdf parser failed (%v) and transcription failed", parserErr), err)
		}
		return "", domain.NewExtractionError("transcription failed", err)
	}

	if strings.TrimSpace(text) == "" {
		return "", domain.NewExtractionError("no text could be extracted from the document", nil)
	}

	return text, nil
}

func isPDF(mimeType string, data []byte) bool {
	if strings.EqualFold(mimeType, "application/pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// extractPDFText reads the native text layer of a PDF.
func extractPDFText(data []byte) (text string, err error) {
	// The pdf package panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf buffer: %w", err)
	}

	return buf.String(), nil
}
