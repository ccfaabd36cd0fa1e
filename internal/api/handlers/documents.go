package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwanachuomind/backend/internal/api"
	"github.com/mwanachuomind/backend/internal/domain"
	"github.com/mwanachuomind/backend/internal/storage"
)

type DocumentStore interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByFilePath(ctx context.Context, filePath string) (*domain.Document, error)
}

// DocumentIngestor triggers the ingestion pipeline. ProcessAsync detaches
// from the request so the caller gets an immediate acknowledgement.
type DocumentIngestor interface {
	ProcessAsync(documentID string)
}

// AnalysisReader loads the study metadata produced for a note.
type AnalysisReader interface {
	GetByDocument(ctx context.Context, documentID string) (*domain.NoteAnalysis, error)
}

type DocumentHandler struct {
	store    DocumentStore
	ingestor DocumentIngestor
	analyses AnalysisReader
}

func NewDocumentHandler(store DocumentStore, ingestor DocumentIngestor, analyses AnalysisReader) *DocumentHandler {
	return &DocumentHandler{store: store, ingestor: ingestor, analyses: analyses}
}

type DocumentResponse struct {
	ID            string `json:"id"`
	CourseID      string `json:"course_id,omitempty"`
	Kind          string `json:"kind"`
	Title         string `json:"title"`
	FilePath      string `json:"file_path"`
	MimeType      string `json:"mime_type,omitempty"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
	Summary       string `json:"summary,omitempty"`
	ChunkCount    int32  `json:"chunk_count"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	ProcessedAt   string `json:"processed_at,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:            d.ID,
		CourseID:      d.CourseID,
		Kind:          string(d.Kind),
		Title:         d.Title,
		FilePath:      d.FilePath,
		MimeType:      d.MimeType,
		Status:        string(d.Status),
		StatusMessage: d.StatusMessage,
		Summary:       d.Summary,
		ChunkCount:    d.ChunkCount,
		CreatedAt:     d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:     d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if d.ProcessedAt != nil {
		resp.ProcessedAt = d.ProcessedAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}

type ProcessResponse struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

// Process triggers ingestion for an uploaded document and returns 202
// immediately; progress is observable through the document status.
func (h *DocumentHandler) Process(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if doc.Status == domain.DocumentStatusProcessing {
		api.Error(w, http.StatusConflict, "document is already being processed")
		return
	}

	h.ingestor.ProcessAsync(doc.ID)

	api.Success(w, http.StatusAccepted, ProcessResponse{
		DocumentID: doc.ID,
		Message:    "processing started",
	})
}

// Get returns the current state of a document, including its processing
// status and chunk count.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type ConceptResponse struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Page       int    `json:"page"`
}

type FlashcardResponse struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
}

type AnalysisResponse struct {
	DocumentID string              `json:"document_id"`
	Summary    string              `json:"summary,omitempty"`
	Concepts   []ConceptResponse   `json:"concepts"`
	Flashcards []FlashcardResponse `json:"flashcards"`
}

// GetAnalysis returns the study metadata generated for a note: summary, key
// concepts and flashcards. Documents that were never analyzed return empty
// lists.
func (h *DocumentHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	analysis, err := h.analyses.GetByDocument(r.Context(), doc.ID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := AnalysisResponse{
		DocumentID: doc.ID,
		Summary:    doc.Summary,
		Concepts:   make([]ConceptResponse, 0, len(analysis.Concepts)),
		Flashcards: make([]FlashcardResponse, 0, len(analysis.Flashcards)),
	}
	for _, c := range analysis.Concepts {
		resp.Concepts = append(resp.Concepts, ConceptResponse{Term: c.Term, Definition: c.Definition, Page: c.Page})
	}
	for _, f := range analysis.Flashcards {
		resp.Flashcards = append(resp.Flashcards, FlashcardResponse{Question: f.Question, Answer: f.Answer, Difficulty: f.Difficulty})
	}

	api.Success(w, http.StatusOK, resp)
}

type StorageWebhookRequest struct {
	ObjectKey string `json:"object_key"`
	CourseID  string `json:"course_id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	MimeType  string `json:"mime_type"`
}

// StorageWebhook registers a freshly uploaded object and kicks off
// ingestion. The document id is recovered from the object key when the
// upload followed the {owner}/{scope}/{document_id}.{ext} convention;
// otherwise the object key resolves an existing document, or a new record
// is created.
func (h *DocumentHandler) StorageWebhook(w http.ResponseWriter, r *http.Request) {
	var req StorageWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ObjectKey == "" {
		api.Error(w, http.StatusBadRequest, "object_key is required")
		return
	}

	doc, err := h.resolveDocument(r.Context(), req)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	h.ingestor.ProcessAsync(doc.ID)

	api.Success(w, http.StatusAccepted, ProcessResponse{
		DocumentID: doc.ID,
		Message:    "processing started",
	})
}

func (h *DocumentHandler) resolveDocument(ctx context.Context, req StorageWebhookRequest) (*domain.Document, error) {
	keyID := storage.ObjectKeyDocumentID(req.ObjectKey)
	if _, err := uuid.Parse(keyID); err != nil {
		keyID = ""
	}
	if keyID != "" {
		doc, err := h.store.GetByID(ctx, keyID)
		if err == nil {
			return doc, nil
		}
		if err != domain.ErrDocumentNotFound {
			return nil, err
		}
	}

	doc, err := h.store.GetByFilePath(ctx, req.ObjectKey)
	if err == nil {
		return doc, nil
	}
	if err != domain.ErrDocumentNotFound {
		return nil, err
	}

	kind := domain.DocumentKind(req.Kind)
	if req.Kind == "" {
		kind = domain.DocumentKindDocument
	}
	title := req.Title
	if title == "" {
		title = req.ObjectKey
	}

	// Keys following the {owner}/{scope}/{document_id}.{ext} convention carry
	// the document id; keep it so later lookups by id find this record.
	id := keyID
	if id == "" {
		id = uuid.NewString()
	}

	doc = domain.NewDocument(id, req.CourseID, kind, title, req.ObjectKey, req.MimeType, time.Now().UTC())
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if err := h.store.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
