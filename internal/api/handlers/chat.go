package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/mwanachuomind/backend/internal/api"
	"github.com/mwanachuomind/backend/internal/domain"
	"github.com/mwanachuomind/backend/internal/service"
)

// ChatAnswerer produces grounded answers over the indexed corpus.
type ChatAnswerer interface {
	Answer(ctx context.Context, input service.ChatInput) (<-chan service.ChatFragment, error)
	AnswerOnce(ctx context.Context, input service.ChatInput) (string, error)
}

type ChatHandler struct {
	svc ChatAnswerer
}

func NewChatHandler(svc ChatAnswerer) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Query      string                `json:"query"`
	CourseID   string                `json:"course_id,omitempty"`
	DocumentID string                `json:"document_id,omitempty"`
	NoteID     string                `json:"note_id,omitempty"`
	History    []service.ChatMessage `json:"history,omitempty"`
	Stream     *bool                 `json:"stream,omitempty"`
}

type ChatAnswerResponse struct {
	Answer string `json:"answer"`
}

type sseAnswerEvent struct {
	Answer string `json:"answer"`
}

type sseErrorEvent struct {
	Error string `json:"error"`
}

// Chat answers a question grounded in retrieved course material. The default
// response is a Server-Sent Events stream of answer fragments terminated by
// a [DONE] sentinel; pass "stream": false for a single JSON answer.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	input := service.ChatInput{
		Query: req.Query,
		Filters: domain.ScopeFilters{
			CourseID:   req.CourseID,
			DocumentID: req.DocumentID,
			NoteID:     req.NoteID,
		},
		History: req.History,
	}

	if req.Stream != nil && !*req.Stream {
		answer, err := h.svc.AnswerOnce(r.Context(), input)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		api.Success(w, http.StatusOK, ChatAnswerResponse{Answer: answer})
		return
	}

	fragments, err := h.svc.Answer(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for fragment := range fragments {
		switch {
		case fragment.Err != nil:
			// Headers are already sent; the failure travels in-stream.
			writeSSE(w, sseErrorEvent{Error: fragment.Err.Error()})
			flusher.Flush()
			return
		case fragment.Done:
			if _, err := w.Write([]byte("data: [DONE]\n\n")); err != nil {
				log.Printf("chat stream write failed: %v", err)
			}
			flusher.Flush()
			return
		default:
			writeSSE(w, sseAnswerEvent{Answer: fragment.Content})
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("chat stream marshal failed: %v", err)
		return
	}
	if _, err := w.Write(append(append([]byte("data: "), payload...), '\n', '\n')); err != nil {
		log.Printf("chat stream write failed: %v", err)
	}
}
