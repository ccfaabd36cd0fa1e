package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/mwanachuomind/backend/internal/domain"
	"github.com/mwanachuomind/backend/internal/telemetry"
)

const (
	// noContextPlaceholder keeps generation grounded when retrieval finds
	// nothing: the model is told so instead of hallucinating silently.
	noContextPlaceholder = "No relevant context found."

	contextDelimiter = "\n\n---\n\n"

	systemPersona = `You are "Mwanachuomind", an expert academic assistant for university students.
Your goal is to provide high-quality, grounded answers based on the provided course material.

Instructions:
- Use the provided context to answer.
- If the user asks for a "Report", "Summary", or "Revision Guide", format the output with clear headers, bullet points, and bold key terms.
- If the answer isn't in the context, but is related to the course, use your general knowledge but clearly state what is outside the provided material.
- Respond in a helpful, encouraging tone.
- Output MUST be in valid Markdown.`
)

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkRetriever performs scoped similarity search.
type ChunkRetriever interface {
	Search(ctx context.Context, embedding []float32, filters domain.ScopeFilters, threshold float32, topK int) ([]domain.RetrievedChunk, error)
	Config() RetrievalConfig
}

// AnswerStream yields incremental completion fragments; Recv returns io.EOF
// when generation completes.
type AnswerStream interface {
	Recv() (string, error)
	Close() error
}

// CompletionClient starts streaming answer generation.
type CompletionClient interface {
	StreamCompletion(ctx context.Context, system, prompt string) (AnswerStream, error)
}

// ChatMessage is one turn of prior conversation, relayed verbatim into the
// prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatInput describes one question against a retrieval scope.
type ChatInput struct {
	Query   string
	Filters domain.ScopeFilters
	History []ChatMessage
}

// ChatFragment is one streamed piece of an answer. Exactly one terminal
// fragment is emitted: Done on success, Err on an in-stream failure.
type ChatFragment struct {
	Content string
	Done    bool
	Err     error
}

// ChatService embeds the query, retrieves grounding chunks, assembles the
// prompt and streams the generated answer.
type ChatService struct {
	embedder  QueryEmbedder
	retriever ChunkRetriever
	llm       CompletionClient
}

// NewChatService creates a new ChatService instance
func NewChatService(embedder QueryEmbedder, retriever ChunkRetriever, llm CompletionClient) *ChatService {
	return &ChatService{
		embedder:  embedder,
		retriever: retriever,
		llm:       llm,
	}
}

// Answer streams an answer for the input. Errors before any fragment has
// been produced are returned directly; later failures arrive as a terminal
// fragment with Err set.
func (s *ChatService) Answer(ctx context.Context, input ChatInput) (<-chan ChatFragment, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "ChatService.Answer", telemetry.SpanAttributes{
		CourseID:   input.Filters.CourseID,
		DocumentID: input.Filters.EntityID(),
		Operation:  "answer",
	})
	defer span.End()

	embedding, err := s.embedder.Embed(ctx, input.Query)
	if err != nil {
		return nil, domain.NewEmbeddingError(err)
	}

	threshold, topK := s.retriever.Config().Params(input.Filters)
	chunks, err := s.retriever.Search(ctx, embedding, input.Filters, threshold, topK)
	if err != nil {
		return nil, err
	}
	log.Printf("retrieved %d chunks for query (threshold=%.2f, top_k=%d)", len(chunks), threshold, topK)

	prompt := buildPrompt(input, chunks)

	stream, err := s.llm.StreamCompletion(ctx, systemPersona, prompt)
	if err != nil {
		return nil, domain.NewGenerationError(err)
	}

	out := make(chan ChatFragment, 16)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			fragment, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out <- ChatFragment{Done: true}
				return
			}
			if err != nil {
				// Streaming already began; surface in-stream instead of
				// truncating silently.
				out <- ChatFragment{Err: domain.NewGenerationError(err)}
				return
			}
			if fragment == "" {
				continue
			}
			out <- ChatFragment{Content: fragment}
		}
	}()

	return out, nil
}

// AnswerOnce drains the stream into a single answer string.
func (s *ChatService) AnswerOnce(ctx context.Context, input ChatInput) (string, error) {
	fragments, err := s.Answer(ctx, input)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for fragment := range fragments {
		if fragment.Err != nil {
			return "", fragment.Err
		}
		b.WriteString(fragment.Content)
	}
	return b.String(), nil
}

// buildPrompt assembles the grounded prompt: retrieved chunks tagged with
// their source titles, the prior history serialized verbatim, then the
// question.
func buildPrompt(input ChatInput, chunks []domain.RetrievedChunk) string {
	contextText := noContextPlaceholder
	if len(chunks) > 0 {
		parts := make([]string, 0, len(chunks))
		for _, c := range chunks {
			parts = append(parts, fmt.Sprintf("Source: %s\n%s", c.SourceTitle, c.Content))
		}
		contextText = strings.Join(parts, contextDelimiter)
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(contextText)

	if len(input.History) > 0 {
		history, err := json.Marshal(input.History)
		if err == nil {
			b.WriteString("\n\nChat History:\n")
			b.Write(history)
		}
	}

	b.WriteString("\n\nUser Question: ")
	b.WriteString(input.Query)
	return b.String()
}
