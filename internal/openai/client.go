package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the model used for generating embeddings
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from text-embedding-3-small
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the model used for grounded answer generation
	DefaultChatModel = openai.GPT4oMini
	// DefaultVisionModel is the model used for the OCR-style extraction fallback
	DefaultVisionModel = openai.GPT4oMini
)

// transcriptionPrompt instructs the model to act as an OCR pass, nothing more.
const transcriptionPrompt = "Transcribe all visible text in this document faithfully. " +
	"Preserve headings, lists and tables as plain text. Return only the transcription."

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when the API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// CompletionStream yields incremental answer fragments. Recv returns io.EOF
// when generation completes.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// API defines the subset of the inference service the pipeline consumes.
type API interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
	CreateCompletionStream(ctx context.Context, system, prompt string) (CompletionStream, error)
	CreateVisionCompletion(ctx context.Context, prompt string, imageDataURL string) (string, error)
}

// Client wraps the OpenAI API for embeddings, streaming completions and
// multimodal transcription.
type Client struct {
	api        API
	dimensions int
}

type Config struct {
	APIKey              string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
	VisionModel         string
}

type openAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
	visionModel    string
}

func newOpenAIAdapter(cfg Config) *openAIAdapter {
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = DefaultVisionModel
	}
	return &openAIAdapter{
		client:         openai.NewClient(cfg.APIKey),
		embeddingModel: openai.EmbeddingModel(embeddingModel),
		chatModel:      chatModel,
		visionModel:    visionModel,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *openAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateCompletionStream starts a streaming chat completion.
func (a *openAIAdapter) CreateCompletionStream(ctx context.Context, system, prompt string) (CompletionStream, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    a.chatModel,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	return &chatStream{inner: stream}, nil
}

// CreateVisionCompletion sends a prompt plus an inline image attachment and
// returns the full response text.
func (a *openAIAdapter) CreateVisionCompletion(ctx context.Context, prompt string, imageDataURL string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageDataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// chatStream adapts the SDK stream to CompletionStream.
type chatStream struct {
	inner *openai.ChatCompletionStream
}

func (s *chatStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *chatStream) Close() error {
	return s.inner.Close()
}

// NewClient creates a new client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:        newOpenAIAdapter(cfg),
		dimensions: dimensions,
	}
}

// NewClientFromEnv creates a new client using the OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(embedding))
	}

	return embedding, nil
}

// StreamCompletion starts a streaming answer generation for the given prompt.
func (c *Client) StreamCompletion(ctx context.Context, system, prompt string) (CompletionStream, error) {
	if prompt == "" {
		return nil, ErrEmptyText
	}
	return c.api.CreateCompletionStream(ctx, system, prompt)
}

// Complete runs a non-streaming completion by draining the stream.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	stream, err := c.StreamCompletion(ctx, system, prompt)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var out []byte
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return string(out), nil
		}
		if err != nil {
			return "", err
		}
		out = append(out, fragment...)
	}
}

// Transcribe performs the multimodal OCR-style extraction fallback: the raw
// document bytes are sent inline and the model returns the visible text.
func (c *Client) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyText
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	text, err := c.api.CreateVisionCompletion(ctx, transcriptionPrompt, dataURL)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe document: %w", err)
	}
	return text, nil
}
