package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockOpenAIAPI) CreateCompletionStream(ctx context.Context, system, prompt string) (CompletionStream, error) {
	args := m.Called(ctx, system, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(CompletionStream), args.Error(1)
}

func (m *MockOpenAIAPI) CreateVisionCompletion(ctx context.Context, prompt string, imageDataURL string) (string, error) {
	args := m.Called(ctx, prompt, imageDataURL)
	return args.String(0), args.Error(1)
}

// fakeStream replays fragments then io.EOF.
type fakeStream struct {
	fragments []string
	pos       int
	closed    bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	fragment := s.fragments[s.pos]
	s.pos++
	return fragment, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	ctx := context.Background()
	text := "Photosynthesis converts light energy to chemical energy."
	expectedEmbedding := make([]float32, 1536)
	for i := range expectedEmbedding {
		expectedEmbedding[i] = float32(i) * 0.001
	}

	mockAPI.On("CreateEmbeddings", ctx, text).Return(expectedEmbedding, nil)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.NoError(t, err)
	assert.Len(t, embedding, 1536)
	assert.Equal(t, expectedEmbedding, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	embedding, err := client.GenerateEmbedding(context.Background(), "")

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	_, err := client.GenerateEmbedding(context.Background(), "some text")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create embedding")
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(make([]float32, 768), nil)

	_, err := client.GenerateEmbedding(context.Background(), "some text")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClient_StreamCompletion_EmptyPrompt(t *testing.T) {
	client := NewClient("")

	_, err := client.StreamCompletion(context.Background(), "system", "")

	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_Complete_DrainsStream(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}
	stream := &fakeStream{fragments: []string{"Hello ", "students", "!"}}

	mockAPI.On("CreateCompletionStream", mock.Anything, "system prompt", "user prompt").Return(stream, nil)

	out, err := client.Complete(context.Background(), "system prompt", "user prompt")

	require.NoError(t, err)
	assert.Equal(t, "Hello students!", out)
	assert.True(t, stream.closed)
}

func TestClient_Transcribe_EncodesDataURL(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	data := []byte("image bytes")
	expectedURL := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(data))
	mockAPI.On("CreateVisionCompletion", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return prompt != ""
	}), expectedURL).Return("transcribed slide text", nil)

	text, err := client.Transcribe(context.Background(), data, "image/png")

	require.NoError(t, err)
	assert.Equal(t, "transcribed slide text", text)
	mockAPI.AssertExpectations(t)
}

func TestClient_Transcribe_EmptyData(t *testing.T) {
	client := NewClient("")

	_, err := client.Transcribe(context.Background(), nil, "image/png")

	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_Transcribe_DefaultsMimeType(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	data := []byte{0x01, 0x02}
	expectedURL := fmt.Sprintf("data:application/octet-stream;base64,%s", base64.StdEncoding.EncodeToString(data))
	mockAPI.On("CreateVisionCompletion", mock.Anything, mock.Anything, expectedURL).Return("text", nil)

	_, err := client.Transcribe(context.Background(), data, "")

	require.NoError(t, err)
	mockAPI.AssertExpectations(t)
}

func TestNewClientFromEnv_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewClientFromEnv()

	assert.Equal(t, ErrNoAPIKey, err)
}
