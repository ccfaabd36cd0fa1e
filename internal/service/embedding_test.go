package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbeddingClient embeds deterministically and can fail selected texts.
// A mutex guards call tracking because EmbedBatch calls concurrently.
type stubEmbeddingClient struct {
	mu       sync.Mutex
	calls    int
	failures map[string]error
}

func newStubEmbeddingClient() *stubEmbeddingClient {
	return &stubEmbeddingClient{failures: make(map[string]error)}
}

func (c *stubEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if err, ok := c.failures[text]; ok {
		return nil, err
	}
	return []float32{float32(len(text))}, nil
}

func (c *stubEmbeddingClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestEmbeddingService_Embed(t *testing.T) {
	client := newStubEmbeddingClient()
	svc := NewEmbeddingService(client, 10)

	embedding, err := svc.Embed(context.Background(), "what is mitosis?")

	require.NoError(t, err)
	assert.Equal(t, []float32{16}, embedding)
}

func TestEmbeddingService_EmbedBatch_EmptyInput(t *testing.T) {
	client := newStubEmbeddingClient()
	svc := NewEmbeddingService(client, 10)

	assert.Nil(t, svc.EmbedBatch(context.Background(), nil))
	assert.Equal(t, 0, client.callCount())
}

func TestEmbeddingService_EmbedBatch_PreservesInputOrder(t *testing.T) {
	client := newStubEmbeddingClient()
	svc := NewEmbeddingService(client, 3)

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk number %d", i)
	}

	embedded := svc.EmbedBatch(context.Background(), texts)

	require.Len(t, embedded, 10)
	for i, item := range embedded {
		assert.Equal(t, i, item.Index)
		assert.Equal(t, texts[i], item.Text)
		assert.NotEmpty(t, item.Embedding)
	}
	assert.Equal(t, 10, client.callCount())
}

// One bad chunk must not sink the whole batch: the failed item is skipped
// and every other item keeps its original index.
func TestEmbeddingService_EmbedBatch_PartialFailure(t *testing.T) {
	client := newStubEmbeddingClient()
	client.failures["bad chunk"] = errors.New("rate limited")
	svc := NewEmbeddingService(client, 2)

	texts := []string{"first chunk", "bad chunk", "third chunk"}
	embedded := svc.EmbedBatch(context.Background(), texts)

	require.Len(t, embedded, 2)
	assert.Equal(t, 0, embedded[0].Index)
	assert.Equal(t, "first chunk", embedded[0].Text)
	assert.Equal(t, 2, embedded[1].Index)
	assert.Equal(t, "third chunk", embedded[1].Text)
}

func TestEmbeddingService_EmbedBatch_AllFail(t *testing.T) {
	client := newStubEmbeddingClient()
	client.failures["a"] = errors.New("down")
	client.failures["b"] = errors.New("down")
	svc := NewEmbeddingService(client, 10)

	embedded := svc.EmbedBatch(context.Background(), []string{"a", "b"})

	assert.Empty(t, embedded)
}

func TestNewEmbeddingService_DefaultsBatchSize(t *testing.T) {
	svc := NewEmbeddingService(newStubEmbeddingClient(), 0)
	assert.Equal(t, 10, svc.batchSize)
}
