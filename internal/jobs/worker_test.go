package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mwanachuomind/backend/internal/domain"
)

// MockSweeper is a mock implementation of Sweeper
type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) Sweep(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockQueuedDocumentRepository is a mock implementation of QueuedDocumentRepository
type MockQueuedDocumentRepository struct {
	mock.Mock
}

func (m *MockQueuedDocumentRepository) ListByStatus(ctx context.Context, status domain.DocumentStatus, limit int) ([]*domain.Document, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

// MockDocumentProcessor is a mock implementation of DocumentProcessor
type MockDocumentProcessor struct {
	mock.Mock
}

func (m *MockDocumentProcessor) Process(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockSweeper := new(MockSweeper)
	mockSweeper.On("Sweep", mock.Anything).Return(nil)

	worker := NewWorker("test", mockSweeper, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockSweeper.AssertCalled(t, "Sweep", mock.Anything)
}

// TestWorker_SweepsImmediatelyOnStart verifies the startup sweep happens
// before the first tick.
func TestWorker_SweepsImmediatelyOnStart(t *testing.T) {
	mockSweeper := new(MockSweeper)
	mockSweeper.On("Sweep", mock.Anything).Return(nil)

	worker := NewWorker("test", mockSweeper, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	mockSweeper.AssertNumberOfCalls(t, "Sweep", 1)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockSweeper := new(MockSweeper)
	mockSweeper.On("Sweep", mock.Anything).Return(nil)

	worker := NewWorker("test", mockSweeper, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}

	mockSweeper.AssertCalled(t, "Sweep", mock.Anything)
}

func TestDocumentWorker_Sweep_NoQueuedDocuments(t *testing.T) {
	mockRepo := new(MockQueuedDocumentRepository)
	mockProcessor := new(MockDocumentProcessor)

	mockRepo.On("ListByStatus", mock.Anything, domain.DocumentStatusQueued, DefaultSweepBatch).
		Return([]*domain.Document{}, nil)

	worker := NewDocumentWorker(mockRepo, mockProcessor)
	err := worker.Sweep(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockProcessor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestDocumentWorker_Sweep_ProcessesQueuedDocuments(t *testing.T) {
	mockRepo := new(MockQueuedDocumentRepository)
	mockProcessor := new(MockDocumentProcessor)

	docs := []*domain.Document{
		{ID: "doc-1", Status: domain.DocumentStatusQueued},
		{ID: "doc-2", Status: domain.DocumentStatusQueued},
	}
	mockRepo.On("ListByStatus", mock.Anything, domain.DocumentStatusQueued, DefaultSweepBatch).Return(docs, nil)
	mockProcessor.On("Process", mock.Anything, "doc-1").Return(nil)
	mockProcessor.On("Process", mock.Anything, "doc-2").Return(nil)

	worker := NewDocumentWorker(mockRepo, mockProcessor)
	err := worker.Sweep(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockProcessor.AssertExpectations(t)
}

// One failing document must not block the rest of the sweep.
func TestDocumentWorker_Sweep_ContinuesPastFailures(t *testing.T) {
	mockRepo := new(MockQueuedDocumentRepository)
	mockProcessor := new(MockDocumentProcessor)

	docs := []*domain.Document{
		{ID: "doc-1", Status: domain.DocumentStatusQueued},
		{ID: "doc-2", Status: domain.DocumentStatusQueued},
	}
	mockRepo.On("ListByStatus", mock.Anything, domain.DocumentStatusQueued, DefaultSweepBatch).Return(docs, nil)
	mockProcessor.On("Process", mock.Anything, "doc-1").Return(errors.New("extraction failed"))
	mockProcessor.On("Process", mock.Anything, "doc-2").Return(nil)

	worker := NewDocumentWorker(mockRepo, mockProcessor)
	err := worker.Sweep(context.Background())

	assert.NoError(t, err)
	mockProcessor.AssertExpectations(t)
}

func TestDocumentWorker_Sweep_ListFailure(t *testing.T) {
	mockRepo := new(MockQueuedDocumentRepository)
	mockProcessor := new(MockDocumentProcessor)

	mockRepo.On("ListByStatus", mock.Anything, domain.DocumentStatusQueued, DefaultSweepBatch).
		Return(nil, errors.New("connection refused"))

	worker := NewDocumentWorker(mockRepo, mockProcessor)
	err := worker.Sweep(context.Background())

	assert.Error(t, err)
	mockProcessor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}
