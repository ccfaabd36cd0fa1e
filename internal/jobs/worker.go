package jobs

import (
	"context"
	"log"
	"time"
)

// Sweeper is implemented by anything that can process a batch of pending
// work in one pass.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// Worker drives a Sweeper on a fixed poll interval. One sweep runs
// immediately on start so documents left behind by a crash are picked up
// without waiting a full interval.
type Worker struct {
	name         string
	sweeper      Sweeper
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

func NewWorker(name string, sweeper Sweeper, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		sweeper:      sweeper,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the worker's polling loop. It blocks until the context is
// cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("%s worker started with poll interval: %v", w.name, w.pollInterval)

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s worker stopped: context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s worker stopped: stop signal received", w.name)
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	if err := w.sweeper.Sweep(ctx); err != nil {
		log.Printf("%s worker sweep error: %v", w.name, err)
	}
}

// Stop gracefully stops the worker and waits for the loop to exit.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("%s worker shutdown complete", w.name)
}
