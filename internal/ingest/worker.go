package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var (
	ErrQueueFull     = errors.New("ingest queue is full")
	ErrWorkerStopped = errors.New("ingest worker stopped")
)

// TaskError is reported on the Errors channel for a failed background ingestion.
type TaskError struct {
	Request Request
	Err     error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("ingest %s for user %s: %v", e.Request.Filename, e.Request.UserID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

type WorkerConfig struct {
	Workers   int
	QueueSize int
}

// Worker runs ingestion in the background. Submitters never wait for completion.
type Worker struct {
	ingester Ingester
	workers  int
	queue    chan Request
	errs     chan error

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func NewWorker(ingester Ingester, cfg WorkerConfig) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &Worker{
		ingester: ingester,
		workers:  cfg.Workers,
		queue:    make(chan Request, cfg.QueueSize),
		errs:     make(chan error, cfg.QueueSize),
	}
}

// Start launches the workers. Tasks run with a context derived from ctx only for
// values such as the logger; cancelling ctx never aborts a running ingestion.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	base := context.WithoutCancel(ctx)
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop(base, i)
	}
}

func (w *Worker) loop(ctx context.Context, id int) {
	defer w.wg.Done()
	logger := logutil.GetLogger(ctx).With(zap.Int("worker", id))
	for req := range w.queue {
		if _, err := w.ingester.Ingest(ctx, req); err != nil {
			logger.Warn("background ingestion failed",
				zap.String("user_id", req.UserID),
				zap.String("filename", req.Filename),
				zap.Error(err))
			w.report(&TaskError{Request: req, Err: err})
		}
	}
}

func (w *Worker) report(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

// Submit enqueues req without blocking.
func (w *Worker) Submit(req Request) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrWorkerStopped
	}
	select {
	case w.queue <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Errors reports failed tasks. Errors are dropped when the channel is full.
func (w *Worker) Errors() <-chan error {
	return w.errs
}

// Stop refuses new tasks, finishes the queued ones and waits for the workers.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	if !w.started {
		w.started = true
		for i := 0; i < w.workers; i++ {
			w.wg.Add(1)
			go w.loop(context.Background(), i)
		}
	}
	w.mu.Unlock()
	w.wg.Wait()
}
