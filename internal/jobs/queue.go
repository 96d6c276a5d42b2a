// Package jobs runs upload processing out-of-band: an in-memory queue feeds
// a worker pool, and the Processor drives each job through its state
// machine. Job state lives in Postgres, not in the queue; the queue only
// distributes work.
package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Task is the unit of work handed to the worker pool after the upload
// endpoint has responded. Everything else the job needs is loaded from the
// database by the processor.
type Task struct {
	JobID    uuid.UUID
	CardID   uuid.UUID
	FilePath string
}

// Handler processes one task. It owns job resolution end to end; the queue
// never retries.
type Handler func(ctx context.Context, task *Task)

// Publisher enqueues tasks for asynchronous processing. The in-memory Queue
// is the single-instance implementation; a broker-backed one can replace it
// for multi-instance deployments.
type Publisher interface {
	Publish(ctx context.Context, task *Task) error
	Close() error
}

// Queue is an in-memory task queue backed by a channel and a fixed worker
// pool. Safe for concurrent use.
type Queue struct {
	tasks     chan *Task
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	workers   int
	closed    bool
}

// NewQueue creates a queue. bufferSize bounds how many tasks can wait before
// Publish blocks; workers is the number of concurrent consumers.
func NewQueue(bufferSize, workers int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		tasks:     make(chan *Task, bufferSize),
		closeChan: make(chan struct{}),
		workers:   workers,
	}
}

// Publish enqueues a task, honoring context cancellation while the buffer is
// full.
func (q *Queue) Publish(ctx context.Context, task *Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start launches the worker pool. Each worker calls handler for every task
// it receives until the context is cancelled or the queue stops.
func (q *Queue) Start(ctx context.Context, handler Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case task := <-q.tasks:
			if task == nil {
				return
			}
			handler(ctx, task)
		}
	}
}

// Stop closes the queue and waits for in-flight tasks, up to the context
// deadline.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ Publisher = (*Queue)(nil)
