package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Queue errors. ErrQueueFull is returned with capacity detail; callers treat
// it as backpressure, not task loss, because tasks are persisted before they
// are enqueued.
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// TaskQueue is the buffered hand-off between task submission and the worker
// pool. Enqueue and Close may be called concurrently; the mutex prevents a
// send racing the channel close during shutdown.
type TaskQueue struct {
	mu     sync.Mutex
	tasks  chan Task
	logger *slog.Logger
	closed bool
}

var (
	_ TaskQueueReader = (*TaskQueue)(nil)
	_ TaskQueueWriter = (*TaskQueue)(nil)
)

// NewTaskQueue creates a task queue buffering up to size tasks.
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	return &TaskQueue{
		tasks:  make(chan Task, size),
		logger: logger,
	}
}

// Enqueue places a task on the queue without blocking. A full buffer returns
// ErrQueueFull immediately rather than stalling the caller.
func (q *TaskQueue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		q.logger.Debug("task enqueued",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"queue_len", len(q.tasks),
			"queue_cap", cap(q.tasks))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.tasks))
	}
}

// Close rejects further submissions and closes the channel so workers drain
// the remaining buffer and exit. Safe to call more than once.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
	q.logger.Info("task queue closed")
}

// GetChannel exposes the consume side of the queue.
func (q *TaskQueue) GetChannel() <-chan Task {
	return q.tasks
}
