// Package memory provides the bounded in-process job queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/webcapture/internal/capture"
)

// ErrClosed is returned once the queue has been closed.
var ErrClosed = capture.ErrQueueClosed

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch chan capture.QueueItem
	// closeMu is held for reading by in-flight enqueues so Close never
	// closes the channel under a sender.
	closeMu sync.RWMutex
	closed  bool

	// waiting holds the ids buffered in ch so a job is queued at most once.
	waitingMu sync.Mutex
	waiting   map[string]struct{}
}

var _ capture.Queue = (*Queue)(nil)

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch:      make(chan capture.QueueItem, capacity),
		waiting: make(map[string]struct{}),
	}
}

// Enqueue pushes a job into the queue or returns if the context ends. A full
// queue blocks until space frees up or ctx is done. A job id that is still
// waiting is rejected with capture.ErrAlreadyQueued.
func (q *Queue) Enqueue(ctx context.Context, job capture.QueueItem) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	if !q.reserve(job.JobID) {
		return fmt.Errorf("job %s: %w", job.JobID, capture.ErrAlreadyQueued)
	}
	select {
	case <-ctx.Done():
		q.release(job.JobID)
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- job:
		return nil
	}
}

// Queued reports whether jobID is waiting to be dequeued.
func (q *Queue) Queued(jobID string) bool {
	q.waitingMu.Lock()
	defer q.waitingMu.Unlock()
	_, ok := q.waiting[jobID]
	return ok
}

func (q *Queue) reserve(jobID string) bool {
	q.waitingMu.Lock()
	defer q.waitingMu.Unlock()
	if _, ok := q.waiting[jobID]; ok {
		return false
	}
	q.waiting[jobID] = struct{}{}
	return true
}

func (q *Queue) release(jobID string) {
	q.waitingMu.Lock()
	defer q.waitingMu.Unlock()
	delete(q.waiting, jobID)
}

// Dequeue pops the next job, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (capture.QueueItem, error) {
	select {
	case <-ctx.Done():
		return capture.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job, ok := <-q.ch:
		if !ok {
			return capture.QueueItem{}, ErrClosed
		}
		q.release(job.JobID)
		return job, nil
	}
}

// Len reports the number of buffered items.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
