package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/webcapture/internal/capture"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan capture.QueueItem, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	job := capture.QueueItem{JobID: "job-1"}
	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.JobID != "job-1" {
			t.Fatalf("expected job-1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := qDequeue.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	qEnqueue := NewQueue(1)
	if err := qEnqueue.Enqueue(context.Background(), capture.QueueItem{JobID: "primed"}); err != nil {
		t.Fatalf("failed to prime enqueue queue: %v", err)
	}
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := qEnqueue.Enqueue(ctx, capture.QueueItem{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	if _, err := q.Dequeue(context.Background()); err == nil || err.Error() != "queue closed" {
		t.Fatalf("expected queue closed error, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
	if err := q.Enqueue(context.Background(), capture.QueueItem{JobID: "late"}); err != ErrClosed {
		t.Fatalf("expected ErrClosed on enqueue, got %v", err)
	}
}

func TestQueueFullHonorsTimeout(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	if err := q.Enqueue(context.Background(), capture.QueueItem{JobID: "a"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected len 1, got %d", q.Len())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, capture.QueueItem{JobID: "b"}); err == nil {
		t.Fatal("expected full queue to time out")
	}
}

func TestQueueRejectsWaitingDuplicate(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	ctx := context.Background()
	if err := q.Enqueue(ctx, capture.QueueItem{JobID: "job-1"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if !q.Queued("job-1") {
		t.Fatal("expected job-1 to be waiting")
	}
	if err := q.Enqueue(ctx, capture.QueueItem{JobID: "job-1", Attempt: 2}); !errors.Is(err, capture.ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected one buffered item, got %d", q.Len())
	}

	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if q.Queued("job-1") {
		t.Fatal("dequeued job should no longer be waiting")
	}
	if err := q.Enqueue(ctx, capture.QueueItem{JobID: "job-1", Attempt: 2}); err != nil {
		t.Fatalf("re-enqueue after dequeue: %v", err)
	}
}

func TestQueueCancelledEnqueueReleasesID(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	if err := q.Enqueue(context.Background(), capture.QueueItem{JobID: "a"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, capture.QueueItem{JobID: "b"}); err == nil {
		t.Fatal("expected full queue to time out")
	}
	if q.Queued("b") {
		t.Fatal("timed-out enqueue must not leave its id reserved")
	}
}
