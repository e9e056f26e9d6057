package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webcapture/internal/capture"
	"github.com/JakeFAU/webcapture/internal/worker"
)

// TestDispatcherRunStartsWorkers ensures workers begin processing and stop on cancel.
func TestDispatcherRunStartsWorkers(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 4)}
	dispatch := NewPool(worker.Deps{Queue: queue}, worker.Config{Owner: "host-a"}, 3, zap.NewNop())
	if dispatch.Size() != 3 {
		t.Fatalf("expected 3 workers, got %d", dispatch.Size())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-queue.started:
		case <-time.After(time.Second):
			t.Fatalf("worker %d did not begin dequeuing", i)
		}
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

// TestDispatcherRunReturnsWhenRunnersExit covers queue shutdown without a cancel.
func TestDispatcherRunReturnsWhenRunnersExit(t *testing.T) {
	t.Parallel()

	var ran atomic.Int32
	runners := []Runner{countingRunner{&ran}, countingRunner{&ran}}
	dispatch := New(&errorQueue{}, runners, nil)

	done := make(chan struct{})
	go func() {
		dispatch.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not return after runners exited")
	}
	if ran.Load() != 2 {
		t.Fatalf("expected 2 runs, got %d", ran.Load())
	}
}

func TestNewPoolMinimumOneWorker(t *testing.T) {
	t.Parallel()

	dispatch := NewPool(worker.Deps{}, worker.Config{}, 0, nil)
	if dispatch.Size() != 1 {
		t.Fatalf("expected 1 worker, got %d", dispatch.Size())
	}
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	queue := &errorQueue{err: errors.New("boom")}
	dispatch := New(queue, nil, nil)

	err := dispatch.Enqueue(context.Background(), capture.QueueItem{JobID: "job"})
	if err == nil || err.Error() != "queue enqueue: boom" {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

type countingRunner struct {
	n *atomic.Int32
}

func (r countingRunner) Run(context.Context) {
	r.n.Add(1)
}

type blockingQueue struct {
	started chan struct{}
}

func (q *blockingQueue) Enqueue(_ context.Context, _ capture.QueueItem) error {
	return nil
}

func (q *blockingQueue) Dequeue(ctx context.Context) (capture.QueueItem, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return capture.QueueItem{}, fmt.Errorf("blocking dequeue canceled: %w", ctx.Err())
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, capture.QueueItem) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (capture.QueueItem, error) {
	return capture.QueueItem{}, capture.ErrQueueClosed
}
