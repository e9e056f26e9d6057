package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcapture/internal/capture"
	queuememory "github.com/JakeFAU/webcapture/internal/queue/memory"
	"github.com/JakeFAU/webcapture/internal/storage/memory"
)

type mutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type recordingQueue struct {
	mu    sync.Mutex
	items []capture.QueueItem
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, item capture.QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, item)
	return nil
}

func (q *recordingQueue) ids() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, item.JobID)
	}
	return out
}

var start = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	_, err := store.GetOrCreateWebsite(context.Background(), capture.Website{ID: "site", Domain: "example.com"})
	require.NoError(t, err)
	return store
}

func addJob(t *testing.T, store *memory.Store, id string, created time.Time) {
	t.Helper()
	require.NoError(t, store.CreateJob(context.Background(), capture.Job{
		ID: id, WebsiteID: "site", Status: capture.JobStatusPending,
		DeviceTypes: []string{"desktop"}, CreatedAt: created,
	}))
}

func TestRunOnceFailsExpiredLeases(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	addJob(t, store, "stuck", start)
	addJob(t, store, "alive", start)
	ok, err := store.ClaimJob(ctx, "stuck", "host/0", start.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.ClaimJob(ctx, "alive", "host/1", start.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.UpdateProgress(ctx, "stuck", 50, start.Add(time.Minute)))

	clock := &mutableClock{now: start.Add(5 * time.Minute)}
	sw := New(store, &recordingQueue{}, clock, Config{}, zap.NewNop())

	res, err := sw.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Abandoned: 1}, res)

	stuck, err := store.GetJob(ctx, "stuck")
	require.NoError(t, err)
	require.Equal(t, capture.JobStatusFailed, stuck.Status)
	require.Equal(t, AbandonedMessage, *stuck.Error)
	require.Equal(t, 50, stuck.Progress)
	require.Nil(t, stuck.CompletedAt)

	alive, err := store.GetJob(ctx, "alive")
	require.NoError(t, err)
	require.Equal(t, capture.JobStatusProcessing, alive.Status)

	res, err = sw.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{}, res, "a failed job is never swept twice")
}

func TestRunOnceRequeuesStalePending(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	addJob(t, store, "old", start)
	addJob(t, store, "fresh", start.Add(4*time.Minute))
	queue := &recordingQueue{}
	clock := &mutableClock{now: start.Add(5 * time.Minute)}
	sw := New(store, queue, clock, Config{PendingGrace: 2 * time.Minute}, nil)

	res, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Requeued: 1}, res)
	require.Equal(t, []string{"old"}, queue.ids())

	old, err := store.GetJob(context.Background(), "old")
	require.NoError(t, err)
	require.Equal(t, capture.JobStatusPending, old.Status)
}

func TestRunOnceStopsRequeueOnFullQueue(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	addJob(t, store, "a", start)
	addJob(t, store, "b", start)
	clock := &mutableClock{now: start.Add(time.Hour)}
	sw := New(store, &recordingQueue{err: context.DeadlineExceeded}, clock, Config{}, nil)

	res, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.Requeued)
}

func TestRunOnceWithoutQueueSkipsRequeue(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	addJob(t, store, "old", start)
	clock := &mutableClock{now: start.Add(time.Hour)}
	sw := New(store, nil, clock, Config{}, nil)

	res, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{}, res)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	addJob(t, store, "old", start)
	queue := &recordingQueue{}
	clock := &mutableClock{now: start.Add(time.Hour)}
	sw := New(store, queue, clock, Config{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(queue.ids()) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestRunOnceSkipsJobsAlreadyQueued(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	addJob(t, store, "waiting", start)
	queue := queuememory.NewQueue(8)
	require.NoError(t, queue.Enqueue(ctx, capture.QueueItem{JobID: "waiting", Attempt: 1}))

	clock := &mutableClock{now: start.Add(3 * time.Minute)}
	sw := New(store, queue, clock, Config{PendingGrace: 2 * time.Minute}, nil)

	for i := 0; i < 3; i++ {
		res, err := sw.RunOnce(ctx)
		require.NoError(t, err)
		require.Equal(t, Result{}, res)
	}
	require.Equal(t, 1, queue.Len())

	// Once a worker has taken it, a still-pending job is eligible again.
	_, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	res, err := sw.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Requeued: 1}, res)
	require.Equal(t, 1, queue.Len())
}
