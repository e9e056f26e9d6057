package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/webcapture/internal/capture"
	"github.com/JakeFAU/webcapture/internal/storage/memory"
)

// recordingStore records every progress value the worker persists.
type recordingStore struct {
	*memory.Store
	mu       sync.Mutex
	progress []int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.NewStore()}
}

func (s *recordingStore) UpdateProgress(ctx context.Context, id string, progress int, lease time.Time) error {
	s.mu.Lock()
	s.progress = append(s.progress, progress)
	s.mu.Unlock()
	return s.Store.UpdateProgress(ctx, id, progress, lease)
}

func (s *recordingStore) trajectory() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.progress...)
}

type fakeExecutor struct {
	mu       sync.Mutex
	failures map[string]error
	titles   map[string]string
	requests []capture.TaskRequest
	block    chan struct{}
}

func (f *fakeExecutor) Capture(ctx context.Context, req capture.TaskRequest) (capture.TaskResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return capture.TaskResult{}, capture.NewCaptureError(req.Device.Label, ctx.Err())
		}
	}
	if err, ok := f.failures[req.Device.Label]; ok {
		return capture.TaskResult{}, capture.NewCaptureError(req.Device.Label, err)
	}
	title := f.titles[req.Device.Label]
	status := 200
	return capture.TaskResult{
		Title:      title,
		Links:      []string{"https://example.com/about"},
		Screenshot: []byte("png-" + req.Device.Label),
		Thumbnail:  []byte("thumb-" + req.Device.Label),
		StatusCode: &status,
		Metadata: capture.ScreenshotMetadata{
			Title:      title,
			URL:        req.URL,
			StatusCode: &status,
			Links:      []string{"https://example.com/about"},
		},
	}, nil
}

func (f *fakeExecutor) calls() []capture.TaskRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capture.TaskRequest(nil), f.requests...)
}

// flakyBlobs fails writes under failPrefix and records deletes.
type flakyBlobs struct {
	*memory.BlobStore
	failPrefix string
	mu         sync.Mutex
	deleted    []string
}

func (b *flakyBlobs) PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	if b.failPrefix != "" && strings.HasPrefix(path, b.failPrefix) {
		return "", errors.New("bucket unavailable")
	}
	return b.BlobStore.PutObject(ctx, path, contentType, r)
}

func (b *flakyBlobs) DeleteObject(ctx context.Context, path string) error {
	b.mu.Lock()
	b.deleted = append(b.deleted, path)
	b.mu.Unlock()
	return b.BlobStore.DeleteObject(ctx, path)
}

type fakeHasher struct{}

func (fakeHasher) Hash(data []byte) (string, error) {
	return fmt.Sprintf("len:%d", len(data)), nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%03d", g.n), nil
}

type fakeQueue struct {
	items chan capture.QueueItem
}

func (q *fakeQueue) Enqueue(_ context.Context, item capture.QueueItem) error {
	q.items <- item
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (capture.QueueItem, error) {
	select {
	case <-ctx.Done():
		return capture.QueueItem{}, ctx.Err()
	case item, ok := <-q.items:
		if !ok {
			return capture.QueueItem{}, capture.ErrQueueClosed
		}
		return item, nil
	}
}

// fakePacer records the domains it paced and optionally refuses.
type fakePacer struct {
	mu      sync.Mutex
	domains []string
	err     error
}

func (p *fakePacer) Wait(_ context.Context, domain string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.domains = append(p.domains, domain)
	return p.err
}

func (p *fakePacer) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.domains...)
}
