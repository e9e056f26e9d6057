package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const idlePollInterval = 50 * time.Millisecond

// pageMonitor tracks in-flight requests for network-idle detection and the
// status of the main document response.
type pageMonitor struct {
	mu           sync.Mutex
	now          func() time.Time
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	status       int
	sawDocument  bool
}

func newPageMonitor(now func() time.Time) *pageMonitor {
	return &pageMonitor{
		now:          now,
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: now(),
	}
}

func (m *pageMonitor) handleEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		m.started(e.RequestID)
	case *network.EventLoadingFinished:
		m.finished(e.RequestID)
	case *network.EventLoadingFailed:
		m.finished(e.RequestID)
	case *network.EventResponseReceived:
		m.response(e)
	}
}

func (m *pageMonitor) started(id network.RequestID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight[id] = struct{}{}
	m.lastActivity = m.now()
}

func (m *pageMonitor) finished(id network.RequestID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, id)
	m.lastActivity = m.now()
}

// response records the first document response; redirects arrive as
// separate requests so the first document is the navigation target's.
func (m *pageMonitor) response(e *network.EventResponseReceived) {
	if e.Type != network.ResourceTypeDocument || e.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sawDocument {
		return
	}
	m.sawDocument = true
	m.status = int(e.Response.Status)
}

// idle reports whether nothing has been in flight for at least window.
func (m *pageMonitor) idle(window time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight) == 0 && m.now().Sub(m.lastActivity) >= window
}

func (m *pageMonitor) documentStatus() *int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.sawDocument {
		return nil
	}
	status := m.status
	return &status
}

func (m *pageMonitor) waitIdle(ctx context.Context, window time.Duration) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		if m.idle(window) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for network idle: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (m *pageMonitor) waitIdleAction(window time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return m.waitIdle(ctx, window)
	})
}
