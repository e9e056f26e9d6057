// Package dispatcher manages worker fan-out over the job queue.
package dispatcher

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/webcapture/internal/capture"
	"github.com/JakeFAU/webcapture/internal/worker"
)

// Runner is a queue consumer that blocks until its context ends or its
// queue closes.
type Runner interface {
	Run(ctx context.Context)
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   capture.Queue
	runners []Runner
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue capture.Queue, runners []Runner, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		runners: runners,
		logger:  logger,
	}
}

// NewPool builds n workers sharing deps. Each gets its own lease owner,
// "<base>/<index>", where base defaults to the hostname.
func NewPool(deps worker.Deps, cfg worker.Config, n int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n < 1 {
		n = 1
	}
	base := cfg.Owner
	if base == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "webcapture"
		}
		base = host
	}
	runners := make([]Runner, 0, n)
	for i := 0; i < n; i++ {
		wcfg := cfg
		wcfg.Owner = fmt.Sprintf("%s/%d", base, i)
		runners = append(runners, worker.New(deps, wcfg, logger))
	}
	return New(deps.Queue, runners, logger)
}

// Size reports how many workers the dispatcher runs.
func (d *Dispatcher) Size() int {
	return len(d.runners)
}

// Run starts all workers and blocks until every one of them has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("starting workers", zap.Int("count", len(d.runners)))
	var wg sync.WaitGroup
	for _, r := range d.runners {
		wg.Add(1)
		go func(r Runner) {
			defer wg.Done()
			r.Run(ctx)
		}(r)
	}
	wg.Wait()
	d.logger.Info("workers stopped")
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item capture.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
