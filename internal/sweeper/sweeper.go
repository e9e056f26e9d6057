// Package sweeper reconciles jobs that no worker will finish on its own:
// processing jobs whose lease lapsed and pending jobs that never reached the
// queue.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webcapture/internal/capture"
	"github.com/JakeFAU/webcapture/internal/metrics"
)

// AbandonedMessage is recorded on jobs whose worker lease expired.
const AbandonedMessage = "capture abandoned: lease expired"

const (
	defaultInterval     = time.Minute
	defaultPendingGrace = 2 * time.Minute
	defaultBatchSize    = 100
	enqueueTimeout      = 5 * time.Second
)

// Config controls sweep cadence.
//   - Interval: time between passes (default 1m).
//   - PendingGrace: how long a job may stay pending before it is re-enqueued (default 2m).
//   - BatchSize: max jobs handled per category per pass (default 100).
type Config struct {
	Interval     time.Duration
	PendingGrace time.Duration
	BatchSize    int
}

// Enqueuer accepts job ids for background processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, item capture.QueueItem) error
}

// Result summarizes one pass.
type Result struct {
	Abandoned int
	Requeued  int
}

// Sweeper periodically repairs stuck jobs.
type Sweeper struct {
	store  capture.JobStore
	queue  Enqueuer
	clock  capture.Clock
	cfg    Config
	logger *zap.Logger
}

// New constructs a Sweeper. A nil queue disables re-enqueueing.
func New(store capture.JobStore, queue Enqueuer, clock capture.Clock, cfg Config, logger *zap.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.PendingGrace <= 0 {
		cfg.PendingGrace = defaultPendingGrace
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, queue: queue, clock: clock, cfg: cfg, logger: logger}
}

// Run sweeps once immediately and then every Interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single reconciliation pass.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	abandoned, err := s.failExpired(ctx)
	res.Abandoned = abandoned
	if err != nil {
		return res, err
	}
	requeued, err := s.requeuePending(ctx)
	res.Requeued = requeued
	if err != nil {
		return res, err
	}
	if res.Abandoned > 0 || res.Requeued > 0 {
		s.logger.Info("sweep reconciled jobs",
			zap.Int("abandoned", res.Abandoned),
			zap.Int("requeued", res.Requeued),
		)
	}
	return res, nil
}

func (s *Sweeper) failExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	jobs, err := s.store.ListExpiredLeases(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired leases: %w", err)
	}
	failed := 0
	for _, job := range jobs {
		ok, err := s.store.FailExpiredJob(ctx, job.ID, now, AbandonedMessage)
		if err != nil {
			return failed, fmt.Errorf("fail expired job %s: %w", job.ID, err)
		}
		if !ok {
			// Renewed or finished since the listing.
			continue
		}
		failed++
		metrics.ObserveJob(string(capture.JobStatusFailed))
		s.logger.Warn("failed abandoned job",
			zap.String("job_id", job.ID),
			zap.String("lease_owner", job.LeaseOwner),
		)
	}
	metrics.ObserveReconciled("abandoned", failed)
	return failed, nil
}

func (s *Sweeper) requeuePending(ctx context.Context) (int, error) {
	if s.queue == nil {
		return 0, nil
	}
	now := s.clock.Now()
	jobs, err := s.store.ListPendingBefore(ctx, now.Add(-s.cfg.PendingGrace), s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	requeued := 0
	for _, job := range jobs {
		enqueueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
		err := s.queue.Enqueue(enqueueCtx, capture.QueueItem{JobID: job.ID, Attempt: 2, Submitted: now.Unix()})
		cancel()
		if errors.Is(err, capture.ErrAlreadyQueued) {
			continue
		}
		if err != nil {
			// Saturated or closed queue: the rest wait for the next pass.
			if !errors.Is(err, capture.ErrQueueClosed) && ctx.Err() == nil {
				s.logger.Warn("requeue pending job failed", zap.String("job_id", job.ID), zap.Error(err))
			}
			break
		}
		requeued++
		s.logger.Debug("requeued pending job", zap.String("job_id", job.ID))
	}
	metrics.ObserveReconciled("requeued", requeued)
	return requeued, nil
}
