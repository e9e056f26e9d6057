// Package intake validates capture requests, records them as pending jobs
// and hands them to the work queue.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webcapture/internal/capture"
)

const defaultEnqueueTimeout = 5 * time.Second

// Enqueuer accepts job ids for background processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, item capture.QueueItem) error
}

// Request is a capture submission. Nil flags take their defaults: full page
// on, dynamic content off.
type Request struct {
	URL         string
	DeviceTypes []string
	FullPage    *bool
	Dynamic     *bool
}

// Service creates jobs and enqueues them.
type Service struct {
	store          capture.Store
	queue          Enqueuer
	ids            capture.IDGenerator
	clock          capture.Clock
	enqueueTimeout time.Duration
	logger         *zap.Logger
}

// New constructs a Service.
func New(store capture.Store, queue Enqueuer, ids capture.IDGenerator, clock capture.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:          store,
		queue:          queue,
		ids:            ids,
		clock:          clock,
		enqueueTimeout: defaultEnqueueTimeout,
		logger:         logger,
	}
}

// Submit validates req, records a pending job and enqueues it without
// waiting for the capture. A full queue is not an error: the job stays
// pending and the sweeper re-enqueues it.
func (s *Service) Submit(ctx context.Context, req Request) (capture.Job, error) {
	if !capture.ValidateURL(req.URL) {
		return capture.Job{}, &capture.ValidationError{Field: "url", Reason: "must include a scheme and host"}
	}
	normalized := capture.NormalizeURL(req.URL)
	domain := capture.ExtractDomain(req.URL)

	website, err := s.website(ctx, domain, capture.BaseURL(normalized))
	if err != nil {
		return capture.Job{}, err
	}

	jobID, err := s.ids.NewID()
	if err != nil {
		return capture.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	now := s.clock.Now()
	job := capture.Job{
		ID:             jobID,
		WebsiteID:      website.ID,
		URL:            normalized,
		Status:         capture.JobStatusPending,
		DeviceTypes:    append([]string(nil), req.DeviceTypes...),
		FullPage:       boolOrDefault(req.FullPage, true),
		DynamicContent: boolOrDefault(req.Dynamic, false),
		CreatedAt:      now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return capture.Job{}, fmt.Errorf("create job: %w", err)
	}

	logger := s.logger.With(zap.String("job_id", job.ID), zap.String("url", job.URL))
	queueCtx, cancel := context.WithTimeout(ctx, s.enqueueTimeout)
	defer cancel()
	item := capture.QueueItem{JobID: job.ID, Attempt: 1, Submitted: now.Unix()}
	if err := s.queue.Enqueue(queueCtx, item); err != nil {
		if errors.Is(err, capture.ErrQueueClosed) {
			logger.Warn("queue closed; job left pending", zap.Error(err))
		} else {
			logger.Warn("enqueue failed; job left pending for the sweeper", zap.Error(err))
		}
		return job, nil
	}
	logger.Info("capture submitted", zap.Strings("devices", job.DeviceTypes))
	return job, nil
}

func (s *Service) website(ctx context.Context, domain, baseURL string) (capture.Website, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return capture.Website{}, fmt.Errorf("generate website id: %w", err)
	}
	site, err := s.store.GetOrCreateWebsite(ctx, capture.Website{
		ID:        id,
		Name:      domain,
		URL:       baseURL,
		Domain:    domain,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return capture.Website{}, fmt.Errorf("get or create website %s: %w", domain, err)
	}
	return site, nil
}

func boolOrDefault(ptr *bool, def bool) bool {
	if ptr == nil {
		return def
	}
	return *ptr
}
