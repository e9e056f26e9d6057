// Package worker implements the capture job orchestrator and its queue loop.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcapture/internal/capture"
	"github.com/JakeFAU/webcapture/internal/metrics"
)

const (
	tracerName   = "github.com/JakeFAU/webcapture/internal/worker"
	defaultLease = 5 * time.Minute
	pngType      = "image/png"
)

// Config controls Worker behavior.
type Config struct {
	// Owner identifies this worker in job leases, e.g. "host-a/0".
	Owner string
	// LeaseDuration must outlast the slowest single-device capture; the lease
	// is renewed before every device.
	LeaseDuration time.Duration
	// Topic receives terminal job events. Empty disables publishing.
	Topic string
}

// Deps bundles the ports a Worker drives.
type Deps struct {
	Queue     capture.Queue
	Store     capture.Store
	Blobs     capture.BlobStore
	Executor  capture.Executor
	Publisher capture.Publisher
	Hasher    capture.Hasher
	Clock     capture.Clock
	IDs       capture.IDGenerator
	// Pacer is optional; nil captures without per-domain pacing.
	Pacer Pacer
	// Tracer defaults to the global provider's tracer.
	Tracer trace.Tracer
}

// Pacer throttles captures against one website domain.
type Pacer interface {
	Wait(ctx context.Context, domain string) error
}

// Worker consumes queue items and runs each job through its devices.
type Worker struct {
	queue     capture.Queue
	store     capture.Store
	blobs     capture.BlobStore
	executor  capture.Executor
	publisher capture.Publisher
	hasher    capture.Hasher
	clock     capture.Clock
	ids       capture.IDGenerator
	pacer     Pacer
	tracer    trace.Tracer
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = defaultLease
	}
	if cfg.Owner == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "webcapture"
		}
		cfg.Owner = host + "/0"
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Worker{
		queue:     deps.Queue,
		store:     deps.Store,
		blobs:     deps.Blobs,
		executor:  deps.Executor,
		publisher: deps.Publisher,
		hasher:    deps.Hasher,
		clock:     deps.Clock,
		ids:       deps.IDs,
		pacer:     deps.Pacer,
		tracer:    tracer,
		cfg:       cfg,
		logger:    logger.With(zap.String("owner", cfg.Owner)),
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, capture.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID), zap.Int("attempt", item.Attempt))
		if err := w.ProcessJob(ctx, item.JobID); err != nil {
			w.logger.Error("process job failed; leaving it for the sweeper",
				zap.String("job_id", item.JobID), zap.Error(err))
		}
	}
}

// ProcessJob drives one job from pending to a terminal state. It returns an
// error only when persistence fails; capture failures are recorded on the
// job and return nil.
func (w *Worker) ProcessJob(ctx context.Context, jobID string) error {
	logger := w.logger.With(zap.String("job_id", jobID))

	claimed, err := w.store.ClaimJob(ctx, jobID, w.cfg.Owner, w.leaseUntil())
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		logger.Debug("job already claimed or finished; skipping")
		return nil
	}
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	ctx, span := w.tracer.Start(ctx, "capture.job", trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()

	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	website, err := w.store.GetWebsite(ctx, job.WebsiteID)
	if errors.Is(err, capture.ErrNotFound) {
		return w.fail(ctx, logger, job, capture.ErrWebsiteNotFound.Error(), 0)
	}
	if err != nil {
		return fmt.Errorf("load website: %w", err)
	}

	devices, err := capture.ResolveDevices(ctx, w.store, job.DeviceTypes)
	if errors.Is(err, capture.ErrNoDevices) {
		return w.fail(ctx, logger, job, capture.ErrNoDevices.Error(), 0)
	}
	if err != nil {
		return fmt.Errorf("resolve devices: %w", err)
	}

	page, err := w.createPage(ctx, job, website)
	if err != nil {
		return err
	}

	total := len(devices)
	done := 0
	seen := make(map[string]int, total)
	for _, device := range devices {
		if err := w.setProgress(ctx, job.ID, done*100/total); err != nil {
			return err
		}
		seen[device.Label]++
		title, err := w.tracedCapture(ctx, job, website, page, device, seen[device.Label])
		if err != nil {
			var ce *capture.CaptureError
			if errors.As(err, &ce) && ctx.Err() == nil {
				logger.Warn("device capture failed", zap.String("device", device.Label), zap.Error(err))
				return w.fail(ctx, logger, job, ce.Error(), done)
			}
			return err
		}
		if done == 0 {
			if err := w.store.SetPageTitle(ctx, page.ID, title); err != nil {
				return fmt.Errorf("set page title: %w", err)
			}
		}
		done++
		if err := w.setProgress(ctx, job.ID, done*100/total); err != nil {
			return err
		}
		logger.Info("device captured",
			zap.String("device", device.Label),
			zap.Int("progress", done*100/total),
		)
	}

	now := w.clock.Now()
	if err := w.store.CompleteJob(ctx, job.ID, now); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	job.Status = capture.JobStatusComplete
	job.Progress = 100
	job.CompletedAt = &now
	w.finish(ctx, logger, job, done)
	return nil
}

func (w *Worker) createPage(ctx context.Context, job capture.Job, website capture.Website) (capture.Page, error) {
	id, err := w.ids.NewID()
	if err != nil {
		return capture.Page{}, fmt.Errorf("generate page id: %w", err)
	}
	url := job.URL
	if url == "" {
		url = website.URL
	}
	page := capture.Page{
		ID:        id,
		JobID:     job.ID,
		WebsiteID: website.ID,
		URL:       url,
		CreatedAt: w.clock.Now(),
	}
	if err := w.store.CreatePage(ctx, page); err != nil {
		return capture.Page{}, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

func (w *Worker) tracedCapture(
	ctx context.Context,
	job capture.Job,
	website capture.Website,
	page capture.Page,
	device capture.Device,
	version int,
) (string, error) {
	ctx, span := w.tracer.Start(ctx, "capture.device", trace.WithAttributes(
		attribute.String("device", device.Label),
		attribute.Int("viewport.width", device.Width),
		attribute.Int("viewport.height", device.Height),
		attribute.Int("version", version),
	))
	defer span.End()
	title, err := w.captureDevice(ctx, job, website, page, device, version)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return title, err
}

// captureDevice renders one device, stores its artifacts and records the
// screenshot row. Executor and blob failures come back as CaptureError. If the
// job left processing meanwhile (the sweeper failed it), the row is refused
// with ErrJobNotActive and the blobs are deleted.
func (w *Worker) captureDevice(
	ctx context.Context,
	job capture.Job,
	website capture.Website,
	page capture.Page,
	device capture.Device,
	version int,
) (string, error) {
	if w.pacer != nil {
		if err := w.pacer.Wait(ctx, website.Domain); err != nil {
			return "", capture.NewCaptureError(device.Label, err)
		}
	}
	start := w.clock.Now()
	result, err := w.executor.Capture(ctx, capture.TaskRequest{
		URL:      page.URL,
		Device:   device,
		FullPage: job.FullPage,
		Dynamic:  job.DynamicContent,
	})
	metrics.ObserveDeviceCapture(device.Label, err == nil, w.clock.Now().Sub(start))
	if err != nil {
		return "", capture.NewCaptureError(device.Label, err)
	}

	hash, err := w.hasher.Hash(result.Screenshot)
	if err != nil {
		return "", capture.NewCaptureError(device.Label, fmt.Errorf("hash screenshot: %w", err))
	}

	capturedAt := w.clock.Now()
	shotPath, thumbPath := capture.ArtifactPaths(website.Domain, device.Label, capturedAt, version)
	shotURI, err := w.blobs.PutObject(ctx, shotPath, pngType, bytes.NewReader(result.Screenshot))
	if err != nil {
		return "", capture.NewCaptureError(device.Label, fmt.Errorf("store screenshot: %w", err))
	}
	thumbURI, err := w.blobs.PutObject(ctx, thumbPath, pngType, bytes.NewReader(result.Thumbnail))
	if err != nil {
		w.discard(ctx, shotPath)
		return "", capture.NewCaptureError(device.Label, fmt.Errorf("store thumbnail: %w", err))
	}

	meta := result.Metadata
	meta.ContentHash = hash
	if meta.URL == "" {
		meta.URL = page.URL
	}
	if meta.CapturedAt.IsZero() {
		meta.CapturedAt = capturedAt
	}
	meta.DeviceType = device.Label
	meta.Width = device.Width
	meta.Height = device.Height
	meta.FullPage = job.FullPage
	if meta.Extra == nil {
		meta.Extra = make(map[string]any, 3)
	}
	meta.Extra["screenshot_uri"] = shotURI
	meta.Extra["thumbnail_uri"] = thumbURI
	meta.Extra["bytes"] = len(result.Screenshot)

	id, err := w.ids.NewID()
	if err != nil {
		w.discard(ctx, shotPath, thumbPath)
		return "", fmt.Errorf("generate screenshot id: %w", err)
	}
	shot := capture.Screenshot{
		ID:            id,
		JobID:         job.ID,
		PageID:        page.ID,
		Path:          shotPath,
		ThumbnailPath: thumbPath,
		Width:         device.Width,
		Height:        device.Height,
		DeviceType:    device.Label,
		Version:       version,
		Metadata:      meta,
		CreatedAt:     capturedAt,
	}
	if err := w.store.CreateScreenshot(ctx, shot); err != nil {
		w.discard(ctx, shotPath, thumbPath)
		return "", fmt.Errorf("create screenshot: %w", err)
	}
	return result.Title, nil
}

// discard removes blobs that no row will reference. Failures only leak
// storage, so they are logged.
func (w *Worker) discard(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if err := w.blobs.DeleteObject(context.WithoutCancel(ctx), p); err != nil {
			w.logger.Warn("delete orphaned blob failed", zap.String("path", p), zap.Error(err))
		}
	}
}

func (w *Worker) setProgress(ctx context.Context, jobID string, progress int) error {
	if err := w.store.UpdateProgress(ctx, jobID, progress, w.leaseUntil()); err != nil {
		return fmt.Errorf("persist progress %d: %w", progress, err)
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, logger *zap.Logger, job capture.Job, message string, done int) error {
	if err := w.store.FailJob(ctx, job.ID, message); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	job.Status = capture.JobStatusFailed
	job.Error = &message
	if stored, err := w.store.GetJob(ctx, job.ID); err == nil {
		job.Progress = stored.Progress
	}
	w.finish(ctx, logger, job, done)
	return nil
}

// finish records metrics and publishes the terminal event. The job state is
// already persisted, so publish failures are only logged.
func (w *Worker) finish(ctx context.Context, logger *zap.Logger, job capture.Job, screenshots int) {
	metrics.ObserveJob(string(job.Status))
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("job.status", string(job.Status)), attribute.Int("job.progress", job.Progress))
	if job.Error != nil {
		span.SetStatus(codes.Error, *job.Error)
	}
	fields := []zap.Field{zap.String("status", string(job.Status)), zap.Int("screenshots", screenshots)}
	if job.Error != nil {
		fields = append(fields, zap.String("error", *job.Error))
	}
	logger.Info("job finished", fields...)

	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	event := capture.JobEvent{
		JobID:       job.ID,
		WebsiteID:   job.WebsiteID,
		URL:         job.URL,
		Status:      job.Status,
		Progress:    job.Progress,
		Error:       job.Error,
		Screenshots: screenshots,
		CompletedAt: job.CompletedAt,
		OccurredAt:  w.clock.Now(),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, event); err != nil {
		logger.Warn("publish job event failed", zap.Error(err))
	}
}

func (w *Worker) leaseUntil() time.Time {
	return w.clock.Now().Add(w.cfg.LeaseDuration)
}
