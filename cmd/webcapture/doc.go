// Package main hosts the webcapture service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server accepts capture requests, validates them and hands them to
//     internal/intake, which records the website and a pending job before enqueueing its id.
//   - Dispatcher & queue: job ids flow through a bounded in-memory queue sized by queue.depth and are
//     consumed by a fixed worker pool sized by worker.concurrency. Each worker owns leases as
//     "<hostname>/<index>".
//   - Capture pipeline: a worker claims the job, resolves device profiles and renders each device in
//     turn with a fresh headless Chrome (internal/browser). Screenshots and thumbnails go to the
//     configured BlobStore (memory/local/GCS) and the rows to the record store (memory or Postgres).
//     Progress only moves forward and renews the lease.
//   - Reconciliation: the sweeper fails jobs whose lease expired and re-enqueues jobs left pending.
//   - Fanout: terminal job events are published to Pub/Sub when pubsub.topic_name is set, carrying
//     the job's trace context in message attributes.
//   - Configuration & plumbing: viper reads WEBCAPTURE_* env vars and an optional file; zap logs;
//     Prometheus metrics on /metrics.
//
// Quick checklist:
//   - Run locally: go run ./cmd/webcapture serve --config config.yaml
//   - Apply the schema: WEBCAPTURE_DB_DSN=... go run ./cmd/webcapture migrate
//   - Chrome must be installed (or browser.exec_path set) unless browser.enabled=false.
package main
