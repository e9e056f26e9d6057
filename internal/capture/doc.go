// Package capture defines the domain model shared by the webcapture service:
// websites, capture jobs, pages, screenshots and device profiles, plus the
// ports (stores, blob storage, executor, queue) the orchestrator depends on.
package capture
