// Package metrics exposes Prometheus collectors for the capture service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal                  *prometheus.CounterVec
	deviceCapturesTotal        *prometheus.CounterVec
	deviceCaptureSeconds       *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	jobsReconciledTotal        *prometheus.CounterVec
	rateLimitDelaySeconds      prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// knownDevices bounds the device label; anything else is reported as "other".
var knownDevices = map[string]struct{}{
	"desktop": {},
	"tablet":  {},
	"mobile":  {},
}

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webcapture_jobs_total",
				Help: "Total number of capture jobs that reached a terminal state, labeled by status.",
			},
			[]string{"status"},
		)

		deviceCapturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webcapture_device_captures_total",
				Help: "Total number of device captures, labeled by device and result.",
			},
			[]string{"device", "result"},
		)

		deviceCaptureSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webcapture_device_capture_seconds",
				Help:    "Histogram of single-device capture durations.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90},
			},
			[]string{"device"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "webcapture_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		jobsReconciledTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webcapture_jobs_reconciled_total",
				Help: "Jobs touched by the sweeper, labeled by action (abandoned, requeued).",
			},
			[]string{"action"},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webcapture_rate_limit_delay_seconds",
				Help:    "Time captures spent waiting on the per-domain rate limiter.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeDevice maps a device label onto a bounded label set.
func SanitizeDevice(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	if _, ok := knownDevices[l]; ok {
		return l
	}
	return "other"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given terminal status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveDeviceCapture records one device capture and its duration.
func ObserveDeviceCapture(device string, success bool, duration time.Duration) {
	Init()
	result := "success"
	if !success {
		result = "failure"
	}
	d := SanitizeDevice(device)
	deviceCapturesTotal.WithLabelValues(d, result).Inc()
	deviceCaptureSeconds.WithLabelValues(d).Observe(duration.Seconds())
}

// ObserveReconciled counts jobs the sweeper failed or re-enqueued.
func ObserveReconciled(action string, n int) {
	Init()
	if n > 0 {
		jobsReconciledTotal.WithLabelValues(action).Add(float64(n))
	}
}

// ObserveRateLimitDelay records time spent waiting for a domain token.
func ObserveRateLimitDelay(d time.Duration) {
	Init()
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}
