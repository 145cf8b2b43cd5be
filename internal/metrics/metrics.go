package metrics

/*
rdapwatch — domain expiration checks over RDAP, driven from chat
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry          = prometheus.NewRegistry()
	defaultRegisterer = promauto.With(registry)
	metricsEnabled    atomic.Bool
)

// Metrics contains all the Prometheus metrics for the application
type Metrics struct {
	// RDAP lookups
	LookupDuration      *prometheus.HistogramVec
	LookupsTotal        *prometheus.CounterVec
	RDAPRequestDuration *prometheus.HistogramVec

	// Check passes
	CheckDomains     prometheus.Histogram
	ThrottleDuration prometheus.Histogram

	// Domain store
	StoreOpsTotal *prometheus.CounterVec

	// Chat commands
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Scheduler
	QueueSize     *prometheus.GaugeVec
	JobsSubmitted *prometheus.CounterVec
	JobsRejected  *prometheus.CounterVec
	WorkerPanics  *prometheus.CounterVec
	WorkerBusy    *prometheus.GaugeVec
}

// Global instance of metrics
var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// EnableMetrics enables metrics collection
func EnableMetrics() {
	metricsEnabled.Store(true)
}

// IsMetricsEnabled returns whether metrics collection is enabled
func IsMetricsEnabled() bool {
	return metricsEnabled.Load()
}

// newMetrics creates and registers all metrics
func newMetrics() *Metrics {
	buckets := []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	countBuckets := []float64{1, 2, 5, 10, 25, 50, 100, 250}

	return &Metrics{
		LookupDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rdapwatch_lookup_duration_seconds",
				Help:    "Time spent on one domain lookup, by outcome",
				Buckets: buckets,
			},
			[]string{"outcome"},
		),
		LookupsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rdapwatch_lookups_total",
				Help: "Total number of domain lookups, by outcome",
			},
			[]string{"outcome"},
		),
		RDAPRequestDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rdapwatch_rdap_request_duration_seconds",
				Help:    "Time spent on RDAP HTTP requests, by status code",
				Buckets: buckets,
			},
			[]string{"code"},
		),
		CheckDomains: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rdapwatch_check_domains",
				Help:    "Number of domains looked up per check pass",
				Buckets: countBuckets,
			},
		),
		ThrottleDuration: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rdapwatch_throttle_wait_seconds",
				Help:    "Time spent in the pause between lookups",
				Buckets: buckets,
			},
		),
		StoreOpsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rdapwatch_store_operations_total",
				Help: "Total number of domain store operations",
			},
			[]string{"op", "status"},
		),
		CommandsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rdapwatch_commands_total",
				Help: "Total number of chat commands handled",
			},
			[]string{"command"},
		),
		CommandDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rdapwatch_command_duration_seconds",
				Help:    "Time spent handling a chat command",
				Buckets: buckets,
			},
			[]string{"command"},
		),
		QueueSize: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rdapwatch_queue_size",
				Help: "Current size of worker queues",
			},
			[]string{"worker_id"},
		),
		JobsSubmitted: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rdapwatch_jobs_submitted_total",
				Help: "Total number of jobs queued to workers",
			},
			[]string{"worker_id"},
		),
		JobsRejected: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rdapwatch_jobs_rejected_total",
				Help: "Total number of jobs rejected by the scheduler",
			},
			[]string{"reason"},
		),
		WorkerPanics: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rdapwatch_worker_panics_total",
				Help: "Total number of panics recovered by a worker",
			},
			[]string{"worker_id"},
		),
		WorkerBusy: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rdapwatch_worker_busy",
				Help: "Whether a worker is currently busy (1) or idle (0)",
			},
			[]string{"worker_id"},
		),
	}
}

// Router returns the admin HTTP handler: Prometheus metrics and a liveness check.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}

// Serve runs the admin HTTP server on addr until ctx is cancelled, then shuts
// it down gracefully.
func Serve(ctx context.Context, addr string, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down metrics server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// MeasureDuration is a helper to measure the duration of a function
func MeasureDuration(histogram *prometheus.HistogramVec, labels prometheus.Labels) func() {
	if !IsMetricsEnabled() {
		return func() {}
	}

	start := time.Now()
	return func() {
		histogram.With(labels).Observe(time.Since(start).Seconds())
	}
}

// ObserveLookup records one domain lookup.
func (m *Metrics) ObserveLookup(outcome string, d time.Duration) {
	if !IsMetricsEnabled() {
		return
	}

	m.LookupsTotal.WithLabelValues(outcome).Inc()
	m.LookupDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveRDAPRequest records one RDAP HTTP exchange; code is 0 when no
// response arrived.
func (m *Metrics) ObserveRDAPRequest(code int, d time.Duration) {
	if !IsMetricsEnabled() {
		return
	}

	m.RDAPRequestDuration.WithLabelValues(strconv.Itoa(code)).Observe(d.Seconds())
}

// ObserveCheck records the size of a check pass.
func (m *Metrics) ObserveCheck(domains int) {
	if !IsMetricsEnabled() {
		return
	}

	m.CheckDomains.Observe(float64(domains))
}

// ObserveThrottle records time spent waiting between lookups.
func (m *Metrics) ObserveThrottle(d time.Duration) {
	if !IsMetricsEnabled() {
		return
	}

	m.ThrottleDuration.Observe(d.Seconds())
}

// RecordStoreOp counts a domain store operation.
func (m *Metrics) RecordStoreOp(op, status string) {
	if !IsMetricsEnabled() {
		return
	}

	m.StoreOpsTotal.WithLabelValues(op, status).Inc()
}

// RecordCommand counts a chat command and returns a func that records its
// duration when called.
func (m *Metrics) RecordCommand(command string) func() {
	if !IsMetricsEnabled() {
		return func() {}
	}

	m.CommandsTotal.WithLabelValues(command).Inc()
	return MeasureDuration(m.CommandDuration, prometheus.Labels{"command": command})
}

// UpdateQueueMetrics updates the queue gauge for a worker
func (m *Metrics) UpdateQueueMetrics(workerID int, queueSize int) {
	if !IsMetricsEnabled() {
		return
	}

	m.QueueSize.WithLabelValues(strconv.Itoa(workerID)).Set(float64(queueSize))
}

// RecordJobSubmitted counts a job accepted by a worker queue.
func (m *Metrics) RecordJobSubmitted(workerID int) {
	if !IsMetricsEnabled() {
		return
	}

	m.JobsSubmitted.WithLabelValues(strconv.Itoa(workerID)).Inc()
}

// RecordJobRejected counts a job the scheduler refused.
func (m *Metrics) RecordJobRejected(reason string) {
	if !IsMetricsEnabled() {
		return
	}

	m.JobsRejected.WithLabelValues(reason).Inc()
}

// SetWorkerBusy flips the busy gauge for a worker.
func (m *Metrics) SetWorkerBusy(workerID int, busy bool) {
	if !IsMetricsEnabled() {
		return
	}

	v := 0.0
	if busy {
		v = 1
	}
	m.WorkerBusy.WithLabelValues(strconv.Itoa(workerID)).Set(v)
}

// RecordWorkerPanic counts a recovered worker panic.
func (m *Metrics) RecordWorkerPanic(workerID int) {
	if !IsMetricsEnabled() {
		return
	}

	m.WorkerPanics.WithLabelValues(strconv.Itoa(workerID)).Inc()
}
