// Package metrics exposes run counters in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "extractor"

// Record outcomes.
const (
	OutcomeAppended    = "appended"
	OutcomeSkipped     = "skipped"
	OutcomeUnavailable = "unavailable"
	OutcomeInvalid     = "invalid"
)

// Sequence outcomes.
const (
	OutcomeSaved  = "saved"
	OutcomeFailed = "failed"
)

// Recorder owns a private registry so tests and repeated runs never collide
// with the global default registry. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	records       *prometheus.CounterVec
	sequences     *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	knownIDs      prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Identifiers visited in the current run, by outcome",
			},
			[]string{"outcome"},
		),
		sequences: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sequences_total",
				Help:      "Sequence downloads, by outcome",
			},
			[]string{"outcome"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of remote fetch attempts",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"kind", "result"},
		),
		knownIDs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "known_ids",
				Help:      "Size of the processed identifier set",
			},
		),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}

	return r.registry
}

// RecordOutcome counts one visited identifier.
func (r *Recorder) RecordOutcome(outcome string) {
	if r == nil {
		return
	}

	r.records.WithLabelValues(outcome).Inc()
}

// SequenceOutcome counts one sequence download.
func (r *Recorder) SequenceOutcome(outcome string) {
	if r == nil {
		return
	}

	r.sequences.WithLabelValues(outcome).Inc()
}

// SetKnown publishes the identifier set size.
func (r *Recorder) SetKnown(n int) {
	if r == nil {
		return
	}

	r.knownIDs.Set(float64(n))
}

// ObserveFetch records the duration of one fetch attempt.
func (r *Recorder) ObserveFetch(kind string, success bool, d time.Duration) {
	if r == nil {
		return
	}

	result := "success"
	if !success {
		result = "failure"
	}

	r.fetchDuration.WithLabelValues(kind, result).Observe(d.Seconds())
}

// Handler serves the registry at any path.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	return nil
}
