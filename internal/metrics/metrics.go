// Package metrics exposes Prometheus metrics for the watch pipeline.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace         = "pdfwatch"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Metrics holds the pipeline collectors on a private registry. A nil
// *Metrics is valid and records nothing, so callers need no guards.
type Metrics struct {
	registry *prometheus.Registry

	events        prometheus.Counter
	cycles        *prometheus.CounterVec
	pagesMerged   prometheus.Counter
	readFailures  prometheus.Counter
	moveFailures  prometheus.Counter
	cycleDuration prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		events: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Qualifying file events received from the directory monitor",
		}),
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Merge cycles by outcome",
		}, []string{"outcome"}),
		pagesMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_merged_total",
			Help:      "Pages written to merged outputs",
		}),
		readFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_failures_total",
			Help:      "Source documents that could not be read",
		}),
		moveFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_move_failures_total",
			Help:      "Files that could not be moved into an archive folder",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of merge-and-archive cycles",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveEvent counts one qualifying event.
func (m *Metrics) ObserveEvent() {
	if m == nil {
		return
	}

	m.events.Inc()
}

// CycleStats summarizes one finished cycle.
type CycleStats struct {
	Outcome      string
	Duration     time.Duration
	Pages        int
	ReadFailures int
	MoveFailures int
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(s CycleStats) {
	if m == nil {
		return
	}

	m.cycles.WithLabelValues(s.Outcome).Inc()
	m.cycleDuration.Observe(s.Duration.Seconds())
	m.pagesMerged.Add(float64(s.Pages))
	m.readFailures.Add(float64(s.ReadFailures))
	m.moveFailures.Add(float64(s.MoveFailures))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("metrics server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	}
}
