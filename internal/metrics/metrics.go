// Package metrics exposes sync counters in Prometheus format. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var drainBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics owns a private registry so tests and multiple engines do not clash.
type Metrics struct {
	registry      *prometheus.Registry
	submits       *prometheus.CounterVec
	drainItems    *prometheus.CounterVec
	drains        prometheus.Counter
	drainDuration prometheus.Histogram
	pending       prometheus.Gauge
}

// New registers the fieldtech collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		submits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldtech_submit_total",
				Help: "Work order updates submitted, by outcome.",
			},
			[]string{"outcome"},
		),
		drainItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldtech_drain_items_total",
				Help: "Queued updates attempted during drains, by result.",
			},
			[]string{"result"},
		),
		drains: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldtech_drains_total",
			Help: "Drain passes that attempted at least one update.",
		}),
		drainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldtech_drain_duration_seconds",
			Help:    "Wall time of drain passes.",
			Buckets: drainBuckets,
		}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fieldtech_pending_updates",
			Help: "Updates waiting in the offline queue.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSubmit counts one SubmitUpdate call. outcome is "synced", "queued",
// "unauthorized" or "rejected".
func (m *Metrics) ObserveSubmit(outcome string) {
	if m == nil {
		return
	}
	m.submits.WithLabelValues(outcome).Inc()
}

// ObserveDrain records one drain pass.
func (m *Metrics) ObserveDrain(synced, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.drains.Inc()
	m.drainItems.WithLabelValues("synced").Add(float64(synced))
	m.drainItems.WithLabelValues("failed").Add(float64(failed))
	m.drainDuration.Observe(elapsed.Seconds())
}

// SetPending publishes the queue length.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", addr).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
