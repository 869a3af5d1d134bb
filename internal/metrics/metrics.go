// Package metrics exposes buffer, pool and harness activity as Prometheus
// collectors on a private registry.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Iron-Ham/bufferlab/internal/buffer"
	"github.com/Iron-Ham/bufferlab/internal/event"
	"github.com/Iron-Ham/bufferlab/internal/logging"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "bufferlab"

// Metrics holds the collectors. It implements buffer.Observer and
// pool.Observer so it can be attached directly to both.
type Metrics struct {
	registry *prometheus.Registry

	BufferSize    prometheus.Gauge
	BufferPuts    prometheus.Counter
	BufferGets    prometheus.Counter
	BufferBlocks  *prometheus.CounterVec
	BufferClosed  prometheus.Gauge
	WorkersActive *prometheus.GaugeVec
	WorkerRuns    *prometheus.CounterVec
	Iterations    *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	PhaseDuration *prometheus.GaugeVec
	PhaseValue    *prometheus.GaugeVec
}

// New creates the collectors and registers them on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "size",
			Help:      "Number of items currently held by the buffer",
		}),
		BufferPuts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "puts_total",
			Help:      "Total number of items put into the buffer",
		}),
		BufferGets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "gets_total",
			Help:      "Total number of items taken from the buffer",
		}),
		BufferBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "blocks_total",
			Help:      "Times a caller had to wait, by operation",
		}, []string{"op"}),
		BufferClosed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "closed",
			Help:      "1 once the buffer has been closed",
		}),
		WorkersActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "active_workers",
			Help:      "Workers currently running, by pool",
		}, []string{"pool"}),
		WorkerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "workers_started_total",
			Help:      "Workers started, by pool",
		}, []string{"pool"}),
		Iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "iterations_total",
			Help:      "Units of work completed by stopped workers, by pool",
		}, []string{"pool"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "worker_failures_total",
			Help:      "Workers that stopped with an error or panic, by pool",
		}, []string{"pool"}),
		PhaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "race",
			Name:      "phase_duration_seconds",
			Help:      "Wall time of the last run of each harness phase",
		}, []string{"phase"}),
		PhaseValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "race",
			Name:      "phase_final_value",
			Help:      "Counter value at the end of each harness phase",
		}, []string{"phase"}),
	}
	m.registry.MustRegister(
		m.BufferSize,
		m.BufferPuts,
		m.BufferGets,
		m.BufferBlocks,
		m.BufferClosed,
		m.WorkersActive,
		m.WorkerRuns,
		m.Iterations,
		m.Failures,
		m.PhaseDuration,
		m.PhaseValue,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnPut implements buffer.Observer.
func (m *Metrics) OnPut(size int) {
	m.BufferPuts.Inc()
	m.BufferSize.Set(float64(size))
}

// OnGet implements buffer.Observer.
func (m *Metrics) OnGet(size int) {
	m.BufferGets.Inc()
	m.BufferSize.Set(float64(size))
}

// OnBlock implements buffer.Observer.
func (m *Metrics) OnBlock(op buffer.Op) {
	m.BufferBlocks.WithLabelValues(string(op)).Inc()
}

// OnClose implements buffer.Observer.
func (m *Metrics) OnClose() {
	m.BufferClosed.Set(1)
}

// WorkerStarted implements pool.Observer.
func (m *Metrics) WorkerStarted(pool, _ string) {
	m.WorkersActive.WithLabelValues(pool).Inc()
	m.WorkerRuns.WithLabelValues(pool).Inc()
}

// WorkerStopped implements pool.Observer.
func (m *Metrics) WorkerStopped(pool, _ string, iterations int, err error) {
	m.WorkersActive.WithLabelValues(pool).Dec()
	m.Iterations.WithLabelValues(pool).Add(float64(iterations))
	if err != nil {
		m.Failures.WithLabelValues(pool).Inc()
	}
}

// Subscribe records harness phase outcomes published on bus. It returns the
// subscription ID.
func (m *Metrics) Subscribe(bus *event.Bus) string {
	return bus.Subscribe(event.TypePhaseCompleted, func(e event.Event) {
		pc, ok := e.(event.PhaseCompletedEvent)
		if !ok {
			return
		}
		m.PhaseDuration.WithLabelValues(pc.Phase).Set(pc.Elapsed.Seconds())
		m.PhaseValue.WithLabelValues(pc.Phase).Set(float64(pc.FinalValue))
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NopLogger()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
