// Package export holds the self-observability surface of the flush pipeline.
package export

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "nrmetrics"

// HealthConfig configures the Prometheus health metrics server.
type HealthConfig struct {
	// Enabled enables the health server.
	// Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// Addr is the listen address for the health metrics server.
	// Defaults to ":9090".
	Addr string `yaml:"addr"`
}

// IsEnabled returns whether the health server should run.
func (c *HealthConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}

	return *c.Enabled
}

// PipelineMetrics describes the aggregation and flush pipeline.
type PipelineMetrics struct {
	Observations        *prometheus.CounterVec // kind (counter/timing/gauge)
	ObservationsDropped *prometheus.CounterVec // kind
	PendingKeys         prometheus.Gauge
	Flushes             prometheus.Counter
	FlushesSkipped      prometheus.Counter
	MetricsExported     prometheus.Counter
	ExportErrors        *prometheus.CounterVec // error_type
	FlushDuration       prometheus.Histogram
	LastFlushTimestamp  prometheus.Gauge
}

// NewPipelineMetrics creates the pipeline metrics and registers them on reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		Observations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_total",
				Help:      "Total observations accepted by the aggregate store by kind.",
			},
			[]string{"kind"},
		),
		ObservationsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_dropped_total",
				Help:      "Total observations rejected for non-finite values by kind.",
			},
			[]string{"kind"},
		),
		PendingKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_keys",
			Help:      "Aggregation keys waiting for the next flush, sampled each poll tick.",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Total flush cycles that drained the aggregate store.",
		}),
		FlushesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_skipped_total",
			Help:      "Total flush cycles skipped because the snapshot was empty.",
		}),
		MetricsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metrics_exported_total",
			Help:      "Total metrics in snapshots exported without error.",
		}),
		ExportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_errors_total",
				Help:      "Total failed exports by error type.",
			},
			[]string{"error_type"},
		),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Duration of drain plus export.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		LastFlushTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_flush_timestamp_seconds",
			Help:      "Unix time of the last completed flush cycle, including cycles skipped for an empty snapshot.",
		}),
	}

	reg.MustRegister(
		m.Observations,
		m.ObservationsDropped,
		m.PendingKeys,
		m.Flushes,
		m.FlushesSkipped,
		m.MetricsExported,
		m.ExportErrors,
		m.FlushDuration,
		m.LastFlushTimestamp,
	)

	return m
}

// ObserveSkipped records a cycle that drained nothing. The pipeline is
// still alive, so the last flush timestamp moves forward.
func (m *PipelineMetrics) ObserveSkipped() {
	m.FlushesSkipped.Inc()
	m.LastFlushTimestamp.Set(float64(time.Now().Unix()))
}

// ObserveFlush records a completed cycle.
func (m *PipelineMetrics) ObserveFlush(start time.Time, exported int, errorType string) {
	m.Flushes.Inc()
	m.FlushDuration.Observe(time.Since(start).Seconds())
	m.LastFlushTimestamp.Set(float64(time.Now().Unix()))

	if errorType != "" {
		m.ExportErrors.WithLabelValues(errorType).Inc()
		return
	}

	m.MetricsExported.Add(float64(exported))
}

// HealthServer serves /metrics and /healthz.
type HealthServer struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry
}

// NewHealthServer creates a health server with its own registry, which
// also carries the Go runtime and process collectors.
func NewHealthServer(log logrus.FieldLogger, cfg HealthConfig) *HealthServer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &HealthServer{
		log:      log.WithField("component", "health"),
		addr:     cfg.Addr,
		registry: reg,
	}
}

// Registry returns the registry served on /metrics.
func (h *HealthServer) Registry() *prometheus.Registry {
	return h.registry
}

// Start begins serving.
func (h *HealthServer) Start(_ context.Context) error {
	if h.addr == "" {
		h.addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		h.registry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.listener = ln

	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		h.log.WithField("addr", ln.Addr().String()).
			Info("Health metrics server started")

		if err := h.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			h.log.WithError(err).
				Error("Health metrics server error")
		}
	}()

	return nil
}

// Addr returns the actual listener address. Useful when started
// with ":0" to get the OS-assigned port.
func (h *HealthServer) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}

	return h.addr
}

// Stop shuts down the server.
func (h *HealthServer) Stop() error {
	if h.server == nil {
		return nil
	}

	return h.server.Close()
}
