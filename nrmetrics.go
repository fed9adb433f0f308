package nrmetrics

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/nrmetrics/internal/aggregate"
	"github.com/ethpandaops/nrmetrics/internal/export"
	"github.com/ethpandaops/nrmetrics/internal/export/newrelic"
	"github.com/ethpandaops/nrmetrics/internal/flush"
	"github.com/ethpandaops/nrmetrics/internal/metrickey"
)

// Metrics aggregates counters, timings and gauges and periodically ships
// them to New Relic. Construct one per process and share it; all methods
// are safe for concurrent use.
type Metrics struct {
	log       logrus.FieldLogger
	codec     *metrickey.Codec
	store     *aggregate.Store
	exporter  *newrelic.Exporter
	scheduler *flush.Scheduler
	health    *export.PipelineMetrics
}

// New builds a Metrics instance. Nothing runs until Start.
// A nil log uses the logrus standard logger.
func New(log logrus.FieldLogger, cfg Config) (*Metrics, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	exporter, err := newrelic.New(log, cfg.exporterConfig())
	if err != nil {
		return nil, fmt.Errorf("creating exporter: %w", err)
	}

	schema := metrickey.DefaultSchema()
	if cfg.Labels != nil {
		schema = metrickey.NewSchema(cfg.Labels)
	}

	var health *export.PipelineMetrics
	if cfg.Registerer != nil {
		health = export.NewPipelineMetrics(cfg.Registerer)
	}

	store := aggregate.NewStore()

	flushCfg := cfg.flushConfig()
	flushCfg.ExportTimeout = exporter.Timeout()

	scheduler, err := flush.New(log, flushCfg, store, exporter, health)
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	return &Metrics{
		log:       log.WithField("component", "nrmetrics"),
		codec:     metrickey.NewCodec(schema),
		store:     store,
		exporter:  exporter,
		scheduler: scheduler,
		health:    health,
	}, nil
}

// Start launches the background flush loop. Extra calls are no-ops.
func (m *Metrics) Start(ctx context.Context) {
	m.scheduler.Start(ctx)
}

// Stop halts the flush loop, sends anything still pending and releases
// the HTTP connection pool. The instance must not be used afterwards:
// recorded values are never sent and Flush returns an error.
func (m *Metrics) Stop() error {
	m.scheduler.Stop()

	if err := m.exporter.Close(); err != nil {
		return fmt.Errorf("closing exporter: %w", err)
	}

	return nil
}

// Flush drains and exports immediately.
func (m *Metrics) Flush(ctx context.Context) error {
	return m.scheduler.FlushNow(ctx)
}

// Incr adds value to the counter identified by name.
func (m *Metrics) Incr(name string, value float64) {
	m.record("counter", m.store.Increment(m.codec.Key(name), value))
}

// Timing records a duration observation (any unit, typically ms) for name.
func (m *Metrics) Timing(name string, value float64) {
	m.record("timing", m.store.ObserveTiming(m.codec.Key(name), value))
}

// Gauge sets the gauge identified by name.
func (m *Metrics) Gauge(name string, value float64) {
	m.record("gauge", m.store.SetGauge(m.codec.Key(name), value))
}

func (m *Metrics) record(kind string, accepted bool) {
	if m.health == nil {
		return
	}

	if accepted {
		m.health.Observations.WithLabelValues(kind).Inc()
		return
	}

	m.health.ObservationsDropped.WithLabelValues(kind).Inc()
}
