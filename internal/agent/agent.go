// Package agent wires the nrmetrics daemon: a statsd listener feeding the
// aggregation pipeline, plus the Prometheus health server.
package agent

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/nrmetrics"
	"github.com/ethpandaops/nrmetrics/internal/export"
	"github.com/ethpandaops/nrmetrics/internal/ingest"
)

// Agent is the top-level orchestrator for the daemon.
type Agent interface {
	// Start initializes all components and begins accepting metrics.
	Start(ctx context.Context) error
	// Stop shuts down all components gracefully, flushing pending metrics.
	Stop() error
}

type agent struct {
	log      logrus.FieldLogger
	cfg      *Config
	health   *export.HealthServer
	metrics  *nrmetrics.Metrics
	listener *ingest.Listener
}

// New creates a new Agent.
func New(log logrus.FieldLogger, cfg *Config) (Agent, error) {
	a := &agent{
		log: log.WithField("component", "agent"),
		cfg: cfg,
	}

	metricsCfg := cfg.Metrics

	if cfg.Health.IsEnabled() {
		a.health = export.NewHealthServer(log, cfg.Health)
		metricsCfg.Registerer = a.health.Registry()
	}

	m, err := nrmetrics.New(log, metricsCfg)
	if err != nil {
		return nil, fmt.Errorf("creating metrics pipeline: %w", err)
	}

	a.metrics = m

	if cfg.Ingest.IsEnabled() {
		a.listener = ingest.NewListener(log, cfg.Ingest, m, metricsCfg.Registerer)
	}

	return a, nil
}

func (a *agent) Start(ctx context.Context) error {
	// 1. Start health metrics server.
	if a.health != nil {
		if err := a.health.Start(ctx); err != nil {
			return fmt.Errorf("starting health metrics: %w", err)
		}
	}

	// 2. Start the flush loop before accepting data.
	a.metrics.Start(ctx)

	// 3. Start the statsd listener.
	if a.listener != nil {
		if err := a.listener.Start(ctx); err != nil {
			return fmt.Errorf("starting statsd listener: %w", err)
		}

		a.log.WithField("addr", a.listener.Addr()).Info("Statsd listener started")
	}

	a.log.WithFields(logrus.Fields{
		"endpoint":       a.cfg.Metrics.Endpoint,
		"flush_interval": a.cfg.Metrics.FlushInterval,
	}).Info("Agent fully started")

	return nil
}

func (a *agent) Stop() error {
	// Stop in reverse order so the final flush sees every accepted line.
	if a.listener != nil {
		if err := a.listener.Stop(); err != nil {
			a.log.WithError(err).Error("Error stopping statsd listener")
		}
	}

	if err := a.metrics.Stop(); err != nil {
		a.log.WithError(err).Error("Error stopping metrics pipeline")
	}

	if a.health != nil {
		if err := a.health.Stop(); err != nil {
			a.log.WithError(err).Error("Error stopping health server")
		}
	}

	return nil
}
