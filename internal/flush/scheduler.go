// Package flush periodically drains the aggregate store and exports the result.
package flush

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/nrmetrics/internal/aggregate"
	"github.com/ethpandaops/nrmetrics/internal/export"
)

// Exporter ships a drained snapshot to a destination.
type Exporter interface {
	// Name returns the exporter's identifier for logging.
	Name() string
	// Export writes the snapshot to the destination.
	Export(ctx context.Context, snap aggregate.Snapshot) error
}

// ErrorClassifier is implemented by exporters that label their own errors
// for logs and health metrics. Errors from other exporters are "other".
type ErrorClassifier interface {
	ErrorType(err error) string
}

// Store is the part of the aggregate store the scheduler needs.
type Store interface {
	Drain() aggregate.Snapshot
	Len() int
}

// Scheduler runs the Idle -> Draining -> Exporting -> Idle cycle.
type Scheduler struct {
	log      logrus.FieldLogger
	cfg      Config
	store    Store
	exporter Exporter
	health   *export.PipelineMetrics
	now      func() time.Time

	// mu serializes cycles and guards lastSent.
	mu       sync.Mutex
	lastSent time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a Scheduler. health may be nil.
func New(
	log logrus.FieldLogger,
	cfg Config,
	store Store,
	exporter Exporter,
	health *export.PipelineMetrics,
) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flush config: %w", err)
	}

	cfg.ApplyDefaults()

	return &Scheduler{
		log:      log.WithField("component", "flush"),
		cfg:      cfg,
		store:    store,
		exporter: exporter,
		health:   health,
		now:      time.Now,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the background loop. Calls after the first are no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)

		s.mu.Lock()
		s.lastSent = s.now()
		s.mu.Unlock()

		go s.runLoop(ctx)

		s.log.WithFields(logrus.Fields{
			"interval":      s.cfg.Interval,
			"poll_interval": s.cfg.PollInterval,
			"exporter":      s.exporter.Name(),
		}).Info("Flush scheduler started")
	})
}

// Stop ends the loop, waits for an in-flight export to finish and then
// flushes whatever accumulated since the last cycle. Safe to call more than
// once and without Start.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		// Prevent a later Start from launching a loop nobody will stop.
		s.startOnce.Do(func() {})

		if s.cancel != nil {
			s.cancel()
			<-s.done
		}

		if err := s.FlushNow(context.Background()); err != nil {
			s.log.WithError(err).Error("Final flush failed")
		}
	})
}

// FlushNow drains and exports immediately, regardless of the interval.
func (s *Scheduler) FlushNow(ctx context.Context) error {
	return s.cycle(ctx, true)
}

// runLoop wakes every poll interval and flushes once Interval elapsed.
func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("Flush cycle panicked")
		}
	}()

	if s.health != nil {
		s.health.PendingKeys.Set(float64(s.store.Len()))
	}

	if err := s.cycle(ctx, false); err != nil {
		s.log.WithError(err).
			WithField("error_type", s.errorType(err)).
			Error("Failed to export metrics")
	}
}

// cycle drains the store and exports the snapshot. Unless force is set it
// does nothing until Interval has elapsed since the last cycle. lastSent is
// advanced whatever the export outcome, so a failing endpoint never turns
// the loop into a tight retry.
func (s *Scheduler) cycle(ctx context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if !force && now.Sub(s.lastSent) < s.cfg.Interval {
		return nil
	}

	started := time.Now()
	snap := s.store.Drain()
	s.lastSent = now

	if snap.Empty() {
		if s.health != nil {
			s.health.ObserveSkipped()
		}

		s.log.Debug("No metrics to flush")

		return nil
	}

	// The export outlives cancellation of ctx so Stop never cuts a
	// submission short; the timeout still bounds it.
	exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ExportTimeout)
	defer cancel()

	err := s.exporter.Export(exportCtx, snap)

	if s.health != nil {
		s.health.ObserveFlush(started, snap.Len(), s.errorType(err))
	}

	if err != nil {
		return fmt.Errorf("exporting %d metrics via %s: %w", snap.Len(), s.exporter.Name(), err)
	}

	s.log.WithFields(logrus.Fields{
		"counters":  len(snap.Counters),
		"summaries": len(snap.Summaries),
		"gauges":    len(snap.Gauges),
		"took":      time.Since(started),
	}).Debug("Flushed metrics")

	return nil
}

func (s *Scheduler) errorType(err error) string {
	if err == nil {
		return ""
	}

	if c, ok := s.exporter.(ErrorClassifier); ok {
		return c.ErrorType(err)
	}

	return "other"
}
