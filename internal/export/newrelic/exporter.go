// Package newrelic submits aggregated metric snapshots to the New Relic Metric API.
package newrelic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/nrmetrics/internal/aggregate"
	"github.com/ethpandaops/nrmetrics/internal/version"
)

// maxErrorBody caps how much of a rejected response body is kept.
const maxErrorBody = 512

// Exporter posts snapshots as Metric API batches.
type Exporter struct {
	cfg        Config
	log        logrus.FieldLogger
	compressor *Compressor
	attrs      map[string]string
	now        func() time.Time

	clientOnce sync.Once
	client     *http.Client

	// closeMu is held for reading by Export so Close never releases the
	// compressor under an in-flight submission.
	closeMu sync.RWMutex
	closed  bool
}

// New creates an Exporter. A config without an API key yields a disabled
// exporter whose Export is a no-op; that is logged once here.
func New(log logrus.FieldLogger, cfg Config) (*Exporter, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	compressor, err := NewCompressor(cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}

	e := &Exporter{
		cfg:        cfg,
		log:        log.WithField("component", "newrelic_exporter"),
		compressor: compressor,
		attrs:      commonAttributes(cfg.AppName, cfg.CommonAttributes),
		now:        time.Now,
	}

	if !cfg.Enabled() {
		e.log.Warn("No New Relic API key configured, metrics will not be exported")
	}

	return e, nil
}

// Name returns the exporter identifier.
func (e *Exporter) Name() string {
	return "newrelic"
}

// Enabled reports whether the exporter will submit anything.
func (e *Exporter) Enabled() bool {
	return e.cfg.Enabled()
}

// ErrorType classifies an error returned by Export.
func (e *Exporter) ErrorType(err error) string {
	return ErrorType(err)
}

// Timeout returns the per-submission timeout.
func (e *Exporter) Timeout() time.Duration {
	return e.cfg.ExportTimeout
}

// httpClient returns the shared client, building it on first use.
func (e *Exporter) httpClient() *http.Client {
	e.clientOnce.Do(func() {
		e.client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				DisableKeepAlives:   !e.cfg.IsKeepAlive(),
			},
			Timeout: e.cfg.ExportTimeout,
		}
	})

	return e.client
}

// Export submits the snapshot. Empty snapshots and disabled exporters make
// no network calls. Snapshots larger than MaxBatchSize are split; every
// chunk is attempted and the first error is returned.
func (e *Exporter) Export(ctx context.Context, snap aggregate.Snapshot) error {
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()

	if e.closed {
		return ErrClosed
	}

	if !e.Enabled() || snap.Empty() {
		return nil
	}

	metrics, skipped := buildMetrics(snap, e.cfg.NamePrefix, e.now())
	if len(skipped) > 0 {
		e.log.WithField("keys", skipped).Warn("Skipping metrics with non-finite values")
	}

	var firstErr error

	for start := 0; start < len(metrics); start += e.cfg.MaxBatchSize {
		end := min(start+e.cfg.MaxBatchSize, len(metrics))

		if err := e.send(ctx, metrics[start:end]); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// send posts one envelope.
func (e *Exporter) send(ctx context.Context, metrics []Metric) error {
	data, err := json.Marshal([]Envelope{{
		Common:  Common{Attributes: e.attrs},
		Metrics: metrics,
	}})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	body, err := e.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("%w: compressing: %w", ErrSerialization, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", e.cfg.APIKey)
	req.Header.Set("User-Agent", version.UserAgent())

	if encoding := e.compressor.ContentEncoding(); encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_, _ = io.Copy(io.Discard, resp.Body)

		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(excerpt)),
		}
	}

	// Drain response body to enable connection reuse.
	_, _ = io.Copy(io.Discard, resp.Body)

	e.log.WithFields(logrus.Fields{
		"metrics":    len(metrics),
		"bytes":      len(data),
		"compressed": len(body),
	}).Debug("Exported metrics to New Relic")

	return nil
}

// Close releases compressor resources and idle connections. Export returns
// ErrClosed afterwards. Extra calls are no-ops.
func (e *Exporter) Close() error {
	e.closeMu.Lock()
	defer e.closeMu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true

	if e.client != nil {
		e.client.CloseIdleConnections()
	}

	return e.compressor.Close()
}
