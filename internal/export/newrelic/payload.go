package newrelic

import (
	"math"
	"sort"
	"time"

	"github.com/ethpandaops/nrmetrics/internal/aggregate"
)

// Metric type names understood by the Metric API.
const (
	TypeCount   = "count"
	TypeGauge   = "gauge"
	TypeSummary = "summary"
)

// Envelope is one element of the Metric API batch array.
type Envelope struct {
	Common  Common   `json:"common"`
	Metrics []Metric `json:"metrics"`
}

// Common holds attributes shared by every metric in the envelope.
type Common struct {
	Attributes map[string]string `json:"attributes"`
}

// Metric is a single data point on the wire. Value is a float64 for count
// and gauge metrics and a SummaryValue for summaries.
type Metric struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Value      any    `json:"value"`
	Timestamp  int64  `json:"timestamp"`
	IntervalMs int64  `json:"interval.ms,omitempty"`
}

// SummaryValue is the value object of a summary metric.
type SummaryValue struct {
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// buildMetrics converts a snapshot into wire metrics stamped with the export
// time. Output is ordered counters, summaries, gauges, each sorted by key.
// Records holding a non-finite number cannot be encoded as JSON; they are
// left out and their keys returned as skipped.
func buildMetrics(snap aggregate.Snapshot, prefix string, now time.Time) ([]Metric, []string) {
	ts := now.UnixMilli()

	intervalMs := (snap.End - snap.Start) / int64(time.Millisecond)
	if intervalMs <= 0 {
		intervalMs = 1
	}

	var (
		metrics = make([]Metric, 0, snap.Len())
		skipped []string
	)

	for _, key := range sortedKeys(snap.Counters) {
		if !finite(snap.Counters[key]) {
			skipped = append(skipped, key)
			continue
		}

		metrics = append(metrics, Metric{
			Name:       metricName(prefix, key),
			Type:       TypeCount,
			Value:      snap.Counters[key],
			Timestamp:  ts,
			IntervalMs: intervalMs,
		})
	}

	for _, key := range sortedKeys(snap.Summaries) {
		s := snap.Summaries[key]

		if !finite(s.Sum) || !finite(s.Min) || !finite(s.Max) {
			skipped = append(skipped, key)
			continue
		}

		metrics = append(metrics, Metric{
			Name: metricName(prefix, key),
			Type: TypeSummary,
			Value: SummaryValue{
				Count: s.Count,
				Sum:   s.Sum,
				Min:   s.Min,
				Max:   s.Max,
			},
			Timestamp:  ts,
			IntervalMs: intervalMs,
		})
	}

	for _, key := range sortedKeys(snap.Gauges) {
		if !finite(snap.Gauges[key]) {
			skipped = append(skipped, key)
			continue
		}

		metrics = append(metrics, Metric{
			Name:      metricName(prefix, key),
			Type:      TypeGauge,
			Value:     snap.Gauges[key],
			Timestamp: ts,
		})
	}

	return metrics, skipped
}

// commonAttributes merges static attributes with app.name.
func commonAttributes(appName string, extra map[string]string) map[string]string {
	attrs := make(map[string]string, len(extra)+1)

	for k, v := range extra {
		attrs[k] = v
	}

	attrs["app.name"] = appName

	return attrs
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func metricName(prefix, key string) string {
	if prefix == "" {
		return key
	}

	return prefix + "." + key
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
