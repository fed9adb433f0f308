// Package nrmetrics aggregates application metrics in memory and flushes
// them to the New Relic Metric API on a fixed cadence.
//
// Metric names are dotted strings. Trailing segments of known base names are
// turned into labels, so "response.status.200" is aggregated under the key
// "response.status.statuscode:200". Counters are summed, timings become
// count/sum/min/max summaries, and gauges keep the last value. Each flush
// drains everything accumulated since the previous one and submits it as a
// single batch; failed submissions are logged and dropped.
//
// Basic usage:
//
//	cfg := nrmetrics.DefaultConfig()
//	cfg.APIKey = os.Getenv("NEW_RELIC_API_KEY")
//	cfg.AppName = "images"
//
//	m, err := nrmetrics.New(log, cfg)
//	if err != nil {
//	  return err
//	}
//
//	m.Start(ctx)
//	defer m.Stop()
//
//	m.Incr("response.status.200", 1)
//	m.Timing("response.time.200_jpeg", 42)
package nrmetrics
