// Package ingest accepts statsd datagrams and replays them into the aggregator.
package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Statsd metric types.
const (
	TypeCounter   = "c"
	TypeTiming    = "ms"
	TypeHistogram = "h"
	TypeDistrib   = "d"
	TypeGauge     = "g"
)

var (
	errMalformed   = errors.New("malformed statsd line")
	errUnsupported = errors.New("unsupported statsd metric")
)

// Recorder receives parsed observations.
type Recorder interface {
	Incr(name string, value float64)
	Timing(name string, value float64)
	Gauge(name string, value float64)
}

// Line is one parsed statsd observation.
type Line struct {
	Name       string
	Value      float64
	Type       string
	SampleRate float64
}

// ParseLine parses "<name>:<value>|<type>[|@<rate>][|#<tags>]".
// Tags are accepted and ignored. Relative gauges and sets are rejected.
func ParseLine(line string) (Line, error) {
	name, rest, ok := strings.Cut(line, ":")
	if !ok || name == "" || rest == "" {
		return Line{}, fmt.Errorf("%w: %q", errMalformed, line)
	}

	fields := strings.Split(rest, "|")
	if len(fields) < 2 {
		return Line{}, fmt.Errorf("%w: missing type in %q", errMalformed, line)
	}

	l := Line{
		Name:       name,
		Type:       fields[1],
		SampleRate: 1,
	}

	switch l.Type {
	case TypeCounter, TypeTiming, TypeHistogram, TypeDistrib:
	case TypeGauge:
		if strings.HasPrefix(fields[0], "+") || strings.HasPrefix(fields[0], "-") {
			return Line{}, fmt.Errorf("%w: relative gauge %q", errUnsupported, line)
		}
	default:
		return Line{}, fmt.Errorf("%w: type %q", errUnsupported, l.Type)
	}

	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Line{}, fmt.Errorf("%w: value %q: %w", errMalformed, fields[0], err)
	}

	l.Value = value

	for _, field := range fields[2:] {
		if !strings.HasPrefix(field, "@") {
			continue
		}

		rate, err := strconv.ParseFloat(field[1:], 64)
		if err != nil || rate <= 0 || rate > 1 {
			return Line{}, fmt.Errorf("%w: sample rate %q", errMalformed, field)
		}

		l.SampleRate = rate
	}

	return l, nil
}

// Apply hands the line to rec. Counter values are scaled up by the sample rate.
func Apply(rec Recorder, l Line) {
	switch l.Type {
	case TypeCounter:
		rec.Incr(l.Name, l.Value/l.SampleRate)
	case TypeTiming, TypeHistogram, TypeDistrib:
		rec.Timing(l.Name, l.Value)
	case TypeGauge:
		rec.Gauge(l.Name, l.Value)
	}
}

// ParsePacket splits a datagram into lines, applying every valid one.
// It returns the number of applied lines and the errors of rejected ones.
func ParsePacket(rec Recorder, packet []byte) (int, []error) {
	var (
		applied int
		errs    []error
	)

	for _, raw := range strings.Split(string(packet), "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		l, err := ParseLine(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		Apply(rec, l)
		applied++
	}

	return applied, errs
}
