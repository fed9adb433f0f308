package aggregate

import "math"

// Summary tracks distribution statistics for timing observations.
// Not safe for concurrent use on its own; the Store guards it.
type Summary struct {
	Count uint64
	Sum   float64
	Min   float64
	Max   float64
}

// newSummary returns an empty Summary. Max starts at -Inf so an all-negative
// series still reports its true maximum.
func newSummary() *Summary {
	return &Summary{
		Min: math.Inf(1),
		Max: math.Inf(-1),
	}
}

// Observe records one value.
func (s *Summary) Observe(value float64) {
	s.Count++
	s.Sum += value

	if value < s.Min {
		s.Min = value
	}

	if value > s.Max {
		s.Max = value
	}
}

// Snapshot is the immutable result of a Store drain.
type Snapshot struct {
	Counters  map[string]float64
	Summaries map[string]Summary
	Gauges    map[string]float64
	// Start is when the drained window began (the previous drain).
	Start int64
	// End is when the window was drained. Both are unix nanoseconds.
	End int64
}

// Len returns the total number of entries across all metric kinds.
func (s Snapshot) Len() int {
	return len(s.Counters) + len(s.Summaries) + len(s.Gauges)
}

// Empty reports whether the snapshot holds no entries.
func (s Snapshot) Empty() bool {
	return s.Len() == 0
}
