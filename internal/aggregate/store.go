// Package aggregate holds the in-memory counters, summaries and gauges
// that accumulate between flushes.
package aggregate

import (
	"math"
	"sync"
	"time"
)

// Store is the thread-safe aggregation buffer. One mutex guards all maps;
// critical sections are pure map operations.
type Store struct {
	mu        sync.Mutex
	counters  map[string]float64
	summaries map[string]*Summary
	gauges    map[string]float64
	start     time.Time
	now       func() time.Time
}

// NewStore creates an empty Store whose first window starts now.
func NewStore() *Store {
	return newStoreWithClock(time.Now)
}

func newStoreWithClock(now func() time.Time) *Store {
	s := &Store{now: now}
	s.reset(now())

	return s
}

// reset installs fresh maps. Caller must hold mu or own the store exclusively.
func (s *Store) reset(start time.Time) {
	s.counters = make(map[string]float64, 64)
	s.summaries = make(map[string]*Summary, 32)
	s.gauges = make(map[string]float64, 16)
	s.start = start
}

// Increment adds delta to the counter for key, creating it at zero.
// Non-finite deltas, and deltas that would overflow the counter, are dropped
// and reported as false; the previous value is kept.
func (s *Store) Increment(key string, delta float64) bool {
	if !finite(delta) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.counters[key] + delta
	if !finite(next) {
		return false
	}

	s.counters[key] = next

	return true
}

// ObserveTiming folds value into the summary for key.
// Non-finite values, and values that would overflow the summary sum, are
// dropped and reported as false.
func (s *Store) ObserveTiming(key string, value float64) bool {
	if !finite(value) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sum, ok := s.summaries[key]
	if !ok {
		sum = newSummary()
	}

	if !finite(sum.Sum + value) {
		return false
	}

	sum.Observe(value)
	s.summaries[key] = sum

	return true
}

// SetGauge overwrites the gauge for key (last write wins).
// Non-finite values are dropped and reported as false.
func (s *Store) SetGauge(key string, value float64) bool {
	if !finite(value) {
		return false
	}

	s.mu.Lock()
	s.gauges[key] = value
	s.mu.Unlock()

	return true
}

// Drain takes ownership of all pending entries, leaves the store empty and
// returns what was taken. Every write that completed before Drain acquired
// the lock is in the returned snapshot; every later write lands in the next.
func (s *Store) Drain() Snapshot {
	now := s.now()

	s.mu.Lock()
	counters := s.counters
	summaries := s.summaries
	gauges := s.gauges
	start := s.start
	s.reset(now)
	s.mu.Unlock()

	// The taken maps are no longer reachable from the store, so they can be
	// copied out without holding the lock.
	snap := Snapshot{
		Counters:  counters,
		Summaries: make(map[string]Summary, len(summaries)),
		Gauges:    gauges,
		Start:     start.UnixNano(),
		End:       now.UnixNano(),
	}

	for key, sum := range summaries {
		snap.Summaries[key] = *sum
	}

	return snap
}

// Len returns the number of pending entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.counters) + len(s.summaries) + len(s.gauges)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
