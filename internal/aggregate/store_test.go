package aggregate

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_IncrementSums(t *testing.T) {
	s := NewStore()

	deltas := []float64{1, 2, 3.5, 10, 1}
	for _, d := range deltas {
		require.True(t, s.Increment("requests", d))
	}

	s.Increment("other", 1)

	snap := s.Drain()

	assert.Equal(t, 17.5, snap.Counters["requests"])
	assert.Equal(t, 1.0, snap.Counters["other"])
	assert.Len(t, snap.Counters, 2)
}

func TestStore_ObserveTiming(t *testing.T) {
	s := NewStore()

	values := []float64{120, 15, 300, 42}
	for _, v := range values {
		s.ObserveTiming("response.time", v)
	}

	snap := s.Drain()
	sum := snap.Summaries["response.time"]

	assert.Equal(t, uint64(4), sum.Count)
	assert.Equal(t, 477.0, sum.Sum)
	assert.Equal(t, 15.0, sum.Min)
	assert.Equal(t, 300.0, sum.Max)
}

func TestStore_ObserveTiming_AllNegative(t *testing.T) {
	s := NewStore()

	s.ObserveTiming("skew", -5)
	s.ObserveTiming("skew", -2)

	sum := s.Drain().Summaries["skew"]

	assert.Equal(t, -5.0, sum.Min)
	assert.Equal(t, -2.0, sum.Max)
}

func TestStore_SetGaugeLastWriteWins(t *testing.T) {
	s := NewStore()

	s.SetGauge("queue.depth", 10)
	s.SetGauge("queue.depth", 3)

	assert.Equal(t, 3.0, s.Drain().Gauges["queue.depth"])
}

func TestStore_RejectsNonFinite(t *testing.T) {
	s := NewStore()

	assert.False(t, s.Increment("c", math.NaN()))
	assert.False(t, s.ObserveTiming("t", math.Inf(1)))
	assert.False(t, s.SetGauge("g", math.Inf(-1)))

	assert.True(t, s.Drain().Empty())
}

func TestStore_RejectsOverflow(t *testing.T) {
	s := NewStore()

	require.True(t, s.Increment("big", math.MaxFloat64))
	assert.False(t, s.Increment("big", math.MaxFloat64))
	require.True(t, s.Increment("big.negative", -math.MaxFloat64))
	assert.False(t, s.Increment("big.negative", -math.MaxFloat64))

	require.True(t, s.ObserveTiming("slow", math.MaxFloat64))
	assert.False(t, s.ObserveTiming("slow", math.MaxFloat64))

	s.Increment("ok", 1)

	snap := s.Drain()

	assert.Equal(t, math.MaxFloat64, snap.Counters["big"])
	assert.Equal(t, -math.MaxFloat64, snap.Counters["big.negative"])
	assert.Equal(t, 1.0, snap.Counters["ok"])

	slow := snap.Summaries["slow"]
	assert.Equal(t, uint64(1), slow.Count)
	assert.Equal(t, math.MaxFloat64, slow.Sum)
	assert.Equal(t, math.MaxFloat64, slow.Max)

	for _, v := range snap.Counters {
		assert.False(t, math.IsInf(v, 0))
	}
}

func TestStore_DrainEmptiesStore(t *testing.T) {
	s := NewStore()

	s.Increment("a", 1)
	s.ObserveTiming("b", 2)
	s.SetGauge("c", 3)
	assert.Equal(t, 3, s.Len())

	first := s.Drain()
	assert.Equal(t, 3, first.Len())
	assert.Equal(t, 0, s.Len())

	second := s.Drain()
	assert.True(t, second.Empty())
}

func TestStore_DrainWindow(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	now := base

	s := newStoreWithClock(func() time.Time { return now })

	now = base.Add(15 * time.Second)
	first := s.Drain()

	assert.Equal(t, base.UnixNano(), first.Start)
	assert.Equal(t, now.UnixNano(), first.End)

	now = base.Add(30 * time.Second)
	second := s.Drain()

	assert.Equal(t, first.End, second.Start)
	assert.Equal(t, now.UnixNano(), second.End)
}

func TestStore_SnapshotIsDetached(t *testing.T) {
	s := NewStore()

	s.ObserveTiming("t", 1)
	snap := s.Drain()

	s.ObserveTiming("t", 100)

	assert.Equal(t, uint64(1), snap.Summaries["t"].Count)
	assert.Equal(t, 1.0, snap.Summaries["t"].Max)
}

func TestStore_ConcurrentIncrementsWithDrains(t *testing.T) {
	s := NewStore()

	const (
		workers    = 16
		perWorker  = 2000
		drainEvery = time.Millisecond
	)

	var (
		wg    sync.WaitGroup
		total float64
		mu    sync.Mutex
		stop  = make(chan struct{})
		done  = make(chan struct{})
	)

	go func() {
		defer close(done)

		ticker := time.NewTicker(drainEvery)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				snap := s.Drain()

				mu.Lock()
				total += snap.Counters["hits"]
				mu.Unlock()
			}
		}
	}()

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < perWorker; j++ {
				s.Increment("hits", 1)
			}
		}()
	}

	wg.Wait()
	close(stop)
	<-done

	total += s.Drain().Counters["hits"]

	assert.Equal(t, float64(workers*perWorker), total)
}

func TestStore_ConcurrentTimings(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup

	for i := 1; i <= 50; i++ {
		wg.Add(1)

		go func(v float64) {
			defer wg.Done()
			s.ObserveTiming("t", v)
		}(float64(i))
	}

	wg.Wait()

	sum := s.Drain().Summaries["t"]

	assert.Equal(t, uint64(50), sum.Count)
	assert.Equal(t, 1275.0, sum.Sum)
	assert.Equal(t, 1.0, sum.Min)
	assert.Equal(t, 50.0, sum.Max)
}
