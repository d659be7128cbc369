package tick_test

import (
	"sync"
	"testing"
	"time"

	"github.com/nm-morais/go-boxtimer/pkg/errors"
	"github.com/nm-morais/go-boxtimer/pkg/tick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deltaCollector struct {
	mu     sync.Mutex
	deltas []time.Duration
}

func (c *deltaCollector) deliver(d time.Duration) {
	c.mu.Lock()
	c.deltas = append(c.deltas, d)
	c.mu.Unlock()
}

func (c *deltaCollector) sum() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.deltas {
		total += d
	}
	return total
}

func (c *deltaCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deltas)
}

func (c *deltaCollector) snapshot() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.deltas))
	copy(out, c.deltas)
	return out
}

func (c *deltaCollector) max() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var max time.Duration
	for _, d := range c.deltas {
		if d > max {
			max = d
		}
	}
	return max
}

func TestDeltasSumToWallClock(t *testing.T) {
	src := tick.NewMonotonicSource(10 * time.Millisecond)
	col := &deltaCollector{}

	started := time.Now()
	require.Nil(t, src.Start(col.deliver))
	time.Sleep(250 * time.Millisecond)
	src.Stop()
	elapsed := time.Since(started)

	require.Greater(t, col.count(), 0)
	for _, d := range col.snapshot() {
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
	// The last partial interval is unreported; everything delivered must
	// stay within one scheduling granularity of the wall clock.
	assert.LessOrEqual(t, col.sum(), elapsed)
	assert.InDelta(t, float64(elapsed), float64(col.sum()), float64(100*time.Millisecond))
}

func TestDelayedConsumerGetsOneLargeDelta(t *testing.T) {
	src := tick.NewMonotonicSource(10 * time.Millisecond)
	col := &deltaCollector{}
	var once sync.Once

	started := time.Now()
	require.Nil(t, src.Start(func(d time.Duration) {
		// Simulates a throttled host suspending the consumer.
		once.Do(func() { time.Sleep(120 * time.Millisecond) })
		col.deliver(d)
	}))
	time.Sleep(250 * time.Millisecond)
	src.Stop()
	elapsed := time.Since(started)

	assert.GreaterOrEqual(t, col.max(), 100*time.Millisecond)
	assert.InDelta(t, float64(elapsed), float64(col.sum()), float64(100*time.Millisecond))
}

func TestNoDeliveriesAfterStop(t *testing.T) {
	src := tick.NewMonotonicSource(5 * time.Millisecond)
	col := &deltaCollector{}
	require.Nil(t, src.Start(col.deliver))
	time.Sleep(50 * time.Millisecond)
	src.Stop()

	settled := col.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, col.count())
}

func TestRestartResetsBaseline(t *testing.T) {
	src := tick.NewMonotonicSource(10 * time.Millisecond)
	col := &deltaCollector{}
	require.Nil(t, src.Start(col.deliver))
	time.Sleep(50 * time.Millisecond)
	src.Stop()

	// None of the stopped interval may be attributed to the timer.
	time.Sleep(150 * time.Millisecond)

	resumed := &deltaCollector{}
	require.Nil(t, src.Start(resumed.deliver))
	time.Sleep(50 * time.Millisecond)
	src.Stop()

	require.Greater(t, resumed.count(), 0)
	first := resumed.snapshot()[0]
	assert.Less(t, first, 100*time.Millisecond)
}

func TestStartWhileRunningFails(t *testing.T) {
	src := tick.NewMonotonicSource(10 * time.Millisecond)
	col := &deltaCollector{}
	require.Nil(t, src.Start(col.deliver))
	defer src.Stop()

	err := src.Start(col.deliver)
	require.NotNil(t, err)
	assert.Equal(t, errors.TickSourceUnavailable, err.Code())
}

func TestStartRejectsNilConsumer(t *testing.T) {
	src := tick.NewMonotonicSource(10 * time.Millisecond)
	err := src.Start(nil)
	require.NotNil(t, err)
	assert.Equal(t, errors.TickSourceUnavailable, err.Code())
}
