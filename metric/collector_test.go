package metric

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordAndSnapshot(t *testing.T) {
	c := NewCollector(nil)

	c.RecordSource("t1", 10)
	c.RecordSource("t1", 20)
	c.RecordSource("t2", 5)
	c.RecordDestination("out", 35)
	c.ErrorSource("t1")
	c.ErrorDestination("out")

	snap := c.Snapshot()

	require.Contains(t, snap.Source, "t1")
	require.Contains(t, snap.Source, "t2")
	require.Contains(t, snap.Destination, "out")

	assert.Equal(t, int64(2), snap.Source["t1"].MessageCount)
	assert.Equal(t, int64(30), snap.Source["t1"].TotalBytes)
	assert.Equal(t, int64(1), snap.Source["t1"].ErrorCount)
	assert.Equal(t, int64(1), snap.Source["t2"].MessageCount)
	assert.Equal(t, int64(1), snap.Destination["out"].MessageCount)
	assert.Equal(t, int64(1), snap.Destination["out"].ErrorCount)
	assert.False(t, snap.Source["t1"].LastMessageTime.IsZero())
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestCollector_ErrorOnlyTopicAppears(t *testing.T) {
	c := NewCollector(nil)
	c.ErrorSource("never-delivered")

	snap := c.Snapshot()
	require.Contains(t, snap.Source, "never-delivered")
	assert.Equal(t, int64(0), snap.Source["never-delivered"].MessageCount)
	assert.Equal(t, int64(1), snap.Source["never-delivered"].ErrorCount)
}

func TestCollector_SnapshotIsDeepCopy(t *testing.T) {
	c := NewCollector(nil)
	c.RecordSource("t1", 1)

	snap := c.Snapshot()
	c.RecordSource("t1", 1)
	c.RecordSource("t1", 1)

	assert.Equal(t, int64(1), snap.Source["t1"].MessageCount,
		"snapshot must not observe later updates")
}

func TestCollector_ConcurrentUpdaters(t *testing.T) {
	c := NewCollector(nil)

	const goroutines = 8
	const perGoroutine = 500

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				c.RecordSource("shared", 1)
				c.RecordDestination("shared", 1)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(goroutines*perGoroutine), snap.Source["shared"].MessageCount)
	assert.Equal(t, int64(goroutines*perGoroutine), snap.Destination["shared"].MessageCount)
	assert.Equal(t, int64(goroutines*perGoroutine), snap.Source["shared"].TotalBytes)
}

func TestCollector_RateComputation(t *testing.T) {
	c := NewCollector(nil)
	for i := 0; i < 100; i++ {
		c.RecordSource("t", 1)
	}

	snap := c.Snapshot()
	require.Greater(t, snap.UptimeSeconds, 0.0)
	assert.InDelta(t, 100.0/snap.UptimeSeconds, snap.Source["t"].RatePerSecond, 0.01*snap.Source["t"].RatePerSecond+1)
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector(nil)
	c.RecordSource("t", 1)
	c.Reset()

	snap := c.Snapshot()
	assert.Empty(t, snap.Source)
	assert.Empty(t, snap.Destination)
}

func TestCollector_PrometheusMirror(t *testing.T) {
	// The mirror must not panic or interfere with accounting.
	reg := NewMetricsRegistry()
	c := NewCollector(reg.Metrics)

	c.RecordSource("t", 1)
	c.RecordDestination("out", 1)
	c.ErrorSource("t")

	snap := c.Snapshot()
	assert.Equal(t, int64(1), snap.Source["t"].MessageCount)
	assert.Equal(t, int64(1), snap.Destination["out"].MessageCount)
}
