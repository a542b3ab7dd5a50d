package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dev.helix.agent/council/internal/cache"
)

func TestSnapshotReflectsRecordedCounters(t *testing.T) {
	c := New()
	c.RecordQueryStart()
	c.RecordQueryStart()
	c.RecordCacheHit()
	c.RecordSuccess(2 * time.Second)
	c.RecordSuccess(4 * time.Second)
	c.RecordFailure()

	snap := c.Snapshot(cache.Stats{Enabled: true})

	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(2), snap.SuccessfulQueries)
	assert.Equal(t, int64(1), snap.FailedQueries)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, 3.0, snap.AverageProcessingTime)
	assert.True(t, snap.CacheStats.Enabled)
}

func TestSnapshotAverageIsZeroWithNoSuccesses(t *testing.T) {
	c := New()
	c.RecordFailure()

	snap := c.Snapshot(cache.Stats{})

	assert.Equal(t, 0.0, snap.AverageProcessingTime)
}

func TestCounterIsSafeForConcurrentUse(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordQueryStart()
			c.RecordSuccess(time.Millisecond)
		}()
	}
	wg.Wait()

	snap := c.Snapshot(cache.Stats{})
	assert.Equal(t, int64(100), snap.TotalQueries)
	assert.Equal(t, int64(100), snap.SuccessfulQueries)
}
