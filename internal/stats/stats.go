// Package stats tracks process-lifetime pipeline counters (spec §4.9 /
// orchestrator get_statistics), safe for concurrent use.
package stats

import (
	"math"
	"sync"
	"time"

	"dev.helix.agent/council/internal/cache"
)

// Counter accumulates request outcomes across the process lifetime.
type Counter struct {
	mu                   sync.Mutex
	totalQueries         int64
	successfulQueries    int64
	failedQueries        int64
	cacheHits            int64
	totalProcessingTime  time.Duration
}

// New builds an empty Counter.
func New() *Counter {
	return &Counter{}
}

// RecordQueryStart increments the total-queries counter.
func (c *Counter) RecordQueryStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalQueries++
}

// RecordCacheHit increments the cache-hit counter.
func (c *Counter) RecordCacheHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheHits++
}

// RecordSuccess records a completed request's processing time.
func (c *Counter) RecordSuccess(duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successfulQueries++
	c.totalProcessingTime += duration
}

// RecordFailure increments the failed-queries counter.
func (c *Counter) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedQueries++
}

// Snapshot is an immutable view of the counters at a point in time.
type Snapshot struct {
	TotalQueries            int64       `json:"total_queries"`
	SuccessfulQueries       int64       `json:"successful_queries"`
	FailedQueries           int64       `json:"failed_queries"`
	CacheHits               int64       `json:"cache_hits"`
	AverageProcessingTime   float64     `json:"average_processing_time"`
	CacheStats              cache.Stats `json:"cache_stats"`
}

// Snapshot returns the current counter values along with cacheStats,
// deriving average_processing_time from successful queries only.
func (c *Counter) Snapshot(cacheStats cache.Stats) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var avg float64
	if c.successfulQueries > 0 {
		avg = c.totalProcessingTime.Seconds() / float64(c.successfulQueries)
	}

	return Snapshot{
		TotalQueries:          c.totalQueries,
		SuccessfulQueries:     c.successfulQueries,
		FailedQueries:         c.failedQueries,
		CacheHits:             c.cacheHits,
		AverageProcessingTime: round2(avg),
		CacheStats:            cacheStats,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
