package cipher

import (
	"sync"
	"time"
)

// metrics tracks decipher request counters and timings. Counters reset only
// on process restart.
var metrics struct {
	totalRequests     int64
	cacheHits         int64
	cacheMisses       int64
	avgDecipherTime   time.Duration
	totalDecipherTime time.Duration
	mu                sync.Mutex
}

// MetricsSnapshot is a point-in-time copy of the decipher counters.
type MetricsSnapshot struct {
	TotalRequests     int64
	CacheHits         int64
	CacheMisses       int64
	AvgDecipherTime   time.Duration
	TotalDecipherTime time.Duration
}

// Metrics returns a snapshot of the current decipher metrics.
func Metrics() MetricsSnapshot {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	return MetricsSnapshot{
		TotalRequests:     metrics.totalRequests,
		CacheHits:         metrics.cacheHits,
		CacheMisses:       metrics.cacheMisses,
		AvgDecipherTime:   metrics.avgDecipherTime,
		TotalDecipherTime: metrics.totalDecipherTime,
	}
}

func recordRequest() {
	metrics.mu.Lock()
	metrics.totalRequests++
	metrics.mu.Unlock()
}

func recordCacheHit() {
	metrics.mu.Lock()
	metrics.cacheHits++
	metrics.mu.Unlock()
}

func recordCacheMiss() {
	metrics.mu.Lock()
	metrics.cacheMisses++
	metrics.mu.Unlock()
}

func recordDecipherTime(d time.Duration) {
	metrics.mu.Lock()
	metrics.totalDecipherTime += d
	done := metrics.cacheMisses
	if done > 0 {
		metrics.avgDecipherTime = metrics.totalDecipherTime / time.Duration(done)
	}
	metrics.mu.Unlock()
}
