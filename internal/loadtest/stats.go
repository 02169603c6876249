package loadtest

import (
	"sync"
	"time"

	"cloudpose/internal/services/posesvc"
)

// EndpointStats aggregates outcomes for one endpoint (or all of them).
type EndpointStats struct {
	Requests      int64
	Failures      int64
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
}

// SuccessPercent returns the share of requests that succeeded. No requests
// counts as zero.
func (s EndpointStats) SuccessPercent() float64 {
	if s.Requests == 0 {
		return 0
	}
	return 100 * float64(s.Requests-s.Failures) / float64(s.Requests)
}

// AvgResponseMS returns the mean response time in milliseconds.
func (s EndpointStats) AvgResponseMS() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.TotalDuration) / float64(s.Requests) / float64(time.Millisecond)
}

func (s *EndpointStats) add(elapsed time.Duration, failed bool) {
	s.Requests++
	if failed {
		s.Failures++
	}
	s.TotalDuration += elapsed
	if s.MinDuration == 0 || elapsed < s.MinDuration {
		s.MinDuration = elapsed
	}
	if elapsed > s.MaxDuration {
		s.MaxDuration = elapsed
	}
}

type collector struct {
	mu        sync.Mutex
	endpoints map[posesvc.Operation]*EndpointStats
	total     EndpointStats
}

func newCollector() *collector {
	c := &collector{endpoints: map[posesvc.Operation]*EndpointStats{}}
	for _, op := range posesvc.Operations() {
		c.endpoints[op] = &EndpointStats{}
	}
	return c
}

func (c *collector) record(op posesvc.Operation, elapsed time.Duration, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := c.endpoints[op]
	if !ok {
		stats = &EndpointStats{}
		c.endpoints[op] = stats
	}
	stats.add(elapsed, failed)
	c.total.add(elapsed, failed)
}

func (c *collector) snapshot() (map[posesvc.Operation]EndpointStats, EndpointStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[posesvc.Operation]EndpointStats, len(c.endpoints))
	for op, stats := range c.endpoints {
		out[op] = *stats
	}
	return out, c.total
}
