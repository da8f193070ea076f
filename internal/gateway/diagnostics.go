package gateway

import (
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/auth"
	"github.com/lmcdonald6/reic-gateway/internal/cache"
	"github.com/lmcdonald6/reic-gateway/internal/circuitbreaker"
	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/ratelimit"
)

// UsageReport is a point-in-time view of quota, breaker and cache state.
type UsageReport struct {
	Buckets  []ratelimit.Usage                              `json:"buckets"`
	Breakers map[domain.RequestType]circuitbreaker.Snapshot `json:"breakers"`
	Cache    cache.Stats                                    `json:"cache"`
}

// SweepResult counts what one maintenance pass removed.
type SweepResult struct {
	CacheEntries int           `json:"cache_entries"`
	Metrics      int           `json:"metrics"`
	Counters     int           `json:"counters"`
	Duration     time.Duration `json:"duration"`
}

// Metrics returns the record for a request id.
func (g *Gateway) Metrics(requestID string) (domain.RequestMetrics, bool) {
	return g.recorder.Get(requestID)
}

func (g *Gateway) Usage() UsageReport {
	return UsageReport{
		Buckets:  g.limiter.UsageAll(),
		Breakers: g.breaker.States(),
		Cache:    g.cache.Stats(),
	}
}

// SeedUsage overwrites the committed count of a bucket's current window.
func (g *Gateway) SeedUsage(bucket domain.RequestType, used int) {
	g.limiter.Set(bucket, used)
}

// Sweep drops expired cache entries, finished metrics older than retention
// and counters from past windows.
func (g *Gateway) Sweep(retention time.Duration) SweepResult {
	start := time.Now()
	res := SweepResult{
		CacheEntries: g.cache.Sweep(),
		Metrics:      g.recorder.Cleanup(retention),
		Counters:     g.limiter.Sweep(),
	}
	res.Duration = time.Since(start)

	if res.CacheEntries > 0 {
		g.sink.CacheEvicted(res.CacheEntries)
	}
	g.sink.CacheSizeUpdate(g.cache.Len())
	g.sink.SweepCompleted(res.Duration, res.Metrics)
	return res
}

// IssueToken exchanges an API key for a bearer token.
func (g *Gateway) IssueToken(apiKey string) (auth.Issued, error) {
	return g.gate.Issue(apiKey)
}
