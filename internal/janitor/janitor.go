// Package janitor runs periodic maintenance on gateway state.
//
// On every scheduled activation it drops expired cache entries, finished
// request records older than the retention window, rate-limit counters from
// past windows and idle ingress limiters. Sweeping never changes the outcome
// of a request: expired cache entries are already misses and past-window
// counters are already ignored.
package janitor

import (
	"context"
	"log"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/cron"
	"github.com/lmcdonald6/reic-gateway/internal/gateway"
)

// Sweeper is the gateway state the janitor maintains.
type Sweeper interface {
	Sweep(retention time.Duration) gateway.SweepResult
}

// IdleCleaner drops per-client state unused for longer than ttl.
type IdleCleaner interface {
	CleanupStale(ttl time.Duration) int
}

// Config holds janitor configuration.
type Config struct {
	// Schedule decides when sweeps run.
	Schedule cron.Schedule

	// Retention is how long finished request records are kept.
	// Default: 1 hour.
	Retention time.Duration

	// IdleTTL is how long an idle ingress limiter is kept.
	// Default: 10 minutes.
	IdleTTL time.Duration
}

type Janitor struct {
	config  Config
	sweeper Sweeper
	idle    IdleCleaner
	clock   func() time.Time
}

func New(config Config, sweeper Sweeper) *Janitor {
	if config.Retention <= 0 {
		config.Retention = time.Hour
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &Janitor{
		config:  config,
		sweeper: sweeper,
		clock:   time.Now,
	}
}

// WithIdleCleaner also cleans ingress limiters on every cycle.
func (j *Janitor) WithIdleCleaner(c IdleCleaner) *Janitor {
	j.idle = c
	return j
}

// Run sweeps on every schedule activation. It blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	log.Printf("janitor: started (schedule=%s, retention=%s)", j.config.Schedule, j.config.Retention)

	for {
		now := j.clock()
		next := j.config.Schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("janitor: stopped")
			return
		case <-timer.C:
			j.RunOnce()
		}
	}
}

// RunOnce executes one maintenance cycle.
func (j *Janitor) RunOnce() gateway.SweepResult {
	res := j.sweeper.Sweep(j.config.Retention)

	limiters := 0
	if j.idle != nil {
		limiters = j.idle.CleanupStale(j.config.IdleTTL)
	}

	if res.CacheEntries == 0 && res.Metrics == 0 && res.Counters == 0 && limiters == 0 {
		return res
	}
	log.Printf("janitor: cycle complete, cache_entries=%d, metrics=%d, counters=%d, limiters=%d, duration=%s",
		res.CacheEntries, res.Metrics, res.Counters, limiters, res.Duration.Round(time.Microsecond))
	return res
}
