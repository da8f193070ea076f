package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) RequestCompleted(rt, class, src string, hit bool, d time.Duration) {}
func (n *NoopSink) RateLimitDecision(bucket, outcome string)                          {}
func (n *NoopSink) BreakerTransition(key, state string)                               {}
func (n *NoopSink) EnrichmentOutcome(outcome, errorClass string, d time.Duration)     {}
func (n *NoopSink) CacheSizeUpdate(size int)                                          {}
func (n *NoopSink) CacheEvicted(count int)                                            {}
func (n *NoopSink) BufferSizeUpdate(size int)                                         {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                    {}
func (n *NoopSink) EmitError()                                                        {}
func (n *NoopSink) ArchiveWrite(ok bool)                                              {}
func (n *NoopSink) SweepCompleted(d time.Duration, metricsRemoved int)                {}
