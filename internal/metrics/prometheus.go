package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Gateway metrics
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	rateLimitDecisions *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
	enrichmentTotal    *prometheus.CounterVec
	enrichmentDuration prometheus.Histogram
	cacheEntries       prometheus.Gauge
	cacheEvictedTotal  prometheus.Counter

	// Archive metrics
	bufferSize         prometheus.Gauge
	bufferCapacity     prometheus.Gauge
	emitErrorsTotal    prometheus.Counter
	archiveWritesTotal *prometheus.CounterVec

	// Janitor metrics
	sweepDuration      prometheus.Histogram
	sweptRequestsTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initGatewayMetrics(reg)
	s.initArchiveMetrics(reg)
	s.initJanitorMetrics(reg)
	return s
}

func (s *PrometheusSink) initGatewayMetrics(reg prometheus.Registerer) {
	s.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reicgw_requests_total",
		Help: "Total number of handled requests.",
	}, []string{"request_type", "status_class", "source", "cache_hit"})

	s.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reicgw_request_duration_seconds",
		Help:    "End-to-end gateway latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"request_type"})

	s.rateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reicgw_ratelimit_decisions_total",
		Help: "Rate-limit reservations by bucket and outcome.",
	}, []string{"bucket", "outcome"})

	s.breakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reicgw_breaker_transitions_total",
		Help: "Circuit breaker state transitions by key and target state.",
	}, []string{"key", "state"})

	s.enrichmentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reicgw_enrichment_total",
		Help: "Enrichment attempts and skips by outcome.",
	}, []string{"outcome", "error_class"})

	s.enrichmentDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reicgw_enrichment_duration_seconds",
		Help:    "Enrichment call latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	s.cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reicgw_cache_entries",
		Help: "Number of entries in the response cache.",
	})

	s.cacheEvictedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reicgw_cache_evicted_total",
		Help: "Total number of expired cache entries removed by sweeps.",
	})

	s.register(reg, s.requestsTotal, "reicgw_requests_total")
	s.register(reg, s.requestDuration, "reicgw_request_duration_seconds")
	s.register(reg, s.rateLimitDecisions, "reicgw_ratelimit_decisions_total")
	s.register(reg, s.breakerTransitions, "reicgw_breaker_transitions_total")
	s.register(reg, s.enrichmentTotal, "reicgw_enrichment_total")
	s.register(reg, s.enrichmentDuration, "reicgw_enrichment_duration_seconds")
	s.register(reg, s.cacheEntries, "reicgw_cache_entries")
	s.register(reg, s.cacheEvictedTotal, "reicgw_cache_evicted_total")
}

func (s *PrometheusSink) initArchiveMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reicgw_archive_buffer_size",
		Help: "Current number of records waiting in the archive buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reicgw_archive_buffer_capacity",
		Help: "Capacity of the archive buffer.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reicgw_archive_emit_errors_total",
		Help: "Total number of records dropped because the buffer was full.",
	})
	s.archiveWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reicgw_archive_writes_total",
		Help: "Total number of archive writes by result.",
	}, []string{"result"})

	s.register(reg, s.bufferSize, "reicgw_archive_buffer_size")
	s.register(reg, s.bufferCapacity, "reicgw_archive_buffer_capacity")
	s.register(reg, s.emitErrorsTotal, "reicgw_archive_emit_errors_total")
	s.register(reg, s.archiveWritesTotal, "reicgw_archive_writes_total")
}

func (s *PrometheusSink) initJanitorMetrics(reg prometheus.Registerer) {
	s.sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reicgw_janitor_sweep_duration_seconds",
		Help:    "Duration of each janitor sweep in seconds.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
	})
	s.sweptRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reicgw_janitor_swept_requests_total",
		Help: "Total number of finished request records removed by the janitor.",
	})

	s.register(reg, s.sweepDuration, "reicgw_janitor_sweep_duration_seconds")
	s.register(reg, s.sweptRequestsTotal, "reicgw_janitor_swept_requests_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Gateway metrics implementation

func (s *PrometheusSink) RequestCompleted(rt, class, src string, hit bool, d time.Duration) {
	s.requestsTotal.WithLabelValues(rt, class, src, strconv.FormatBool(hit)).Inc()
	s.requestDuration.WithLabelValues(rt).Observe(d.Seconds())
}

func (s *PrometheusSink) RateLimitDecision(bucket, outcome string) {
	s.rateLimitDecisions.WithLabelValues(bucket, outcome).Inc()
}

func (s *PrometheusSink) BreakerTransition(key, state string) {
	s.breakerTransitions.WithLabelValues(key, state).Inc()
}

func (s *PrometheusSink) EnrichmentOutcome(outcome, errorClass string, d time.Duration) {
	s.enrichmentTotal.WithLabelValues(outcome, errorClass).Inc()
	if d > 0 {
		s.enrichmentDuration.Observe(d.Seconds())
	}
}

func (s *PrometheusSink) CacheSizeUpdate(size int) {
	s.cacheEntries.Set(float64(size))
}

func (s *PrometheusSink) CacheEvicted(count int) {
	s.cacheEvictedTotal.Add(float64(count))
}

// Archive metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

func (s *PrometheusSink) ArchiveWrite(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	s.archiveWritesTotal.WithLabelValues(result).Inc()
}

// Janitor metrics implementation

func (s *PrometheusSink) SweepCompleted(d time.Duration, metricsRemoved int) {
	s.sweepDuration.Observe(d.Seconds())
	s.sweptRequestsTotal.Add(float64(metricsRemoved))
}
