package metrics

import (
	"strings"
	"time"
)

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Gateway metrics
	RequestCompleted(requestType, statusClass, source string, cacheHit bool, duration time.Duration)
	RateLimitDecision(bucket, outcome string)
	BreakerTransition(key, state string)
	EnrichmentOutcome(outcome, errorClass string, duration time.Duration)
	CacheSizeUpdate(size int)
	CacheEvicted(count int)

	// Archive metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()
	ArchiveWrite(ok bool)

	// Janitor metrics
	SweepCompleted(duration time.Duration, metricsRemoved int)
}

// Status classes for RequestCompleted and EnrichmentOutcome.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)

// ClassifyStatus maps a status code and error to a status class.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
			return StatusClassTimeout
		case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"),
			strings.Contains(msg, "network is unreachable"), strings.Contains(msg, "dial"):
			return StatusClassConnectionError
		default:
			return StatusClassOtherError
		}
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOtherError
	}
}
