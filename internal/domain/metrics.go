package domain

import "time"

// RequestMetrics records one inbound request. It is created at dispatch and
// never mutated once EndTime is set.
type RequestMetrics struct {
	RequestID     string      `json:"request_id"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	RequestType   RequestType `json:"request_type"`
	Subject       string      `json:"subject,omitempty"` // audit only

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`

	StatusCode int    `json:"status_code"`
	DataSource Source `json:"data_source,omitempty"`
	CacheHit   bool   `json:"cache_hit"`
	Error      string `json:"error,omitempty"`
}

// Completed reports whether the record has been finalized.
func (m RequestMetrics) Completed() bool {
	return !m.EndTime.IsZero()
}

// ResponseTime is the wall time between start and end; zero until completed.
func (m RequestMetrics) ResponseTime() time.Duration {
	if !m.Completed() {
		return 0
	}
	return m.EndTime.Sub(m.StartTime)
}
