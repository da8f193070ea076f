package api

import (
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

type TokenRequest struct {
	APIKey string `json:"api_key"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// MetricsResponse is the wire form of one request record.
type MetricsResponse struct {
	RequestID      string `json:"request_id"`
	CorrelationID  string `json:"correlation_id,omitempty"`
	RequestType    string `json:"request_type"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time,omitempty"`
	ResponseTimeMS int64  `json:"response_time_ms"`
	StatusCode     int    `json:"status_code"`
	DataSource     string `json:"data_source,omitempty"`
	CacheHit       bool   `json:"cache_hit"`
	Error          string `json:"error,omitempty"`
	Completed      bool   `json:"completed"`
}

func toMetricsResponse(m domain.RequestMetrics) MetricsResponse {
	resp := MetricsResponse{
		RequestID:      m.RequestID,
		CorrelationID:  m.CorrelationID,
		RequestType:    string(m.RequestType),
		StartTime:      formatTime(m.StartTime),
		ResponseTimeMS: m.ResponseTime().Milliseconds(),
		StatusCode:     m.StatusCode,
		DataSource:     string(m.DataSource),
		CacheHit:       m.CacheHit,
		Error:          m.Error,
		Completed:      m.Completed(),
	}
	if m.Completed() {
		resp.EndTime = formatTime(m.EndTime)
	}
	return resp
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
