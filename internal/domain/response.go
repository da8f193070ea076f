package domain

import "encoding/json"

// EncodingBinary marks envelopes destined for the binary wire format.
const EncodingBinary = "binary"

// Response is the envelope returned for every handled request, success or
// failure.
type Response struct {
	Data          json.RawMessage `json:"data,omitempty"`
	Message       string          `json:"message"`
	RequestID     string          `json:"request_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Encoding      string          `json:"encoding,omitempty"`
	Compression   string          `json:"compression,omitempty"`
	Metadata      Metadata        `json:"metadata"`

	Error             string              `json:"error,omitempty"`
	ValidationErrors  map[string][]string `json:"validation_errors,omitempty"`
	RetryAfterSeconds int                 `json:"retry_after_seconds,omitempty"`
}

type Metadata struct {
	CacheHit  bool      `json:"cache_hit"`
	Freshness Freshness `json:"freshness,omitempty"`
	CachedAt  string    `json:"cached_at,omitempty"`

	DataSource  Source   `json:"data_source,omitempty"`
	DataSources []string `json:"data_sources,omitempty"`

	RateLimitFallback   bool             `json:"rate_limit_fallback,omitempty"`
	FallbackReason      FallbackReason   `json:"fallback_reason,omitempty"`
	EnrichmentEndpoints []string         `json:"enrichment_endpoints,omitempty"`
	EnrichmentUsage     *EnrichmentUsage `json:"enrichment_usage,omitempty"`
	EnrichmentError     string           `json:"enrichment_error,omitempty"`

	RequestCorrelationID string `json:"request_correlation_id,omitempty"`
	ErrorType            string `json:"error_type,omitempty"`
}

// EnrichmentUsage reports the paid source's quota after this request.
type EnrichmentUsage struct {
	Window     string `json:"window"`
	TotalCalls int    `json:"total_calls"`
	Remaining  int    `json:"remaining"`
}

// Clone returns a copy of r that shares no mutable state with it.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	if r.Data != nil {
		out.Data = append(json.RawMessage(nil), r.Data...)
	}
	if r.ValidationErrors != nil {
		out.ValidationErrors = make(map[string][]string, len(r.ValidationErrors))
		for k, v := range r.ValidationErrors {
			out.ValidationErrors[k] = append([]string(nil), v...)
		}
	}
	out.Metadata.DataSources = append([]string(nil), r.Metadata.DataSources...)
	out.Metadata.EnrichmentEndpoints = append([]string(nil), r.Metadata.EnrichmentEndpoints...)
	if r.Metadata.EnrichmentUsage != nil {
		u := *r.Metadata.EnrichmentUsage
		out.Metadata.EnrichmentUsage = &u
	}
	return &out
}
