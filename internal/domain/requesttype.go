package domain

// RequestType identifies the kind of request the gateway serves. It keys
// rate-limit buckets, breaker state and cache namespaces.
type RequestType string

const (
	RequestTypePropertySearch RequestType = "property_search"
	RequestTypeMarketAnalysis RequestType = "market_analysis"
	RequestTypeLeadScoring    RequestType = "lead_scoring"
	RequestTypeDealAnalysis   RequestType = "deal_analysis"

	// RequestTypeAttomAPI is internal. It keys the paid enrichment quota and
	// breaker and is never accepted from callers.
	RequestTypeAttomAPI RequestType = "attom_api"
)

var publicTypes = []RequestType{
	RequestTypePropertySearch,
	RequestTypeMarketAnalysis,
	RequestTypeLeadScoring,
	RequestTypeDealAnalysis,
}

// PublicRequestTypes returns the request types callers may submit.
func PublicRequestTypes() []RequestType {
	out := make([]RequestType, len(publicTypes))
	copy(out, publicTypes)
	return out
}

// ParseRequestType maps a wire name to a RequestType. Unknown names and the
// internal enrichment type report false.
func ParseRequestType(s string) (RequestType, bool) {
	for _, t := range publicTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// IsPublic reports whether callers may submit t.
func (t RequestType) IsPublic() bool {
	_, ok := ParseRequestType(string(t))
	return ok
}

func (t RequestType) String() string {
	return string(t)
}
