package domain

// Source names where item-level data came from.
type Source string

const (
	SourceMock   Source = "mock"
	SourceHybrid Source = "hybrid"
)

// Freshness marks whether data was produced for this request or replayed.
type Freshness string

const (
	FreshnessCurrent Freshness = "current"
	FreshnessCached  Freshness = "cached"
)

// FallbackReason explains why requested enrichment was not applied.
type FallbackReason string

const (
	FallbackRateLimit       FallbackReason = "rate_limit"
	FallbackCircuitOpen     FallbackReason = "circuit_open"
	FallbackEnrichmentError FallbackReason = "enrichment_error"
)

// Fields is a loosely typed record exchanged with data collaborators.
type Fields map[string]any

// Clone returns a deep copy of f. Nested Fields, maps and slices are copied;
// scalars are shared.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Fields:
		return t.Clone()
	case map[string]any:
		return Fields(t).Clone()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []Fields:
		out := make([]Fields, len(t))
		for i := range t {
			out[i] = t[i].Clone()
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// EnrichmentFields lists the field groups the paid source can supply.
var EnrichmentFields = []string{
	"tax_data",
	"title_data",
	"foreclosure",
	"sales_history",
	"valuation",
}

// IsEnrichmentField reports whether name is a known enrichment field group.
func IsEnrichmentField(name string) bool {
	for _, f := range EnrichmentFields {
		if f == name {
			return true
		}
	}
	return false
}
