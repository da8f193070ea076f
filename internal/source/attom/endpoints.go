// Package attom is the paid enrichment source: an HTTP client for the ATTOM
// property API and a simulated provider with the same response shape.
package attom

import "github.com/lmcdonald6/reic-gateway/internal/domain"

const DefaultBaseURL = "https://api.gateway.attomdata.com/propertyapi/v1.0.0"

// PropertyEndpoint is always queried; field groups add one endpoint each.
const PropertyEndpoint = "/property/detail"

var fieldEndpoints = map[string]string{
	"tax_data":      "/assessment/detail",
	"title_data":    "/title",
	"foreclosure":   "/foreclosure",
	"sales_history": "/saleshistory/detail",
	"valuation":     "/avm/detail",
}

// Endpoints returns the endpoint paths needed for fields, property detail
// first. Unknown fields are skipped; an empty list means every group.
func Endpoints(fields []string) []string {
	if len(fields) == 0 {
		fields = domain.EnrichmentFields
	}
	out := []string{PropertyEndpoint}
	for _, f := range fields {
		if ep, ok := fieldEndpoints[f]; ok {
			out = append(out, ep)
		}
	}
	return out
}

func requestedFields(fields []string) []string {
	if len(fields) == 0 {
		return domain.EnrichmentFields
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := fieldEndpoints[f]; ok {
			out = append(out, f)
		}
	}
	return out
}
