package source

import (
	"context"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

// BaselineProvider supplies the free, always-available records for a request.
type BaselineProvider interface {
	Baseline(ctx context.Context, p domain.Payload) ([]domain.Fields, error)
}

// EnrichmentQuery asks the paid source for field groups covering records.
type EnrichmentQuery struct {
	Fields  []string
	ZipCode string
	Records []domain.Fields
}

// Enrichment holds one Fields per queried record, in the same order, each
// carrying only enrichment field groups.
type Enrichment struct {
	Records   []domain.Fields
	Endpoints []string
}

// EnrichmentProvider fetches paid field groups. Any error, including a
// context deadline, is treated as a failed dispatch.
type EnrichmentProvider interface {
	Enrich(ctx context.Context, q EnrichmentQuery) (Enrichment, error)
}

// zipOf extracts the zip code a payload is scoped to, if any.
func zipOf(p domain.Payload) string {
	switch v := p.(type) {
	case domain.PropertySearch:
		return v.ZipCode
	case domain.MarketAnalysis:
		return v.ZipCode
	case domain.LeadScoring:
		return v.ZipCode()
	case domain.DealAnalysis:
		return v.ZipCode
	default:
		return ""
	}
}
