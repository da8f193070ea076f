// Package schema validates raw request payloads and decodes them into the
// typed variants in package domain.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

// Search limits.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var required = map[domain.RequestType][]string{
	domain.RequestTypePropertySearch: {"zip_code"},
	domain.RequestTypeMarketAnalysis: {"zip_code"},
	domain.RequestTypeLeadScoring:    {"property_data"},
	domain.RequestTypeDealAnalysis:   {"property_id", "purchase_price", "arv"},
}

// RequiredFields returns the minimal field set for rt, or ErrUnsupportedType.
func RequiredFields(rt domain.RequestType) ([]string, error) {
	fields, ok := required[rt]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, rt)
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out, nil
}

// Validate checks raw against the schema for rt and returns the typed payload.
// Errors are either ErrUnsupportedType (wrapped) or *ValidationError.
func Validate(rt domain.RequestType, raw map[string]any) (domain.Payload, error) {
	fields, err := RequiredFields(rt)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	for _, f := range fields {
		if isMissing(raw[f]) {
			verr.Missing = append(verr.Missing, f)
		}
	}
	if !verr.empty() {
		return nil, verr
	}

	var p domain.Payload
	switch rt {
	case domain.RequestTypePropertySearch:
		var v domain.PropertySearch
		if decode(raw, &v, verr) {
			validateZip(v.ZipCode, verr)
			validateLimit(&v, verr)
			validateFilters(v.Filters, verr)
		}
		p = v
	case domain.RequestTypeMarketAnalysis:
		var v domain.MarketAnalysis
		if decode(raw, &v, verr) {
			validateZip(v.ZipCode, verr)
		}
		p = v
	case domain.RequestTypeLeadScoring:
		var v domain.LeadScoring
		if decode(raw, &v, verr) {
			if z := v.ZipCode(); z != "" {
				validateZip(z, verr)
			}
		}
		p = v
	case domain.RequestTypeDealAnalysis:
		var v domain.DealAnalysis
		if decode(raw, &v, verr) {
			if v.PurchasePrice <= 0 {
				verr.addInvalid("purchase_price", "must be positive")
			}
			if v.ARV <= 0 {
				verr.addInvalid("arv", "must be positive")
			}
			if v.RepairEstimate < 0 {
				verr.addInvalid("repair_estimate", "must not be negative")
			}
			if v.ZipCode != "" {
				validateZip(v.ZipCode, verr)
			}
		}
		p = v
	}

	if verr.empty() {
		validateEnrichment(p.Enrichment(), verr)
	}
	if !verr.empty() {
		return nil, verr
	}
	return p, nil
}

func isMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	default:
		return false
	}
}

// decode round-trips raw through JSON into dst, recording type mismatches.
func decode(raw map[string]any, dst any, verr *ValidationError) bool {
	b, err := json.Marshal(raw)
	if err != nil {
		verr.addInvalid("payload", "not serializable")
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			verr.addInvalid(typeErr.Field, "must be "+typeErr.Type.String())
		} else {
			verr.addInvalid("payload", err.Error())
		}
		return false
	}
	return true
}

func validateZip(zip string, verr *ValidationError) {
	if len(zip) != 5 {
		verr.addInvalid("zip_code", "Invalid zip code format")
		return
	}
	for _, c := range zip {
		if c < '0' || c > '9' {
			verr.addInvalid("zip_code", "Invalid zip code format")
			return
		}
	}
}

func validateLimit(v *domain.PropertySearch, verr *ValidationError) {
	switch {
	case v.Limit < 0:
		verr.addInvalid("limit", "must not be negative")
	case v.Limit > MaxLimit:
		verr.addInvalid("limit", fmt.Sprintf("must not exceed %d", MaxLimit))
	case v.Limit == 0:
		v.Limit = DefaultLimit
	}
}

func validateFilters(f domain.SearchFilters, verr *ValidationError) {
	if f.MaxPrice == nil {
		return
	}
	minPrice := 0.0
	if f.MinPrice != nil {
		minPrice = *f.MinPrice
	}
	if minPrice >= *f.MaxPrice {
		verr.addInvalid("price_range", "Minimum price must be less than maximum price")
	}
}

func validateEnrichment(e domain.EnrichmentRequest, verr *ValidationError) {
	if !e.Enabled {
		return
	}
	for _, f := range e.Fields {
		if !domain.IsEnrichmentField(f) {
			verr.addInvalid("enrichment_fields", "Invalid field: "+f)
		}
	}
}
