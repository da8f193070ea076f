package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

func TestValidate_PropertySearch_Valid(t *testing.T) {
	p, err := Validate(domain.RequestTypePropertySearch, map[string]any{
		"zip_code": "37215",
		"limit":    5,
		"filters":  map[string]any{"min_price": 500000, "max_price": 1000000},
		"data_source": map[string]any{
			"enrichment": map[string]any{
				"enabled": true,
				"fields":  []any{"tax_data", "sales_history", "valuation"},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ps, ok := p.(domain.PropertySearch)
	if !ok {
		t.Fatalf("payload type = %T, want domain.PropertySearch", p)
	}
	if ps.ZipCode != "37215" || ps.Limit != 5 {
		t.Errorf("decoded = %+v", ps)
	}
	if !ps.Enrichment().Enabled || len(ps.Enrichment().Fields) != 3 {
		t.Errorf("enrichment = %+v", ps.Enrichment())
	}
}

func TestValidate_PropertySearch_DefaultLimit(t *testing.T) {
	p, err := Validate(domain.RequestTypePropertySearch, map[string]any{"zip_code": "37215"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.(domain.PropertySearch).Limit; got != DefaultLimit {
		t.Errorf("Limit = %d, want %d", got, DefaultLimit)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	tests := []struct {
		rt      domain.RequestType
		payload map[string]any
		missing []string
	}{
		{domain.RequestTypePropertySearch, map[string]any{}, []string{"zip_code"}},
		{domain.RequestTypePropertySearch, map[string]any{"zip_code": ""}, []string{"zip_code"}},
		{domain.RequestTypeMarketAnalysis, map[string]any{"metrics": []any{"median_price"}}, []string{"zip_code"}},
		{domain.RequestTypeLeadScoring, map[string]any{"owner_data": map[string]any{}}, []string{"property_data"}},
		{domain.RequestTypeDealAnalysis, map[string]any{"purchase_price": 1}, []string{"property_id", "arv"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.rt), func(t *testing.T) {
			_, err := Validate(tt.rt, tt.payload)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if strings.Join(verr.Missing, ",") != strings.Join(tt.missing, ",") {
				t.Errorf("Missing = %v, want %v", verr.Missing, tt.missing)
			}
			if !strings.Contains(err.Error(), "Missing required fields") {
				t.Errorf("error %q should mention missing fields", err.Error())
			}
		})
	}
}

func TestValidate_InvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		rt      domain.RequestType
		payload map[string]any
		field   string
	}{
		{"short zip", domain.RequestTypePropertySearch, map[string]any{"zip_code": "372"}, "zip_code"},
		{"alpha zip", domain.RequestTypeMarketAnalysis, map[string]any{"zip_code": "3721a"}, "zip_code"},
		{"zip wrong type", domain.RequestTypePropertySearch, map[string]any{"zip_code": 37215}, "zip_code"},
		{"limit too high", domain.RequestTypePropertySearch, map[string]any{"zip_code": "37215", "limit": 500}, "limit"},
		{"negative limit", domain.RequestTypePropertySearch, map[string]any{"zip_code": "37215", "limit": -1}, "limit"},
		{"inverted price range", domain.RequestTypePropertySearch, map[string]any{
			"zip_code": "37215",
			"filters":  map[string]any{"min_price": 900000, "max_price": 100000},
		}, "price_range"},
		{"unknown enrichment field", domain.RequestTypePropertySearch, map[string]any{
			"zip_code":    "37215",
			"data_source": map[string]any{"enrichment": map[string]any{"enabled": true, "fields": []any{"mortgage"}}},
		}, "enrichment_fields"},
		{"zero purchase price", domain.RequestTypeDealAnalysis, map[string]any{
			"property_id": "p1", "purchase_price": 0.0, "arv": 600000,
		}, "purchase_price"},
		{"lead zip", domain.RequestTypeLeadScoring, map[string]any{
			"property_data": map[string]any{"zip_code": "1"},
		}, "zip_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.rt, tt.payload)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if _, ok := verr.Fields()[tt.field]; !ok {
				t.Errorf("Fields() = %v, want key %q", verr.Fields(), tt.field)
			}
			if !strings.HasPrefix(err.Error(), "Validation failed") {
				t.Errorf("error = %q", err.Error())
			}
		})
	}
}

func TestValidate_DisabledEnrichmentFieldsIgnored(t *testing.T) {
	_, err := Validate(domain.RequestTypePropertySearch, map[string]any{
		"zip_code":    "37215",
		"data_source": map[string]any{"enrichment": map[string]any{"enabled": false, "fields": []any{"bogus"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UnsupportedType(t *testing.T) {
	for _, rt := range []domain.RequestType{domain.RequestTypeAttomAPI, "title_search", ""} {
		_, err := Validate(rt, map[string]any{"zip_code": "37215"})
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Validate(%q) error = %v, want ErrUnsupportedType", rt, err)
		}
	}
}

func TestValidate_AllPublicTypesHaveSchema(t *testing.T) {
	for _, rt := range domain.PublicRequestTypes() {
		if _, err := RequiredFields(rt); err != nil {
			t.Errorf("RequiredFields(%s): %v", rt, err)
		}
	}
}

func TestValidate_DealAnalysis(t *testing.T) {
	p, err := Validate(domain.RequestTypeDealAnalysis, map[string]any{
		"property_id":     "test123",
		"purchase_price":  400000,
		"repair_estimate": 50000,
		"arv":             600000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := p.(domain.DealAnalysis)
	if d.ARV != 600000 || d.RepairEstimate != 50000 {
		t.Errorf("decoded = %+v", d)
	}
}
