package domain

import "testing"

func TestParseRequestType(t *testing.T) {
	tests := []struct {
		in     string
		want   RequestType
		wantOK bool
	}{
		{"property_search", RequestTypePropertySearch, true},
		{"market_analysis", RequestTypeMarketAnalysis, true},
		{"lead_scoring", RequestTypeLeadScoring, true},
		{"deal_analysis", RequestTypeDealAnalysis, true},
		{"attom_api", "", false},
		{"PROPERTY_SEARCH", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRequestType(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseRequestType(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAttomAPI_NotPublic(t *testing.T) {
	if RequestTypeAttomAPI.IsPublic() {
		t.Error("attom_api must not be public")
	}
	for _, rt := range PublicRequestTypes() {
		if !rt.IsPublic() {
			t.Errorf("%s should be public", rt)
		}
	}
}

func TestFields_CloneIsDeep(t *testing.T) {
	orig := Fields{
		"tax_data": Fields{"assessed_value": 720000},
		"history":  []any{map[string]any{"price": 1}},
	}
	c := orig.Clone()
	c["tax_data"].(Fields)["assessed_value"] = 1
	c["history"].([]any)[0].(Fields)["price"] = 2

	if orig["tax_data"].(Fields)["assessed_value"] != 720000 {
		t.Error("nested Fields mutated through clone")
	}
	if orig["history"].([]any)[0].(map[string]any)["price"] != 1 {
		t.Error("nested slice mutated through clone")
	}
}

func TestResponse_CloneIndependent(t *testing.T) {
	r := &Response{
		Data:     []byte(`[1]`),
		Metadata: Metadata{DataSources: []string{"mock"}, EnrichmentUsage: &EnrichmentUsage{TotalCalls: 1}},
	}
	c := r.Clone()
	c.Data[0] = '{'
	c.Metadata.DataSources[0] = "x"
	c.Metadata.EnrichmentUsage.TotalCalls = 9

	if string(r.Data) != "[1]" {
		t.Errorf("Data mutated: %s", r.Data)
	}
	if r.Metadata.DataSources[0] != "mock" {
		t.Error("DataSources mutated")
	}
	if r.Metadata.EnrichmentUsage.TotalCalls != 1 {
		t.Error("EnrichmentUsage mutated")
	}
}
