package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/ratelimit"
)

const samplePolicy = `
rate_limits:
  property_search: {limit: 500, window: hour}
  market_analysis: {limit: 10, window: minute, kind: hard}
  attom_api: {limit: 1000, window: month}
cache_ttls:
  market_analysis: 6h
essential_fields:
  property_search: [property_id, price]
`

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(samplePolicy), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}

	wantLimits := map[domain.RequestType]ratelimit.Policy{
		domain.RequestTypePropertySearch: {Limit: 500, Window: ratelimit.Hourly, Kind: ratelimit.Hard},
		domain.RequestTypeMarketAnalysis: {Limit: 10, Window: ratelimit.Minutely, Kind: ratelimit.Hard},
		domain.RequestTypeAttomAPI:       {Limit: 1000, Window: ratelimit.Monthly, Kind: ratelimit.Soft},
	}
	if diff := cmp.Diff(wantLimits, p.RateLimits); diff != "" {
		t.Errorf("rate limits mismatch (-want +got):\n%s", diff)
	}
	if p.CacheTTLs[domain.RequestTypeMarketAnalysis] != 6*time.Hour {
		t.Errorf("cache ttl = %v", p.CacheTTLs[domain.RequestTypeMarketAnalysis])
	}
	if diff := cmp.Diff([]string{"property_id", "price"}, p.EssentialFields[domain.RequestTypePropertySearch]); diff != "" {
		t.Errorf("essential fields mismatch (-want +got):\n%s", diff)
	}

	merged := p.Apply(ratelimit.DefaultPolicies())
	if merged[domain.RequestTypeLeadScoring].Limit != 200 {
		t.Errorf("untouched policy changed: %+v", merged[domain.RequestTypeLeadScoring])
	}
	if merged[domain.RequestTypePropertySearch].Limit != 500 {
		t.Errorf("override not applied: %+v", merged[domain.RequestTypePropertySearch])
	}
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParsePolicy_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"malformed", "rate_limits: [", "parse policy file"},
		{"unknown type", "rate_limits:\n  teleport: {limit: 1}", "unknown request type"},
		{"bad window", "rate_limits:\n  lead_scoring: {limit: 1, window: fortnight}", "unknown window"},
		{"soft consumer", "rate_limits:\n  lead_scoring: {limit: 1, kind: soft}", "must be hard"},
		{"hard enrichment", "rate_limits:\n  attom_api: {limit: 1, kind: hard}", "must be soft"},
		{"zero limit", "rate_limits:\n  deal_analysis: {limit: 0}", "at least 1"},
		{"bad ttl", "cache_ttls:\n  deal_analysis: soon", "positive duration"},
		{"internal ttl", "cache_ttls:\n  attom_api: 1h", "unknown request type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
