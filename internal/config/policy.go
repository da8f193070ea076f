package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/ratelimit"
)

// PolicyFile is the on-disk form of POLICY_FILE.
//
//	rate_limits:
//	  property_search: {limit: 100, window: hour}
//	  attom_api: {limit: 400, window: month, kind: soft}
//	cache_ttls:
//	  market_analysis: 6h
//	essential_fields:
//	  property_search: [property_id, address, price]
type PolicyFile struct {
	RateLimits      map[string]RateLimitEntry `yaml:"rate_limits"`
	CacheTTLs       map[string]string         `yaml:"cache_ttls"`
	EssentialFields map[string][]string       `yaml:"essential_fields"`
}

type RateLimitEntry struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
	Kind   string `yaml:"kind"`
}

// Policy is the resolved override set.
type Policy struct {
	RateLimits      map[domain.RequestType]ratelimit.Policy
	CacheTTLs       map[domain.RequestType]time.Duration
	EssentialFields map[domain.RequestType][]string
}

// LoadPolicy reads and resolves a policy file.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes YAML policy overrides. Unknown request types, bad
// windows and a hard policy on the enrichment bucket are rejected.
func ParsePolicy(data []byte) (Policy, error) {
	var f PolicyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}

	var errs ValidationErrors
	p := Policy{
		RateLimits:      make(map[domain.RequestType]ratelimit.Policy),
		CacheTTLs:       make(map[domain.RequestType]time.Duration),
		EssentialFields: make(map[domain.RequestType][]string),
	}

	for name, e := range f.RateLimits {
		field := "rate_limits." + name
		rt, ok := policyType(name)
		if !ok {
			errs = append(errs, ValidationError{Field: field, Message: "unknown request type"})
			continue
		}
		window, err := ratelimit.ParseWindow(e.Window)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()})
			continue
		}
		kind, err := ratelimit.ParseKind(e.Kind)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()})
			continue
		}
		if e.Kind == "" && rt == domain.RequestTypeAttomAPI {
			kind = ratelimit.Soft
		}
		if rt == domain.RequestTypeAttomAPI && kind != ratelimit.Soft {
			errs = append(errs, ValidationError{Field: field, Message: "enrichment quota must be soft"})
			continue
		}
		if rt != domain.RequestTypeAttomAPI && kind != ratelimit.Hard {
			errs = append(errs, ValidationError{Field: field, Message: "request type quotas must be hard"})
			continue
		}
		if e.Limit < 1 {
			errs = append(errs, ValidationError{Field: field, Message: "limit must be at least 1"})
			continue
		}
		p.RateLimits[rt] = ratelimit.Policy{Limit: e.Limit, Window: window, Kind: kind}
	}

	for name, s := range f.CacheTTLs {
		field := "cache_ttls." + name
		rt, ok := domain.ParseRequestType(name)
		if !ok {
			errs = append(errs, ValidationError{Field: field, Message: "unknown request type"})
			continue
		}
		if err := validatePositiveDuration(s); err != nil || s == "" {
			errs = append(errs, ValidationError{Field: field, Message: "must be a positive duration"})
			continue
		}
		p.CacheTTLs[rt] = parseDuration(s)
	}

	for name, fields := range f.EssentialFields {
		rt, ok := domain.ParseRequestType(name)
		if !ok {
			errs = append(errs, ValidationError{Field: "essential_fields." + name, Message: "unknown request type"})
			continue
		}
		p.EssentialFields[rt] = append([]string(nil), fields...)
	}

	if len(errs) > 0 {
		return Policy{}, errs
	}
	return p, nil
}

// Apply overlays the overrides on base and returns a new map.
func (p Policy) Apply(base map[domain.RequestType]ratelimit.Policy) map[domain.RequestType]ratelimit.Policy {
	out := make(map[domain.RequestType]ratelimit.Policy, len(base)+len(p.RateLimits))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range p.RateLimits {
		out[k] = v
	}
	return out
}

func policyType(name string) (domain.RequestType, bool) {
	if name == string(domain.RequestTypeAttomAPI) {
		return domain.RequestTypeAttomAPI, true
	}
	return domain.ParseRequestType(name)
}
