package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lmcdonald6/reic-gateway/internal/config"
	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/ratelimit"
)

type fakeUsageReader struct {
	readFn func(bucket domain.RequestType, period string) (map[string]int64, error)
}

func (f *fakeUsageReader) Read(_ context.Context, bucket domain.RequestType, period string) (map[string]int64, error) {
	return f.readFn(bucket, period)
}

func TestRatePolicies(t *testing.T) {
	cfg := config.Config{EnrichmentMonthlyQuota: 250}

	got := ratePolicies(cfg, config.Policy{})
	if p := got[domain.RequestTypeAttomAPI]; p.Limit != 250 || p.Kind != ratelimit.Soft || p.Window != ratelimit.Monthly {
		t.Errorf("attom policy = %+v", p)
	}

	override := config.Policy{RateLimits: map[domain.RequestType]ratelimit.Policy{
		domain.RequestTypeAttomAPI: {Limit: 1000, Window: ratelimit.Monthly, Kind: ratelimit.Soft},
	}}
	got = ratePolicies(cfg, override)
	if p := got[domain.RequestTypeAttomAPI]; p.Limit != 1000 {
		t.Errorf("policy file should win, got %+v", p)
	}
	if p := got[domain.RequestTypeMarketAnalysis]; p.Limit != 50 {
		t.Errorf("market_analysis = %+v, want stock default", p)
	}
}

func TestBuildUsageReport(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	policies := map[domain.RequestType]ratelimit.Policy{
		domain.RequestTypePropertySearch: {Limit: 100, Window: ratelimit.Hourly, Kind: ratelimit.Hard},
		domain.RequestTypeAttomAPI:       {Limit: 400, Window: ratelimit.Monthly, Kind: ratelimit.Soft},
	}
	var periods []string
	reader := &fakeUsageReader{readFn: func(bucket domain.RequestType, period string) (map[string]int64, error) {
		periods = append(periods, string(bucket)+"@"+period)
		return map[string]int64{"allowed": 3}, nil
	}}

	report, err := buildUsageReport(context.Background(), reader, policies, now)
	if err != nil {
		t.Fatalf("buildUsageReport: %v", err)
	}

	want := []usageRow{
		{Bucket: domain.RequestTypeAttomAPI, Period: "202503", Limit: 400, Kind: "soft", Counters: map[string]int64{"allowed": 3}},
		{Bucket: domain.RequestTypePropertySearch, Period: "2025031014", Limit: 100, Kind: "hard", Counters: map[string]int64{"allowed": 3}},
	}
	if diff := cmp.Diff(want, report.Buckets); diff != "" {
		t.Errorf("buckets mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"attom_api@202503", "property_search@2025031014"}, periods); diff != "" {
		t.Errorf("periods mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildUsageReport_ReadError(t *testing.T) {
	reader := &fakeUsageReader{readFn: func(domain.RequestType, string) (map[string]int64, error) {
		return nil, errors.New("redis down")
	}}
	_, err := buildUsageReport(context.Background(), reader, ratelimit.DefaultPolicies(), time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestNewSweepSchedule_UsesConfiguredTimezone(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	cfg := config.Config{CacheSweepSchedule: "0 3 * * *", CacheSweepTimezone: "America/Chicago"}

	sched, err := newSweepSchedule(cfg)
	if err != nil {
		t.Fatalf("newSweepSchedule: %v", err)
	}
	after := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	want := time.Date(2025, 1, 15, 3, 0, 0, 0, chicago)
	if got := sched.Next(after); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got.UTC(), want.UTC())
	}

	cfg.CacheSweepTimezone = "Mars/Olympus"
	if _, err := newSweepSchedule(cfg); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
