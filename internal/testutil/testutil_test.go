package testutil

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFakeClock_Now(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewFakeClock(fixed)

	got := clock.Now()
	if !got.Equal(fixed) {
		t.Errorf("Now() = %v, want %v", got, fixed)
	}
}

func TestFakeClock_Advance(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewFakeClock(fixed)

	clock.Advance(5 * time.Minute)

	want := fixed.Add(5 * time.Minute)
	got := clock.Now()
	if !got.Equal(want) {
		t.Errorf("after Advance(5m), Now() = %v, want %v", got, want)
	}
}

func TestFakeClock_Set(t *testing.T) {
	clock := NewFakeClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	next := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(next)
	if !clock.Now().Equal(next) {
		t.Errorf("Now() = %v, want %v", clock.Now(), next)
	}
}

func TestTestContext_HasDeadline(t *testing.T) {
	ctx := TestContext(t)

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("TestContext should have a deadline")
	}

	remaining := time.Until(deadline)
	if remaining <= 0 || remaining > 6*time.Second {
		t.Errorf("deadline should be ~5s from now, got %v", remaining)
	}
}

func TestPropertySearch(t *testing.T) {
	p := PropertySearch("37215", 5, "tax_data")
	if p["zip_code"] != "37215" || p["limit"] != 5 {
		t.Errorf("payload = %v", p)
	}
	if _, ok := p["data_source"]; !ok {
		t.Error("expected data_source when fields are given")
	}
	if _, ok := PropertySearch("37215", 0)["limit"]; ok {
		t.Error("limit should be omitted when zero")
	}
}

func TestDecodeItems(t *testing.T) {
	items := DecodeItems(t, json.RawMessage(`[{"a":1},{"a":2}]`))
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
}

func TestIsUUID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"12345678-1234-1234-1234-123456789abc", true},
		{"property_search_12345678-1234-1234-1234-123456789abc", true},
		{"not-a-uuid", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsUUID(tt.in); got != tt.want {
			t.Errorf("IsUUID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
