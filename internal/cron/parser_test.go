package cron

import (
	"testing"
	"time"
)

func TestParser_ValidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"default sweep", "*/10 * * * *"},
		{"hourly", "0 * * * *"},
		{"nightly", "30 2 * * *"},
		{"weekday office hours", "0 9-17 * * 1-5"},
		{"every minute", "* * * * *"},
		{"hourly descriptor", "@hourly"},
		{"every descriptor", "@every 10m"},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := p.Parse(tt.expr, "UTC")
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.expr, err)
			}
			if sched.String() != tt.expr {
				t.Errorf("String() = %q, want %q", sched.String(), tt.expr)
			}
		})
	}
}

func TestParser_InvalidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"four fields", "* * * *"},
		{"seconds field", "0 * * * * *"},
		{"minute out of range", "60 * * * *"},
		{"hour out of range", "0 25 * * *"},
		{"words", "every ten minutes"},
		{"empty", ""},
		{"blank", "   "},
		{"bad descriptor", "@fortnightly"},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Parse(tt.expr, "UTC"); err == nil {
				t.Errorf("Parse(%q) should fail", tt.expr)
			}
		})
	}
}

func TestParser_SweepTimezone(t *testing.T) {
	chicago := mustLoadLocation(t, "America/Chicago")

	tests := []struct {
		name  string
		expr  string
		tz    string
		after time.Time
		want  time.Time
	}{
		{
			name:  "empty timezone is UTC",
			expr:  "0 3 * * *",
			tz:    "",
			after: time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC),
			want:  time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC),
		},
		{
			name:  "nightly sweep in local time",
			expr:  "0 3 * * *",
			tz:    "America/Chicago",
			after: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2025, 1, 15, 3, 0, 0, 0, chicago),
		},
		{
			name:  "interval sweep ignores zone offset",
			expr:  "*/10 * * * *",
			tz:    "Asia/Kolkata",
			after: time.Date(2025, 3, 10, 14, 3, 0, 0, time.UTC),
			want:  time.Date(2025, 3, 10, 14, 10, 0, 0, time.UTC),
		},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := p.Parse(tt.expr, tt.tz)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := sched.Next(tt.after); !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.after, got.UTC(), tt.want.UTC())
			}
		})
	}
}

func TestParser_SweepSkipsMissingLocalHour(t *testing.T) {
	chicago := mustLoadLocation(t, "America/Chicago")

	// 2:30 does not exist in Chicago on 2025-03-09.
	sched, err := NewParser().Parse("30 2 * * *", "America/Chicago")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	after := time.Date(2025, 3, 9, 1, 0, 0, 0, chicago)
	next := sched.Next(after)
	if !next.After(after) {
		t.Fatalf("Next(%v) = %v, not after reference", after, next)
	}
	if next.Sub(after) > 26*time.Hour {
		t.Errorf("Next(%v) = %v, skipped more than a day", after, next)
	}
}

func TestParser_InvalidTimezone(t *testing.T) {
	for _, tz := range []string{"Mars/Olympus", "NOPE"} {
		if _, err := NewParser().Parse("*/10 * * * *", tz); err == nil {
			t.Errorf("Parse with timezone %q should fail", tz)
		}
	}
}

func TestParser_EveryDescriptor(t *testing.T) {
	sched, err := NewParser().Parse("@every 10m", "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	after := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	if next := sched.Next(after); !next.Equal(after.Add(10 * time.Minute)) {
		t.Errorf("Next(%v) = %v", after, next)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("*/10 * * * *"); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := Validate("not cron"); err == nil {
		t.Error("Validate should reject invalid expression")
	}
}

func TestValidateTimezone(t *testing.T) {
	tests := []struct {
		tz      string
		wantErr bool
	}{
		{"", false},
		{"UTC", false},
		{"America/Chicago", false},
		{"Mars/Olympus", true},
	}
	for _, tt := range tests {
		err := ValidateTimezone(tt.tz)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTimezone(%q) = %v, wantErr %v", tt.tz, err, tt.wantErr)
		}
	}
}

func mustLoadLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return loc
}
