// Package testutil provides shared test helpers for the gateway packages.
package testutil

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// FakeClock provides deterministic time for testing.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a FakeClock set to the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set jumps the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// TestContext returns a context with a 5-second timeout.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// PropertySearch builds a raw property_search payload. Enrichment is enabled
// when fields is non-empty.
func PropertySearch(zip string, limit int, fields ...string) map[string]any {
	p := map[string]any{"zip_code": zip}
	if limit > 0 {
		p["limit"] = limit
	}
	if len(fields) > 0 {
		fs := make([]any, len(fields))
		for i, f := range fields {
			fs[i] = f
		}
		p["data_source"] = map[string]any{
			"enrichment": map[string]any{"enabled": true, "fields": fs},
		}
	}
	return p
}

// DecodeItems unmarshals a list-shaped data payload.
func DecodeItems(t *testing.T, data json.RawMessage) []map[string]any {
	t.Helper()
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("decode items: %v (data=%s)", err, data)
	}
	return items
}

// IsUUID reports whether s (optionally after a "<prefix>_") parses as a UUID.
func IsUUID(s string) bool {
	if i := strings.LastIndex(s, "_"); i >= 0 {
		s = s[i+1:]
	}
	_, err := uuid.Parse(s)
	return err == nil
}
