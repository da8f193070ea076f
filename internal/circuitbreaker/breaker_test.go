package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/testutil"
)

const key = domain.RequestTypePropertySearch

func newTestBreaker(threshold int, cooldown time.Duration) (*CircuitBreaker, *testutil.FakeClock) {
	clock := testutil.NewFakeClock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	return New(threshold, cooldown).WithClock(clock.Now), clock
}

func tripBreaker(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.RecordFailure(key)
	}
}

func TestAllow_UnknownKey_Allowed(t *testing.T) {
	cb, _ := newTestBreaker(3, 5*time.Second)
	if err := cb.Allow(key); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllow_BelowThreshold_Allowed(t *testing.T) {
	cb, _ := newTestBreaker(3, 5*time.Second)
	tripBreaker(cb, 2)
	if err := cb.Allow(key); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllow_AtThreshold_Open(t *testing.T) {
	cb, _ := newTestBreaker(3, 5*time.Second)
	tripBreaker(cb, 3)
	if err := cb.Allow(key); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestAllow_OpenAfterCooldown_HalfOpen(t *testing.T) {
	cb, clock := newTestBreaker(3, 10*time.Second)
	tripBreaker(cb, 3)
	clock.Advance(10 * time.Second)
	if err := cb.Allow(key); err != nil {
		t.Fatalf("expected nil (probe allowed), got %v", err)
	}
	if err := cb.Allow(key); err == nil {
		t.Fatal("expected ErrCircuitOpen while half-open probe in flight")
	}
}

func TestRelease_FreesProbe(t *testing.T) {
	cb, clock := newTestBreaker(3, 10*time.Second)
	tripBreaker(cb, 3)
	clock.Advance(11 * time.Second)
	if err := cb.Allow(key); err != nil {
		t.Fatalf("probe: %v", err)
	}
	cb.Release(key)
	if err := cb.Allow(key); err != nil {
		t.Fatalf("expected second probe after release, got %v", err)
	}
}

func TestRecordSuccess_ResetsToClosed(t *testing.T) {
	cb, clock := newTestBreaker(3, 10*time.Second)
	tripBreaker(cb, 3)
	clock.Advance(15 * time.Second)
	cb.Allow(key)
	cb.RecordSuccess(key)
	if err := cb.Allow(key); err != nil {
		t.Fatalf("expected nil after reset, got %v", err)
	}
	if s := cb.State(key); s.ConsecutiveFailures != 0 || s.State != "closed" {
		t.Errorf("state after reset = %+v", s)
	}
}

func TestRecordFailure_HalfOpenReOpens(t *testing.T) {
	cb, clock := newTestBreaker(3, 10*time.Second)
	tripBreaker(cb, 3)
	clock.Advance(15 * time.Second)
	cb.Allow(key)
	cb.RecordFailure(key)
	if err := cb.Allow(key); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after probe failure re-open, got %v", err)
	}
}

func TestRecordSuccess_ClosedState_NoOp(t *testing.T) {
	cb, _ := newTestBreaker(3, 5*time.Second)
	cb.RecordSuccess(key)
	if err := cb.Allow(key); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIndependentKeys(t *testing.T) {
	cb, _ := newTestBreaker(2, 5*time.Second)
	cb.RecordFailure(domain.RequestTypeDealAnalysis)
	cb.RecordFailure(domain.RequestTypeDealAnalysis)
	if err := cb.Allow(domain.RequestTypeDealAnalysis); err == nil {
		t.Fatal("expected deal_analysis open")
	}
	if err := cb.Allow(domain.RequestTypeLeadScoring); err != nil {
		t.Fatalf("expected lead_scoring allowed, got %v", err)
	}
}

func TestState_IsOpenInvariant(t *testing.T) {
	cb, clock := newTestBreaker(5, 5*time.Minute)

	tripBreaker(cb, 4)
	if s := cb.State(key); s.IsOpen || s.ConsecutiveFailures != 4 {
		t.Fatalf("below threshold: %+v", s)
	}

	cb.RecordFailure(key)
	if s := cb.State(key); !s.IsOpen {
		t.Fatalf("at threshold: %+v", s)
	}

	clock.Advance(4 * time.Minute)
	if s := cb.State(key); !s.IsOpen {
		t.Fatalf("inside cooldown: %+v", s)
	}

	clock.Advance(time.Minute)
	if s := cb.State(key); s.IsOpen {
		t.Fatalf("after cooldown: %+v", s)
	}
}

func TestObserver_Transitions(t *testing.T) {
	cb, clock := newTestBreaker(2, time.Second)
	var got []string
	cb.WithObserver(func(k domain.RequestType, to string) {
		got = append(got, string(k)+":"+to)
	})

	tripBreaker(cb, 2)
	clock.Advance(time.Second)
	cb.Allow(key)
	cb.RecordSuccess(key)

	want := []string{"property_search:open", "property_search:half_open", "property_search:closed"}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
