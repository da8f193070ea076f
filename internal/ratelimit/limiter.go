// Package ratelimit enforces per-bucket call quotas over fixed time windows.
//
// A call first Reserves a slot, which counts against the quota immediately so
// concurrent callers cannot overshoot. The reservation is then either
// Committed once dispatch to the source succeeds, or Cancelled (cache hit,
// failure) which hands the slot back.
package ratelimit

import (
	"sort"
	"sync"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

type Outcome int

const (
	Allowed Outcome = iota
	DeniedHard
	DeniedSoftFallback
)

func (o Outcome) String() string {
	switch o {
	case DeniedHard:
		return "denied_hard"
	case DeniedSoftFallback:
		return "denied_soft_fallback"
	default:
		return "allowed"
	}
}

type Decision struct {
	Outcome Outcome
	Bucket  domain.RequestType
	// Period is the window bucket the decision was taken in; empty for
	// unlimited buckets.
	Period string
	// RetryAfter is the time until the window rolls over. Zero when allowed.
	RetryAfter time.Duration
}

func (d Decision) Allowed() bool { return d.Outcome == Allowed }

// Usage is a point-in-time view of one bucket.
type Usage struct {
	Bucket    domain.RequestType `json:"bucket"`
	Window    string             `json:"window"`
	Period    string             `json:"period"`
	Limit     int                `json:"limit"`
	Used      int                `json:"used"`
	Pending   int                `json:"pending"`
	Remaining int                `json:"remaining"`
	Kind      string             `json:"kind"`
	ResetsAt  time.Time          `json:"resets_at"`
}

type counterKey struct {
	bucket domain.RequestType
	period string
}

type counter struct {
	committed int
	pending   int
}

type Limiter struct {
	mu       sync.Mutex
	policies map[domain.RequestType]Policy
	counters map[counterKey]*counter
	now      func() time.Time
	observer func(Decision)
}

// New builds a limiter. Buckets without a policy are unlimited.
func New(policies map[domain.RequestType]Policy) *Limiter {
	p := make(map[domain.RequestType]Policy, len(policies))
	for k, v := range policies {
		p[k] = v
	}
	return &Limiter{
		policies: p,
		counters: make(map[counterKey]*counter),
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// WithObserver registers fn to be called, outside the lock, after every
// decision.
func (l *Limiter) WithObserver(fn func(Decision)) *Limiter {
	l.observer = fn
	return l
}

// Policy returns the policy for bucket.
func (l *Limiter) Policy(bucket domain.RequestType) (Policy, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.policies[bucket]
	return p, ok
}

// Reserve checks bucket and, when allowed, holds one slot. The returned
// reservation is nil on denial.
func (l *Limiter) Reserve(bucket domain.RequestType) (*Reservation, Decision) {
	l.mu.Lock()
	policy, ok := l.policies[bucket]
	if !ok {
		l.mu.Unlock()
		d := Decision{Outcome: Allowed, Bucket: bucket}
		l.notify(d)
		return &Reservation{}, d
	}

	now := l.now()
	key := counterKey{bucket: bucket, period: policy.Window.Bucket(now)}
	c := l.counters[key]
	if c == nil {
		c = &counter{}
		l.counters[key] = c
	}

	if c.committed+c.pending >= policy.Limit {
		l.mu.Unlock()
		d := Decision{Outcome: DeniedHard, Bucket: bucket, Period: key.period, RetryAfter: policy.Window.Next(now).Sub(now)}
		if policy.Kind == Soft {
			d.Outcome = DeniedSoftFallback
		}
		l.notify(d)
		return nil, d
	}

	c.pending++
	l.mu.Unlock()

	d := Decision{Outcome: Allowed, Bucket: bucket, Period: key.period}
	l.notify(d)
	return &Reservation{limiter: l, key: key}, d
}

// Usage reports the current window of bucket.
func (l *Limiter) Usage(bucket domain.RequestType) (Usage, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	policy, ok := l.policies[bucket]
	if !ok {
		return Usage{}, false
	}
	return l.usageLocked(bucket, policy, l.now()), true
}

// UsageAll reports every configured bucket, ordered by request type name.
func (l *Limiter) UsageAll() []Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make([]Usage, 0, len(l.policies))
	for bucket, policy := range l.policies {
		out = append(out, l.usageLocked(bucket, policy, now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out
}

func (l *Limiter) usageLocked(bucket domain.RequestType, policy Policy, now time.Time) Usage {
	period := policy.Window.Bucket(now)
	u := Usage{
		Bucket:   bucket,
		Window:   policy.Window.String(),
		Period:   period,
		Limit:    policy.Limit,
		Kind:     policy.Kind.String(),
		ResetsAt: policy.Window.Next(now),
	}
	if c := l.counters[counterKey{bucket: bucket, period: period}]; c != nil {
		u.Used = c.committed
		u.Pending = c.pending
	}
	u.Remaining = policy.Limit - u.Used - u.Pending
	if u.Remaining < 0 {
		u.Remaining = 0
	}
	return u
}

// Set overwrites the committed count of bucket's current window. Used to
// seed counters from an external source of truth and by tests.
func (l *Limiter) Set(bucket domain.RequestType, used int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	policy, ok := l.policies[bucket]
	if !ok {
		return
	}
	key := counterKey{bucket: bucket, period: policy.Window.Bucket(l.now())}
	c := l.counters[key]
	if c == nil {
		c = &counter{}
		l.counters[key] = c
	}
	c.committed = used
}

// Sweep drops counters from windows that have rolled over and have no
// outstanding reservations. It returns the number removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, c := range l.counters {
		policy, ok := l.policies[key.bucket]
		if ok && key.period == policy.Window.Bucket(now) {
			continue
		}
		if c.pending > 0 {
			continue
		}
		delete(l.counters, key)
		removed++
	}
	return removed
}

func (l *Limiter) notify(d Decision) {
	if l.observer != nil {
		l.observer(d)
	}
}

// Reservation holds one slot of a bucket until Commit or Cancel. Both are
// idempotent and only the first call has an effect. A zero Reservation (from
// an unlimited bucket) is valid and does nothing.
type Reservation struct {
	limiter *Limiter
	key     counterKey
	done    bool
}

// Commit turns the held slot into a counted call.
func (r *Reservation) Commit() {
	r.settle(true)
}

// Cancel returns the held slot to the bucket.
func (r *Reservation) Cancel() {
	r.settle(false)
}

func (r *Reservation) settle(commit bool) {
	if r == nil || r.limiter == nil {
		return
	}
	l := r.limiter
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.done {
		return
	}
	r.done = true

	c := l.counters[r.key]
	if c == nil {
		return
	}
	c.pending--
	if commit {
		c.committed++
	}
}
