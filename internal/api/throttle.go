package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a per-client token bucket in front of the API. It protects the
// process, not the quota: business rate limits live in the gateway.
type Throttle struct {
	rps   rate.Limit
	burst int

	mu       sync.RWMutex
	limiters map[string]*timedLimiter
}

type timedLimiter struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64
}

// NewThrottle returns nil when rps is not positive.
func NewThrottle(rps float64, burst int) *Throttle {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = int(math.Ceil(rps))
	}
	return &Throttle{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*timedLimiter),
	}
}

func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		lim := t.limiter(clientKey(r))
		if !lim.Allow() {
			res := lim.Reserve()
			delay := res.Delay()
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	t.mu.RLock()
	if tl, ok := t.limiters[key]; ok {
		tl.lastUsed.Store(now)
		lim := tl.limiter
		t.mu.RUnlock()
		return lim
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if tl, ok := t.limiters[key]; ok {
		tl.lastUsed.Store(now)
		return tl.limiter
	}
	tl := &timedLimiter{limiter: rate.NewLimiter(t.rps, t.burst)}
	tl.lastUsed.Store(now)
	t.limiters[key] = tl
	return tl.limiter
}

// CleanupStale drops limiters idle for longer than ttl and returns how many
// were removed.
func (t *Throttle) CleanupStale(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl).UnixNano()

	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, tl := range t.limiters {
		if tl.lastUsed.Load() < cutoff {
			delete(t.limiters, key)
			removed++
		}
	}
	return removed
}

func (t *Throttle) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.limiters)
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
