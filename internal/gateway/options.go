package gateway

import (
	"context"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/analytics"
	"github.com/lmcdonald6/reic-gateway/internal/auth"
	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/handlers"
	"github.com/lmcdonald6/reic-gateway/internal/metrics"
	"github.com/lmcdonald6/reic-gateway/internal/ratelimit"
	"github.com/lmcdonald6/reic-gateway/internal/source"
)

// UsageWriter mirrors rate-limit decisions to durable storage. Writes are
// best-effort.
type UsageWriter interface {
	Write(ctx context.Context, ev analytics.Event) error
}

type settings struct {
	now  func() time.Time
	sink metrics.Sink
	gate *auth.Gate

	policies         map[domain.RequestType]ratelimit.Policy
	breakerThreshold int
	breakerCooldown  time.Duration

	cacheTTL        time.Duration
	cacheTTLs       map[domain.RequestType]time.Duration
	cacheMaxEntries int

	baseline          source.BaselineProvider
	enrichment        source.EnrichmentProvider
	enrichmentTimeout time.Duration
	handlers          map[domain.RequestType]handlers.Handler

	compressionThreshold int
	essentialFields      map[domain.RequestType][]string

	usage UsageWriter
	emit  func(domain.RequestMetrics)
}

type Option func(*settings)

// WithClock replaces the time source of every stateful component.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func WithMetricsSink(sink metrics.Sink) Option {
	return func(s *settings) { s.sink = sink }
}

func WithAuth(g *auth.Gate) Option {
	return func(s *settings) { s.gate = g }
}

// WithPolicies replaces the rate-limit table.
func WithPolicies(p map[domain.RequestType]ratelimit.Policy) Option {
	return func(s *settings) { s.policies = p }
}

func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(s *settings) {
		s.breakerThreshold = threshold
		s.breakerCooldown = cooldown
	}
}

// WithCache sets the default TTL, per-type overrides and an optional entry cap.
func WithCache(ttl time.Duration, perType map[domain.RequestType]time.Duration, maxEntries int) Option {
	return func(s *settings) {
		s.cacheTTL = ttl
		s.cacheTTLs = perType
		s.cacheMaxEntries = maxEntries
	}
}

func WithBaseline(p source.BaselineProvider) Option {
	return func(s *settings) { s.baseline = p }
}

// WithEnrichment sets the paid provider and its per-call timeout.
func WithEnrichment(p source.EnrichmentProvider, timeout time.Duration) Option {
	return func(s *settings) {
		s.enrichment = p
		s.enrichmentTimeout = timeout
	}
}

// WithHandler replaces the analysis handler for one request type.
func WithHandler(rt domain.RequestType, h handlers.Handler) Option {
	return func(s *settings) { s.handlers[rt] = h }
}

func WithProtocol(compressionThreshold int, essential map[domain.RequestType][]string) Option {
	return func(s *settings) {
		s.compressionThreshold = compressionThreshold
		s.essentialFields = essential
	}
}

func WithUsageWriter(w UsageWriter) Option {
	return func(s *settings) { s.usage = w }
}

// WithEmitter receives every finished request record, e.g. for archiving.
// fn must not block.
func WithEmitter(fn func(domain.RequestMetrics)) Option {
	return func(s *settings) { s.emit = fn }
}
