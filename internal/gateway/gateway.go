// Package gateway is the request decision engine. It runs every request
// through authentication, validation, rate limiting, the circuit breaker and
// the response cache before selecting a data source, and converts every
// failure into a structured envelope and status code.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lmcdonald6/reic-gateway/internal/analytics"
	"github.com/lmcdonald6/reic-gateway/internal/auth"
	"github.com/lmcdonald6/reic-gateway/internal/cache"
	"github.com/lmcdonald6/reic-gateway/internal/circuitbreaker"
	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/handlers"
	"github.com/lmcdonald6/reic-gateway/internal/metrics"
	"github.com/lmcdonald6/reic-gateway/internal/protocol"
	"github.com/lmcdonald6/reic-gateway/internal/ratelimit"
	"github.com/lmcdonald6/reic-gateway/internal/schema"
	"github.com/lmcdonald6/reic-gateway/internal/source"
	"github.com/lmcdonald6/reic-gateway/internal/source/attom"
	"github.com/lmcdonald6/reic-gateway/internal/source/mock"
)

var ErrClosed = errors.New("gateway closed")

// User-visible error strings.
const (
	MsgSuccess      = "Request processed successfully"
	MsgInvalidToken = "Invalid or expired token"
	MsgRateLimited  = "Rate limit exceeded"
	MsgCircuitOpen  = "Circuit breaker open"
	MsgProcessing   = "Request processing failed"
	MsgCancelled    = "Request cancelled"
)

// Error types reported in metadata.error_type.
const (
	ErrorTypeAuth       = "authentication_error"
	ErrorTypeValidation = "validation_error"
	ErrorTypeRateLimit  = "rate_limit_error"
	ErrorTypeCircuit    = "circuit_open"
	ErrorTypeProcessing = "processing_error"
	ErrorTypeCancelled  = "cancelled"
)

const usageWriteTimeout = 2 * time.Second

type Gateway struct {
	gate     *auth.Gate
	limiter  *ratelimit.Limiter
	breaker  *circuitbreaker.CircuitBreaker
	cache    *cache.Cache
	selector *source.Selector
	handlers map[domain.RequestType]handlers.Handler
	recorder *metrics.Recorder
	shaper   *protocol.Shaper
	sink     metrics.Sink
	usage    UsageWriter

	closed atomic.Bool
	bgMu   sync.Mutex // orders bg.Add against Close
	bg     sync.WaitGroup
}

// New builds a gateway that owns its own limiter, breaker, cache and
// metrics state. Gateways share nothing with each other.
func New(opts ...Option) *Gateway {
	s := &settings{
		now:               time.Now,
		sink:              metrics.NewNoopSink(),
		policies:          ratelimit.DefaultPolicies(),
		breakerThreshold:  circuitbreaker.DefaultThreshold,
		breakerCooldown:   circuitbreaker.DefaultCooldown,
		cacheTTL:          cache.DefaultTTL,
		baseline:          mock.New(),
		enrichment:        attom.NewSimulated(0),
		enrichmentTimeout: source.DefaultEnrichmentTimeout,
		handlers:          handlers.Defaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gate == nil {
		s.gate = auth.NewGate("", nil, 0)
	}

	g := &Gateway{
		gate:     s.gate,
		handlers: s.handlers,
		sink:     s.sink,
		usage:    s.usage,
	}

	g.limiter = ratelimit.New(s.policies).WithClock(s.now).WithObserver(g.onRateLimitDecision)
	g.breaker = circuitbreaker.New(s.breakerThreshold, s.breakerCooldown).
		WithClock(s.now).
		WithObserver(func(key domain.RequestType, to string) {
			log.Printf("gateway: circuit breaker %s -> %s", key, to)
			g.sink.BreakerTransition(string(key), to)
		})
	g.cache = cache.New(s.cacheTTL, s.cacheTTLs, s.cacheMaxEntries).WithClock(s.now)
	g.selector = source.NewSelector(s.baseline, s.enrichment, g.limiter, g.breaker, s.enrichmentTimeout).
		WithObserver(func(outcome string, d time.Duration, err error) {
			class := ""
			if err != nil {
				class = metrics.ClassifyStatus(0, err)
			}
			g.sink.EnrichmentOutcome(outcome, class, d)
		})
	g.recorder = metrics.NewRecorder(s.sink).WithClock(s.now).WithEmitter(s.emit)
	g.shaper = protocol.New(s.compressionThreshold, s.essentialFields)

	return g
}

// HandleRequest runs one request through the pipeline and returns the
// envelope and its status code. The only error return is for request types
// the gateway does not serve (wrapping schema.ErrUnsupportedType) or a
// closed gateway; every runtime condition is encoded in the envelope.
func (g *Gateway) HandleRequest(ctx context.Context, rt domain.RequestType, payload map[string]any, token string) (*domain.Response, int, error) {
	if g.closed.Load() {
		return nil, 0, ErrClosed
	}
	if !rt.IsPublic() {
		return nil, 0, fmt.Errorf("%w: %q", schema.ErrUnsupportedType, rt)
	}

	requestID, body := splitRequestID(rt, payload)
	h, requestID := g.start(requestID, rt)

	req := &request{g: g, rt: rt, id: requestID, handle: h}

	who, err := g.gate.Authenticate(token)
	if err != nil {
		return req.fail(http.StatusUnauthorized, MsgInvalidToken, ErrorTypeAuth, err)
	}
	req.subject = who.Subject

	p, err := schema.Validate(rt, body)
	if err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			resp, code, _ := req.fail(http.StatusBadRequest, verr.Error(), ErrorTypeValidation, err)
			resp.ValidationErrors = verr.Fields()
			return resp, code, nil
		}
		return nil, 0, err
	}

	reservation, decision := g.limiter.Reserve(rt)
	if !decision.Allowed() {
		resp, code, _ := req.fail(http.StatusTooManyRequests, MsgRateLimited, ErrorTypeRateLimit, nil)
		resp.RetryAfterSeconds = int(math.Ceil(decision.RetryAfter.Seconds()))
		return resp, code, nil
	}

	if err := g.breaker.Allow(rt); err != nil {
		reservation.Cancel()
		return req.fail(http.StatusServiceUnavailable, MsgCircuitOpen, ErrorTypeCircuit, err)
	}

	key, err := cache.Key(rt, p)
	if err != nil {
		reservation.Cancel()
		g.breaker.Release(rt)
		return req.fail(http.StatusInternalServerError, MsgProcessing, ErrorTypeProcessing, err)
	}

	if entry, ok := g.cache.Get(key); ok {
		reservation.Cancel()
		g.breaker.Release(rt)
		return req.replay(entry)
	}

	resp, err := g.dispatch(ctx, rt, p)
	if err != nil {
		reservation.Cancel()
		if ctx.Err() != nil {
			g.breaker.Release(rt)
			return req.fail(http.StatusServiceUnavailable, MsgCancelled, ErrorTypeCancelled, err)
		}
		g.breaker.RecordFailure(rt)
		log.Printf("gateway: dispatch failed type=%s request_id=%s err=%v", rt, requestID, err)
		return req.fail(http.StatusInternalServerError, MsgProcessing, ErrorTypeProcessing, err)
	}

	g.breaker.RecordSuccess(rt)
	reservation.Commit()
	resp.RequestID = requestID
	if cacheable(resp) {
		g.cache.Put(key, rt, resp)
		g.sink.CacheSizeUpdate(g.cache.Len())
	}

	return req.finish(resp, http.StatusOK, resp.Metadata.DataSource, false, nil)
}

// cacheable reports whether resp may be replayed for the full TTL. Responses
// degraded by a transient enrichment failure are served once and not stored.
func cacheable(resp *domain.Response) bool {
	switch resp.Metadata.FallbackReason {
	case domain.FallbackEnrichmentError, domain.FallbackCircuitOpen:
		return false
	}
	return true
}

// dispatch selects data, runs the analysis handler and shapes the envelope.
// A panicking collaborator is reported as an ordinary dispatch failure.
func (g *Gateway) dispatch(ctx context.Context, rt domain.RequestType, p domain.Payload) (resp *domain.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("dispatch %s: panic: %v", rt, r)
		}
	}()

	h, ok := g.handlers[rt]
	if !ok {
		return nil, fmt.Errorf("no handler for %s", rt)
	}

	sel, err := g.selector.Select(ctx, p)
	if err != nil {
		return nil, err
	}

	data, err := h.Handle(ctx, p, sel)
	if err != nil {
		return nil, fmt.Errorf("handler %s: %w", rt, err)
	}

	resp = &domain.Response{
		Message:  MsgSuccess,
		Metadata: sel.Metadata,
	}
	resp.Metadata.CacheHit = false
	resp.Metadata.Freshness = domain.FreshnessCurrent

	if err := g.shaper.Shape(rt, data, resp, p.Enrichment().Fields...); err != nil {
		return nil, err
	}
	return resp, nil
}

// start opens the metrics record. A request id already in use gets a suffix
// so the earlier record is never touched.
func (g *Gateway) start(id string, rt domain.RequestType) (*metrics.Handle, string) {
	for {
		h, err := g.recorder.Start(id, rt)
		if err == nil {
			return h, id
		}
		id = id + "-" + uuid.New().String()[:8]
	}
}

func splitRequestID(rt domain.RequestType, payload map[string]any) (string, map[string]any) {
	body := make(map[string]any, len(payload))
	var id string
	for k, v := range payload {
		if k == "request_id" {
			if s, ok := v.(string); ok {
				id = strings.TrimSpace(s)
			}
			continue
		}
		body[k] = v
	}
	if id == "" {
		id = fmt.Sprintf("%s_%s", rt, uuid.New().String())
	}
	return id, body
}

func (g *Gateway) onRateLimitDecision(d ratelimit.Decision) {
	g.sink.RateLimitDecision(string(d.Bucket), d.Outcome.String())
	if g.usage == nil || d.Period == "" {
		return
	}

	ev := analytics.Event{Bucket: d.Bucket, Period: d.Period, Outcome: d.Outcome.String()}
	g.bgMu.Lock()
	if g.closed.Load() {
		g.bgMu.Unlock()
		return
	}
	g.bg.Add(1)
	g.bgMu.Unlock()
	go func() {
		defer g.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), usageWriteTimeout)
		defer cancel()
		if err := g.usage.Write(ctx, ev); err != nil {
			log.Printf("gateway: usage write failed bucket=%s err=%v", ev.Bucket, err)
		}
	}()
}

// Close stops accepting requests and waits for background usage writes.
func (g *Gateway) Close() error {
	g.bgMu.Lock()
	first := g.closed.CompareAndSwap(false, true)
	g.bgMu.Unlock()
	if !first {
		return nil
	}
	g.bg.Wait()
	return nil
}

// request carries per-call state for building the final envelope.
type request struct {
	g       *Gateway
	rt      domain.RequestType
	id      string
	subject string
	handle  *metrics.Handle
}

func (r *request) fail(code int, msg, errType string, cause error) (*domain.Response, int, error) {
	resp := &domain.Response{
		Message: msg,
		Error:   msg,
		Metadata: domain.Metadata{
			ErrorType: errType,
		},
	}
	if cause == nil {
		cause = errors.New(msg)
	}
	return r.finish(resp, code, "", false, cause)
}

func (r *request) replay(entry cache.Entry) (*domain.Response, int, error) {
	resp := entry.Response
	resp.RequestID = r.id
	resp.Metadata.CacheHit = true
	resp.Metadata.Freshness = domain.FreshnessCached
	resp.Metadata.CachedAt = entry.StoredAt.UTC().Format(time.RFC3339)
	return r.finish(resp, http.StatusOK, resp.Metadata.DataSource, true, nil)
}

func (r *request) finish(resp *domain.Response, code int, src domain.Source, hit bool, cause error) (*domain.Response, int, error) {
	resp.RequestID = r.id
	r.g.shaper.Stamp(resp)

	err := r.g.recorder.Finish(r.handle, metrics.Outcome{
		StatusCode:    code,
		DataSource:    src,
		CacheHit:      hit,
		Err:           cause,
		CorrelationID: resp.CorrelationID,
		Subject:       r.subject,
	})
	if err != nil {
		log.Printf("gateway: metrics finish failed request_id=%s err=%v", r.id, err)
	}
	return resp, code, nil
}
