// Package source decides, per request, whether to answer from the free
// baseline provider alone or to merge fields from the paid enrichment
// provider, and scores the result.
package source

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/circuitbreaker"
	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/ratelimit"
)

// EnrichmentBucket keys the paid source's quota and breaker.
const EnrichmentBucket = domain.RequestTypeAttomAPI

// DefaultEnrichmentTimeout bounds a single enrichment call.
const DefaultEnrichmentTimeout = 10 * time.Second

var errNoEnrichmentProvider = errors.New("no enrichment provider configured")

// Selection is the outcome of Select: scored records plus the metadata that
// explains how they were produced.
type Selection struct {
	Records  []domain.Fields
	Source   domain.Source
	Metadata domain.Metadata
}

// EnrichmentObserver is called after each attempted or skipped enrichment.
// outcome is "success", "rate_limit", "circuit_open", "enrichment_error" or
// "cancelled"; err is set only for the last two.
type EnrichmentObserver func(outcome string, d time.Duration, err error)

type Selector struct {
	baseline   BaselineProvider
	enrichment EnrichmentProvider
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	timeout    time.Duration
	observer   EnrichmentObserver
}

// NewSelector wires the selector. enrichment may be nil, in which case every
// enrichment request degrades with an enrichment_error fallback.
func NewSelector(
	baseline BaselineProvider,
	enrichment EnrichmentProvider,
	limiter *ratelimit.Limiter,
	breaker *circuitbreaker.CircuitBreaker,
	timeout time.Duration,
) *Selector {
	if timeout <= 0 {
		timeout = DefaultEnrichmentTimeout
	}
	return &Selector{
		baseline:   baseline,
		enrichment: enrichment,
		limiter:    limiter,
		breaker:    breaker,
		timeout:    timeout,
	}
}

// WithObserver registers fn for enrichment outcomes.
func (s *Selector) WithObserver(fn EnrichmentObserver) *Selector {
	s.observer = fn
	return s
}

// Select produces the records for p. A baseline failure or a caller context
// that ends during enrichment is returned as an error; other enrichment
// problems degrade to mock-only records and are described in the selection
// metadata.
func (s *Selector) Select(ctx context.Context, p domain.Payload) (Selection, error) {
	records, err := s.baseline.Baseline(ctx, p)
	if err != nil {
		return Selection{}, fmt.Errorf("baseline: %w", err)
	}

	sel := Selection{
		Records: make([]domain.Fields, len(records)),
		Source:  domain.SourceMock,
		Metadata: domain.Metadata{
			DataSource:  domain.SourceMock,
			DataSources: []string{string(domain.SourceMock)},
		},
	}
	for i, rec := range records {
		rec = rec.Clone()
		if rec == nil {
			rec = domain.Fields{}
		}
		rec["source"] = string(domain.SourceMock)
		rec["data_freshness"] = string(domain.FreshnessCurrent)
		rec["confidence_score"] = Confidence(rec, domain.SourceMock)
		sel.Records[i] = rec
	}

	req := p.Enrichment()
	if !req.Enabled {
		return sel, nil
	}

	if err := s.enrich(ctx, p, req, &sel); err != nil {
		return Selection{}, err
	}
	s.stampUsage(&sel)
	return sel, nil
}

func (s *Selector) enrich(ctx context.Context, p domain.Payload, req domain.EnrichmentRequest, sel *Selection) error {
	if s.breaker != nil {
		if err := s.breaker.Allow(EnrichmentBucket); err != nil {
			s.fallback(sel, domain.FallbackCircuitOpen, "")
			return nil
		}
	}

	var reservation *ratelimit.Reservation
	if s.limiter != nil {
		r, decision := s.limiter.Reserve(EnrichmentBucket)
		if !decision.Allowed() {
			if s.breaker != nil {
				s.breaker.Release(EnrichmentBucket)
			}
			s.fallback(sel, domain.FallbackRateLimit, "")
			return nil
		}
		reservation = r
	}

	start := time.Now()
	enr, err := s.call(ctx, EnrichmentQuery{
		Fields:  req.Fields,
		ZipCode: zipOf(p),
		Records: sel.Records,
	})
	if err == nil && len(enr.Records) != len(sel.Records) {
		err = fmt.Errorf("enrichment returned %d records for %d", len(enr.Records), len(sel.Records))
	}
	// Caller cancellation is not a provider failure.
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		reservation.Cancel()
		if s.breaker != nil {
			s.breaker.Release(EnrichmentBucket)
		}
		s.observe("cancelled", time.Since(start), ctxErr)
		return fmt.Errorf("enrichment: %w", ctxErr)
	}
	if err != nil {
		reservation.Cancel()
		if s.breaker != nil {
			s.breaker.RecordFailure(EnrichmentBucket)
		}
		log.Printf("source: enrichment failed, using baseline err=%v", err)
		s.fallback(sel, domain.FallbackEnrichmentError, err.Error())
		s.observe("enrichment_error", time.Since(start), err)
		return nil
	}

	reservation.Commit()
	if s.breaker != nil {
		s.breaker.RecordSuccess(EnrichmentBucket)
	}
	s.observe("success", time.Since(start), nil)

	for i, rec := range sel.Records {
		merge(rec, enr.Records[i], req.Fields)
		rec["source"] = string(domain.SourceHybrid)
		rec["data_freshness"] = string(domain.FreshnessCurrent)
		rec["confidence_score"] = Confidence(rec, domain.SourceHybrid)
	}
	sel.Source = domain.SourceHybrid
	sel.Metadata.DataSource = domain.SourceHybrid
	sel.Metadata.DataSources = []string{string(domain.SourceMock), "attom"}
	sel.Metadata.EnrichmentEndpoints = append([]string(nil), enr.Endpoints...)
	return nil
}

// call runs the provider under the enrichment timeout. A provider panic is
// returned as an error so the reservation and breaker are still settled.
func (s *Selector) call(ctx context.Context, q EnrichmentQuery) (enr Enrichment, err error) {
	if s.enrichment == nil {
		return Enrichment{}, errNoEnrichmentProvider
	}
	defer func() {
		if r := recover(); r != nil {
			enr, err = Enrichment{}, fmt.Errorf("enrichment provider panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.enrichment.Enrich(ctx, q)
}

func (s *Selector) fallback(sel *Selection, reason domain.FallbackReason, msg string) {
	sel.Metadata.FallbackReason = reason
	sel.Metadata.RateLimitFallback = reason == domain.FallbackRateLimit
	sel.Metadata.EnrichmentError = msg
	if reason != domain.FallbackEnrichmentError {
		s.observe(string(reason), 0, nil)
	}
}

func (s *Selector) stampUsage(sel *Selection) {
	if s.limiter == nil {
		return
	}
	u, ok := s.limiter.Usage(EnrichmentBucket)
	if !ok {
		return
	}
	sel.Metadata.EnrichmentUsage = &domain.EnrichmentUsage{
		Window:     u.Period,
		TotalCalls: u.Used,
		Remaining:  u.Remaining,
	}
}

func (s *Selector) observe(outcome string, d time.Duration, err error) {
	if s.observer != nil {
		s.observer(outcome, d, err)
	}
}

// merge copies the requested enrichment groups from enr into rec. When no
// groups were requested every known group present in enr is taken.
func merge(rec, enr domain.Fields, requested []string) {
	if len(requested) == 0 {
		requested = domain.EnrichmentFields
	}
	for _, f := range requested {
		if v, ok := enr[f]; ok {
			rec[f] = cloneAny(v)
		}
	}
}

func cloneAny(v any) any {
	return domain.Fields{"v": v}.Clone()["v"]
}
