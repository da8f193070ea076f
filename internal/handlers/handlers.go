// Package handlers holds the reference analysis handlers: one per request
// type, each turning a validated payload and its selected records into the
// response data. Deployments replace them with real scoring engines.
package handlers

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/source"
)

type Handler interface {
	Handle(ctx context.Context, p domain.Payload, sel source.Selection) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, p domain.Payload, sel source.Selection) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, p domain.Payload, sel source.Selection) (any, error) {
	return f(ctx, p, sel)
}

// Defaults returns the reference handler for every public request type.
func Defaults() map[domain.RequestType]Handler {
	return map[domain.RequestType]Handler{
		domain.RequestTypePropertySearch: HandlerFunc(PropertySearch),
		domain.RequestTypeMarketAnalysis: HandlerFunc(MarketAnalysis),
		domain.RequestTypeLeadScoring:    HandlerFunc(LeadScoring),
		domain.RequestTypeDealAnalysis:   HandlerFunc(DealAnalysis),
	}
}

// PropertySearch returns the selected listings as-is.
func PropertySearch(_ context.Context, _ domain.Payload, sel source.Selection) (any, error) {
	if sel.Records == nil {
		return []domain.Fields{}, nil
	}
	return sel.Records, nil
}

// MarketAnalysis summarises comparable listings for a zip code.
func MarketAnalysis(_ context.Context, p domain.Payload, sel source.Selection) (any, error) {
	v, ok := p.(domain.MarketAnalysis)
	if !ok {
		return nil, fmt.Errorf("market analysis: unexpected payload %T", p)
	}
	if len(sel.Records) == 0 {
		return nil, fmt.Errorf("market analysis: no comparables for %s", v.ZipCode)
	}

	prices := numbers(sel.Records, "price")
	dom := numbers(sel.Records, "days_on_market")
	median := percentile(prices, 0.5)
	avgDOM := mean(dom)

	// Fewer days on market reads as a stronger market.
	strength := clamp(1-avgDOM/120, 0, 1)
	trend := "stable"
	switch {
	case strength >= 0.6:
		trend = "rising"
	case strength < 0.3:
		trend = "declining"
	}

	out := domain.Fields{
		"zip_code":           v.ZipCode,
		"median_price":       median,
		"average_price":      math.Round(mean(prices)),
		"price_range":        domain.Fields{"low": percentile(prices, 0.1), "high": percentile(prices, 0.9)},
		"inventory":          len(sel.Records),
		"avg_days_on_market": math.Round(avgDOM),
		"market_strength":    round2(strength),
		"price_trend":        trend,
	}
	if len(v.Metrics) > 0 {
		filtered := domain.Fields{"zip_code": v.ZipCode}
		for _, m := range v.Metrics {
			if val, ok := out[m]; ok {
				filtered[m] = val
			}
		}
		out = filtered
	}
	stampSource(out, sel)
	return out, nil
}

// LeadScoring scores motivation signals for a single property.
func LeadScoring(_ context.Context, p domain.Payload, sel source.Selection) (any, error) {
	v, ok := p.(domain.LeadScoring)
	if !ok {
		return nil, fmt.Errorf("lead scoring: unexpected payload %T", p)
	}
	if len(sel.Records) == 0 {
		return nil, fmt.Errorf("lead scoring: no property record")
	}
	rec := sel.Records[0]

	score := 50.0
	factors := []string{}
	if years, ok := number(v.OwnerData["years_owned"]); ok && years >= 10 {
		score += 15
		factors = append(factors, "long_ownership")
	}
	if absentee, ok := v.OwnerData["absentee"].(bool); ok && absentee {
		score += 15
		factors = append(factors, "absentee_owner")
	}
	if dom, ok := number(rec["days_on_market"]); ok && dom > 90 {
		score += 10
		factors = append(factors, "stale_listing")
	}
	if fc := asFields(rec["foreclosure"]); fc != nil && fc["status"] != nil && fc["status"] != "none" {
		score += 20
		factors = append(factors, "pre_foreclosure")
	}
	if trend, ok := v.MarketData["price_trend"].(string); ok && trend == "declining" {
		score += 5
		factors = append(factors, "declining_market")
	}
	score = clamp(score, 0, 100)

	out := domain.Fields{
		"property_id": rec["property_id"],
		"score":       score,
		"grade":       grade(score),
		"factors":     factors,
	}
	stampSource(out, sel)
	return out, nil
}

// MaxOfferRatio is the share of after-repair value an investor pays, less
// repairs (the 70% rule).
const MaxOfferRatio = 0.7

// DealAnalysis computes return and offer figures for a flip.
func DealAnalysis(_ context.Context, p domain.Payload, sel source.Selection) (any, error) {
	v, ok := p.(domain.DealAnalysis)
	if !ok {
		return nil, fmt.Errorf("deal analysis: unexpected payload %T", p)
	}

	cost := v.PurchasePrice + v.RepairEstimate
	profit := v.ARV - cost
	maxOffer := v.ARV*MaxOfferRatio - v.RepairEstimate

	out := domain.Fields{
		"property_id":    v.PropertyID,
		"purchase_price": v.PurchasePrice,
		"total_cost":     cost,
		"arv":            v.ARV,
		"profit":         profit,
		"roi":            round2(profit / cost * 100),
		"max_offer":      math.Round(maxOffer),
		"meets_70_rule":  v.PurchasePrice <= maxOffer,
	}
	if len(sel.Records) > 1 {
		out["comparable_median"] = percentile(numbers(sel.Records[1:], "price"), 0.5)
	}
	stampSource(out, sel)
	return out, nil
}

// stampSource copies item-level provenance from the subject record.
func stampSource(out domain.Fields, sel source.Selection) {
	out["source"] = string(sel.Source)
	out["data_freshness"] = string(domain.FreshnessCurrent)
	if len(sel.Records) > 0 {
		out["confidence_score"] = sel.Records[0]["confidence_score"]
		for _, f := range domain.EnrichmentFields {
			if val, ok := sel.Records[0][f]; ok {
				out[f] = val
			}
		}
	}
}

func grade(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 65:
		return "B"
	case score >= 50:
		return "C"
	default:
		return "D"
	}
}

func numbers(recs []domain.Fields, key string) []float64 {
	out := make([]float64, 0, len(recs))
	for _, r := range recs {
		if n, ok := number(r[key]); ok {
			out = append(out, n)
		}
	}
	sort.Float64s(out)
	return out
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// percentile expects sorted input.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Round(q * float64(len(sorted)-1)))
	return sorted[idx]
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func asFields(v any) domain.Fields {
	switch t := v.(type) {
	case domain.Fields:
		return t
	case map[string]any:
		return t
	default:
		return nil
	}
}
