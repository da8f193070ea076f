// Package mock is the free baseline data provider. Records are synthetic but
// deterministic: the same payload always yields the same listings.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

// DefaultComps is the number of comparable listings used for market and deal
// analysis.
const DefaultComps = 20

var (
	streets       = []string{"Main St", "Oak Ave", "Hillsboro Pike", "Belmont Blvd", "Granny White Pike", "Woodmont Blvd", "Harding Pl", "Estes Rd"}
	propertyTypes = []string{"single_family", "townhouse", "condo", "multi_family"}
)

type Provider struct {
	comps int
}

func New() *Provider {
	return &Provider{comps: DefaultComps}
}

func (p *Provider) Baseline(ctx context.Context, payload domain.Payload) ([]domain.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch v := payload.(type) {
	case domain.PropertySearch:
		out := make([]domain.Fields, v.Limit)
		for i := range out {
			out[i] = applyFilters(listing(v.ZipCode, i), v.Filters)
		}
		return out, nil

	case domain.MarketAnalysis:
		return p.comparables(v.ZipCode), nil

	case domain.LeadScoring:
		zip := v.ZipCode()
		if zip == "" {
			zip = "00000"
		}
		rec := listing(zip, 0)
		for k, val := range v.PropertyData {
			rec[k] = val
		}
		if v.OwnerData != nil {
			rec["owner"] = v.OwnerData.Clone()
		}
		return []domain.Fields{rec}, nil

	case domain.DealAnalysis:
		zip := v.ZipCode
		if zip == "" {
			zip = zipFromID(v.PropertyID)
		}
		rec := listing(zip, 0)
		rec["property_id"] = v.PropertyID
		rec["price"] = v.PurchasePrice
		out := []domain.Fields{rec}
		return append(out, p.comparables(zip)...), nil

	default:
		return nil, fmt.Errorf("mock: unsupported payload %T", payload)
	}
}

func (p *Provider) comparables(zip string) []domain.Fields {
	out := make([]domain.Fields, p.comps)
	for i := range out {
		out[i] = listing(zip, i)
	}
	return out
}

func listing(zip string, i int) domain.Fields {
	seed := hash(fmt.Sprintf("%s:%d", zip, i))

	price := 250000 + float64(seed%900)*1000
	beds := 2 + int(seed>>10%4)
	baths := 1 + float64(seed>>14%6)*0.5
	sqft := 900 + int(seed>>18%3100)
	yearBuilt := 1950 + int(seed>>30%74)

	return domain.Fields{
		"property_id":    fmt.Sprintf("%s-%04d", zip, i+1),
		"address":        fmt.Sprintf("%d %s", 100+seed>>36%9800, streets[seed>>48%uint64(len(streets))]),
		"zip_code":       zip,
		"property_type":  propertyTypes[seed>>52%uint64(len(propertyTypes))],
		"price":          price,
		"beds":           beds,
		"baths":          baths,
		"square_feet":    sqft,
		"year_built":     yearBuilt,
		"days_on_market": int(seed >> 40 % 120),
	}
}

// applyFilters pulls generated values into the requested ranges so filtered
// searches still return full pages.
func applyFilters(rec domain.Fields, f domain.SearchFilters) domain.Fields {
	price := rec["price"].(float64)
	switch {
	case f.MinPrice != nil && f.MaxPrice != nil:
		lo, hi := *f.MinPrice, *f.MaxPrice
		if price < lo || price > hi {
			price = lo + math.Mod(price, hi-lo)
		}
	case f.MinPrice != nil && price < *f.MinPrice:
		price = *f.MinPrice + math.Mod(price, 100000)
	case f.MaxPrice != nil && price > *f.MaxPrice:
		price = *f.MaxPrice - math.Mod(price, *f.MaxPrice/2)
	}
	rec["price"] = math.Round(price/1000) * 1000

	if beds := rec["beds"].(int); beds < f.MinBeds {
		rec["beds"] = f.MinBeds
	}
	if baths := rec["baths"].(float64); baths < f.MinBaths {
		rec["baths"] = f.MinBaths
	}
	return rec
}

func zipFromID(id string) string {
	if len(id) >= 5 {
		digits := true
		for _, c := range id[:5] {
			if c < '0' || c > '9' {
				digits = false
				break
			}
		}
		if digits {
			return id[:5]
		}
	}
	return fmt.Sprintf("%05d", hash(id)%100000)
}

func hash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
