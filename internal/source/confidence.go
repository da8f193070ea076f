package source

import (
	"math"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

type category struct {
	name     string
	fields   []string
	weight   float64
	critical bool
	nested   bool
}

// Completeness categories. basic_info fields live on the record itself; the
// others are nested objects merged from enrichment.
var categories = []category{
	{name: "basic_info", fields: []string{"address", "zip_code", "property_type", "beds", "baths"}, weight: 0.3, critical: true},
	{name: "tax_data", fields: []string{"assessed_value", "tax_amount", "tax_year"}, weight: 0.2, critical: true, nested: true},
	{name: "title_data", fields: []string{"ownership_type", "last_transfer_date"}, weight: 0.15, nested: true},
	{name: "foreclosure", fields: []string{"status", "last_check_date"}, weight: 0.15, nested: true},
	{name: "valuation", fields: []string{"estimated_value", "confidence_score"}, weight: 0.2, critical: true, nested: true},
}

// Confidence bands.
const (
	MockFloor   = 0.90
	MockCeiling = 0.94
	HybridFloor = 0.95
	HybridCap   = 0.98
)

// Confidence scores a record's completeness for the given source. Mock
// records land in [0.90, 0.94] by basic-info completeness; hybrid records
// use the weighted category score and land in [0.95, 0.98], so a hybrid
// score is always strictly above the mock score of the same property.
func Confidence(rec domain.Fields, src domain.Source) float64 {
	if src != domain.SourceHybrid {
		basic := categoryScore(rec, categories[0]) / categories[0].weight
		return round2(MockFloor + (MockCeiling-MockFloor)*basic)
	}

	var (
		base             float64
		criticalComplete = true
		scores           = make(map[string]float64, len(categories))
	)
	for _, c := range categories {
		s := categoryScore(rec, c)
		scores[c.name] = s
		base += s
		if c.critical && s < c.weight {
			criticalComplete = false
		}
	}

	if criticalComplete {
		base = math.Min(HybridCap, base+0.4)
	} else {
		base = math.Min(HybridFloor, base+0.3)
	}
	if rec["data_freshness"] == string(domain.FreshnessCurrent) {
		base = math.Min(HybridCap, base+0.1)
	}
	if scores["basic_info"] > 0 && scores["tax_data"] > 0 && scores["valuation"] > 0 {
		base = math.Min(HybridCap, base+0.1)
	}
	return round2(math.Max(HybridFloor, math.Min(HybridCap, base)))
}

func categoryScore(rec domain.Fields, c category) float64 {
	data := rec
	if c.nested {
		data = asFields(rec[c.name])
	}
	if len(data) == 0 {
		return 0
	}
	present := 0
	for _, f := range c.fields {
		if v, ok := data[f]; ok && v != nil {
			present++
		}
	}
	return float64(present) / float64(len(c.fields)) * c.weight
}

func asFields(v any) domain.Fields {
	switch t := v.(type) {
	case domain.Fields:
		return t
	case map[string]any:
		return domain.Fields(t)
	default:
		return nil
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
