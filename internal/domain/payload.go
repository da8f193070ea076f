package domain

// Payload is a validated, typed request body. Each request type has one
// concrete variant.
type Payload interface {
	RequestType() RequestType
	// Enrichment returns the caller's enrichment request; zero when absent.
	Enrichment() EnrichmentRequest
}

// EnrichmentRequest asks the gateway to merge fields from the paid source.
type EnrichmentRequest struct {
	Enabled bool     `json:"enabled"`
	Fields  []string `json:"fields,omitempty"`
}

// DataSourceOptions is the optional data_source block shared by all payloads.
type DataSourceOptions struct {
	Primary    string            `json:"primary,omitempty"`
	Enrichment EnrichmentRequest `json:"enrichment"`
}

type SearchFilters struct {
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
	MinBeds  int      `json:"min_beds,omitempty"`
	MinBaths float64  `json:"min_baths,omitempty"`
}

type PropertySearch struct {
	ZipCode    string            `json:"zip_code"`
	Limit      int               `json:"limit,omitempty"` // default 10
	Filters    SearchFilters     `json:"filters"`
	DataSource DataSourceOptions `json:"data_source"`
}

func (PropertySearch) RequestType() RequestType { return RequestTypePropertySearch }

func (p PropertySearch) Enrichment() EnrichmentRequest { return p.DataSource.Enrichment }

type MarketAnalysis struct {
	ZipCode    string            `json:"zip_code"`
	Metrics    []string          `json:"metrics,omitempty"`
	DataSource DataSourceOptions `json:"data_source"`
}

func (MarketAnalysis) RequestType() RequestType { return RequestTypeMarketAnalysis }

func (p MarketAnalysis) Enrichment() EnrichmentRequest { return p.DataSource.Enrichment }

type LeadScoring struct {
	PropertyData Fields            `json:"property_data"`
	MarketData   Fields            `json:"market_data,omitempty"`
	OwnerData    Fields            `json:"owner_data,omitempty"`
	DataSource   DataSourceOptions `json:"data_source"`
}

func (LeadScoring) RequestType() RequestType { return RequestTypeLeadScoring }

func (p LeadScoring) Enrichment() EnrichmentRequest { return p.DataSource.Enrichment }

// ZipCode returns property_data.zip_code when present.
func (p LeadScoring) ZipCode() string {
	if z, ok := p.PropertyData["zip_code"].(string); ok {
		return z
	}
	return ""
}

type DealAnalysis struct {
	PropertyID     string            `json:"property_id"`
	ZipCode        string            `json:"zip_code,omitempty"`
	PurchasePrice  float64           `json:"purchase_price"`
	RepairEstimate float64           `json:"repair_estimate,omitempty"`
	ARV            float64           `json:"arv"`
	DataSource     DataSourceOptions `json:"data_source"`
}

func (DealAnalysis) RequestType() RequestType { return RequestTypeDealAnalysis }

func (p DealAnalysis) Enrichment() EnrichmentRequest { return p.DataSource.Enrichment }
