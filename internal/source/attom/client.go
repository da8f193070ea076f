package attom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/source"
)

var (
	ErrUnauthorized = errors.New("attom: unauthorized")
	ErrThrottled    = errors.New("attom: throttled")
	ErrNotFound     = errors.New("attom: no matching property")
)

// maxBody caps how much of a response is read.
const maxBody = 2 << 20

// Client queries the live API. Each record costs one request per endpoint.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Enrich fetches the requested groups for every record. Any endpoint
// failure fails the whole call.
func (c *Client) Enrich(ctx context.Context, q source.EnrichmentQuery) (source.Enrichment, error) {
	fields := requestedFields(q.Fields)
	out := source.Enrichment{
		Records:   make([]domain.Fields, len(q.Records)),
		Endpoints: Endpoints(q.Fields),
	}

	for i, rec := range q.Records {
		params := lookupParams(rec, q.ZipCode)

		if _, err := c.get(ctx, PropertyEndpoint, params); err != nil {
			return source.Enrichment{}, err
		}

		enr := domain.Fields{}
		for _, f := range fields {
			body, err := c.get(ctx, fieldEndpoints[f], params)
			if err != nil {
				return source.Enrichment{}, err
			}
			enr[f] = extract(f, body)
		}
		out.Records[i] = enr
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (domain.Fields, error) {
	u := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrThrottled
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("attom %s: unexpected status %d", path, resp.StatusCode)
	}

	var envelope struct {
		Property []domain.Fields `json:"property"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(envelope.Property) == 0 {
		return nil, ErrNotFound
	}
	return envelope.Property[0], nil
}

func lookupParams(rec domain.Fields, zip string) url.Values {
	v := url.Values{}
	if addr, ok := rec["address"].(string); ok && addr != "" {
		v.Set("address1", addr)
	}
	if z, ok := rec["zip_code"].(string); ok && z != "" {
		zip = z
	}
	if zip != "" {
		v.Set("postalcode", zip)
	}
	return v
}

// extract maps one API property object onto the flat group shape the
// confidence scorer expects.
func extract(field string, p domain.Fields) domain.Fields {
	switch field {
	case "tax_data":
		assessment := sub(p, "assessment")
		return domain.Fields{
			"assessed_value": sub(assessment, "assessed")["assdttlvalue"],
			"tax_amount":     sub(assessment, "tax")["taxamt"],
			"tax_year":       sub(assessment, "tax")["taxyear"],
		}
	case "title_data":
		sale := sub(p, "sale")
		return domain.Fields{
			"ownership_type":     sub(p, "owner")["ownershiptype"],
			"last_transfer_date": sale["saleTransDate"],
		}
	case "foreclosure":
		fc := sub(p, "foreclosure")
		status := fc["status"]
		if status == nil {
			status = "none"
		}
		return domain.Fields{
			"status":          status,
			"last_check_date": fc["recordingDate"],
		}
	case "sales_history":
		return domain.Fields{"transactions": p["salehistory"]}
	case "valuation":
		avm := sub(p, "avm")
		return domain.Fields{
			"estimated_value":  sub(avm, "amount")["value"],
			"confidence_score": sub(avm, "amount")["scr"],
			"last_updated":     avm["eventDate"],
		}
	default:
		return domain.Fields{}
	}
}

func sub(f domain.Fields, key string) domain.Fields {
	switch t := f[key].(type) {
	case map[string]any:
		return domain.Fields(t)
	case domain.Fields:
		return t
	default:
		return domain.Fields{}
	}
}
