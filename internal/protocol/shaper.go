// Package protocol applies presentation policies to outgoing envelopes:
// essential-field selection, the compression flag, the binary encoding
// marker and a per-response correlation id.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

// DefaultCompressionThreshold is the item count above which list payloads
// are flagged for compression.
const DefaultCompressionThreshold = 10

// CompressionGzip is the only compression scheme the gateway sets.
const CompressionGzip = "gzip"

// DefaultEssentialFields restricts list items per request type. Types not
// listed pass through unfiltered.
func DefaultEssentialFields() map[domain.RequestType][]string {
	return map[domain.RequestType][]string{
		domain.RequestTypePropertySearch: {
			"property_id", "address", "price", "beds", "baths", "zip_code",
			"source", "confidence_score", "data_freshness",
		},
	}
}

type Shaper struct {
	threshold int
	essential map[domain.RequestType][]string
	newID     func() string
}

func New(threshold int, essential map[domain.RequestType][]string) *Shaper {
	if threshold <= 0 {
		threshold = DefaultCompressionThreshold
	}
	if essential == nil {
		essential = DefaultEssentialFields()
	}
	return &Shaper{
		threshold: threshold,
		essential: essential,
		newID:     func() string { return uuid.New().String() },
	}
}

// Shape encodes data into resp. List items of types with an essential set
// keep only those fields plus any of keep (the enrichment groups the caller
// asked for).
func (s *Shaper) Shape(rt domain.RequestType, data any, resp *domain.Response, keep ...string) error {
	items, isList := data.([]domain.Fields)
	if isList {
		if fields, ok := s.essential[rt]; ok {
			data = selectFields(items, fields, keep)
		}
		if len(items) > s.threshold {
			resp.Compression = CompressionGzip
		}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", rt, err)
	}
	resp.Data = raw
	s.Stamp(resp)
	return nil
}

// Stamp sets the encoding marker and a fresh correlation id. It is applied
// to every envelope, including errors and cache replays.
func (s *Shaper) Stamp(resp *domain.Response) {
	resp.Encoding = domain.EncodingBinary
	id := s.newID()
	resp.CorrelationID = id
	resp.Metadata.RequestCorrelationID = id
}

func selectFields(items []domain.Fields, fields, keep []string) []domain.Fields {
	out := make([]domain.Fields, len(items))
	for i, item := range items {
		sel := make(domain.Fields, len(fields)+len(keep))
		for _, f := range fields {
			if v, ok := item[f]; ok {
				sel[f] = v
			}
		}
		for _, f := range keep {
			if v, ok := item[f]; ok {
				sel[f] = v
			}
		}
		out[i] = sel
	}
	return out
}
