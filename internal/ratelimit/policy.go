package ratelimit

import (
	"fmt"
	"strings"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

// Window is the granularity of a counter bucket. Counters reset when the
// bucket key rolls over.
type Window int

const (
	Hourly Window = iota
	Minutely
	Daily
	Monthly
)

func (w Window) String() string {
	switch w {
	case Minutely:
		return "minute"
	case Daily:
		return "day"
	case Monthly:
		return "month"
	default:
		return "hour"
	}
}

// ParseWindow accepts "minute", "hour", "day" or "month".
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minute":
		return Minutely, nil
	case "hour", "hourly", "":
		return Hourly, nil
	case "day", "daily":
		return Daily, nil
	case "month", "monthly":
		return Monthly, nil
	default:
		return Hourly, fmt.Errorf("unknown window %q", s)
	}
}

// Bucket returns the key of the bucket containing t.
func (w Window) Bucket(t time.Time) string {
	t = t.UTC()
	switch w {
	case Minutely:
		return t.Format("200601021504")
	case Daily:
		return t.Format("20060102")
	case Monthly:
		return t.Format("200601")
	default:
		return t.Format("2006010215")
	}
}

// Next returns the start of the bucket after the one containing t.
func (w Window) Next(t time.Time) time.Time {
	t = t.UTC()
	switch w {
	case Minutely:
		return t.Truncate(time.Minute).Add(time.Minute)
	case Daily:
		return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
	case Monthly:
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(time.Hour).Add(time.Hour)
	}
}

// Kind selects what a denial means for the caller.
type Kind int

const (
	// Hard denials reject the request (429).
	Hard Kind = iota
	// Soft denials downgrade the request to the baseline source.
	Soft
)

func (k Kind) String() string {
	if k == Soft {
		return "soft"
	}
	return "hard"
}

// ParseKind accepts "hard" or "soft".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hard", "":
		return Hard, nil
	case "soft", "fallback":
		return Soft, nil
	default:
		return Hard, fmt.Errorf("unknown policy kind %q", s)
	}
}

type Policy struct {
	Limit  int
	Window Window
	Kind   Kind
}

// DefaultPolicies returns the stock quota table. Consumer types are hard
// hourly limits; the paid enrichment source is a soft monthly cap.
func DefaultPolicies() map[domain.RequestType]Policy {
	return map[domain.RequestType]Policy{
		domain.RequestTypePropertySearch: {Limit: 100, Window: Hourly, Kind: Hard},
		domain.RequestTypeMarketAnalysis: {Limit: 50, Window: Hourly, Kind: Hard},
		domain.RequestTypeLeadScoring:    {Limit: 200, Window: Hourly, Kind: Hard},
		domain.RequestTypeDealAnalysis:   {Limit: 150, Window: Hourly, Kind: Hard},
		domain.RequestTypeAttomAPI:       {Limit: 400, Window: Monthly, Kind: Soft},
	}
}
