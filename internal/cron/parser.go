// Package cron parses maintenance schedules such as CACHE_SWEEP_SCHEDULE.
// Standard five-field expressions and descriptors (@hourly, @every 10m) are
// accepted. Schedules are evaluated in UTC unless a timezone is given.
package cron

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Parse compiles expression for the given IANA timezone. An empty timezone
// means UTC.
func (p *Parser) Parse(expression string, timezone string) (Schedule, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("parse cron: empty expression")
	}
	sched, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}

	loc, err := loadLocation(timezone)
	if err != nil {
		return nil, err
	}

	return &schedule{sched: sched, loc: loc, expr: expression}, nil
}

// Schedule yields successive activation times.
type Schedule interface {
	Next(after time.Time) time.Time
	String() string
}

type schedule struct {
	sched cron.Schedule
	loc   *time.Location
	expr  string
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(s.loc))
}

func (s *schedule) String() string { return s.expr }

// Validate reports whether expression parses.
func Validate(expression string) error {
	_, err := NewParser().Parse(expression, "")
	return err
}

// ValidateTimezone reports whether timezone names a loadable IANA location.
func ValidateTimezone(timezone string) error {
	_, err := loadLocation(timezone)
	return err
}

func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return loc, nil
}
