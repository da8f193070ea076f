package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/cron"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	durations := []struct {
		field string
		value string
	}{
		{"TOKEN_TTL", cfg.TokenTTLStr},
		{"CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr},
		{"CACHE_TTL", cfg.CacheTTLStr},
		{"METRICS_RETENTION", cfg.MetricsRetentionStr},
		{"ENRICHMENT_TIMEOUT", cfg.EnrichmentTimeoutStr},
		{"DB_OP_TIMEOUT", cfg.DBOpTimeoutStr},
		{"HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr},
	}
	for _, d := range durations {
		if err := validatePositiveDuration(d.value); err != nil {
			errs = append(errs, ValidationError{Field: d.field, Message: err.Error()})
		}
	}

	if cfg.CircuitBreakerThreshold < 1 {
		errs = append(errs, ValidationError{
			Field:   "CIRCUIT_BREAKER_THRESHOLD",
			Message: "must be at least 1",
		})
	}

	if cfg.EnrichmentMonthlyQuota < 1 {
		errs = append(errs, ValidationError{
			Field:   "ENRICHMENT_MONTHLY_QUOTA",
			Message: "must be at least 1",
		})
	}

	if cfg.CacheSweepSchedule != "" {
		if err := cron.Validate(cfg.CacheSweepSchedule); err != nil {
			errs = append(errs, ValidationError{
				Field:   "CACHE_SWEEP_SCHEDULE",
				Message: err.Error(),
			})
		}
	}

	if cfg.CacheSweepTimezone != "" {
		if err := cron.ValidateTimezone(cfg.CacheSweepTimezone); err != nil {
			errs = append(errs, ValidationError{
				Field:   "CACHE_SWEEP_TIMEZONE",
				Message: err.Error(),
			})
		}
	}

	if cfg.AttomAPIKey != "" {
		if err := validateBaseURL(cfg.AttomBaseURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "ATTOM_BASE_URL",
				Message: err.Error(),
			})
		}
	}

	if len(cfg.APIKeys) > 0 && cfg.JWTSecret == "" {
		errs = append(errs, ValidationError{
			Field:   "JWT_SECRET",
			Message: "required when API_KEYS is set",
		})
	}

	if cfg.ArchiveBufferSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "ARCHIVE_BUFFER_SIZE",
			Message: "must be at least 1",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePositiveDuration(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration: %v", err)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateBaseURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
