package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAttomBaseURL is used when ATTOM_BASE_URL is unset.
const DefaultAttomBaseURL = "https://api.gateway.attomdata.com/propertyapi/v1.0.0"

// Config holds all configuration for the gateway.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	HTTPAddr    string `json:"http_addr"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"`

	JWTSecret   string        `json:"-"`
	APIKeys     []string      `json:"-"`
	TokenTTL    time.Duration `json:"-"`
	TokenTTLStr string        `json:"token_ttl"`

	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	CacheTTL           time.Duration `json:"-"`
	CacheTTLStr        string        `json:"cache_ttl"`
	CacheMaxEntries    int           `json:"cache_max_entries"`
	CacheSweepSchedule string        `json:"cache_sweep_schedule"`
	CacheSweepTimezone string        `json:"cache_sweep_timezone"`

	MetricsRetention    time.Duration `json:"-"`
	MetricsRetentionStr string        `json:"metrics_retention"`

	EnrichmentMonthlyQuota int           `json:"enrichment_monthly_quota"`
	EnrichmentTimeout      time.Duration `json:"-"`
	EnrichmentTimeoutStr   string        `json:"enrichment_timeout"`
	AttomAPIKey            string        `json:"-"`
	AttomBaseURL           string        `json:"attom_base_url"`

	CompressionThreshold int `json:"compression_threshold"`

	IngressRPS     float64  `json:"ingress_rps"`
	IngressBurst   int      `json:"ingress_burst"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	DBOpTimeout       time.Duration `json:"-"`
	DBOpTimeoutStr    string        `json:"db_op_timeout"`
	ArchiveBufferSize int           `json:"archive_buffer_size"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	PolicyFile string `json:"policy_file,omitempty"`
}

// Load reads configuration from environment variables with defaults. A .env
// file in the working directory is loaded first when present; variables
// already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:                  os.Getenv("HTTP_ADDR"),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		JWTSecret:                 os.Getenv("JWT_SECRET"),
		APIKeys:                   splitList(os.Getenv("API_KEYS")),
		TokenTTLStr:               os.Getenv("TOKEN_TTL"),
		CircuitBreakerCooldownStr: os.Getenv("CIRCUIT_BREAKER_COOLDOWN"),
		CacheTTLStr:               os.Getenv("CACHE_TTL"),
		CacheSweepSchedule:        os.Getenv("CACHE_SWEEP_SCHEDULE"),
		CacheSweepTimezone:        os.Getenv("CACHE_SWEEP_TIMEZONE"),
		MetricsRetentionStr:       os.Getenv("METRICS_RETENTION"),
		EnrichmentTimeoutStr:      os.Getenv("ENRICHMENT_TIMEOUT"),
		AttomAPIKey:               os.Getenv("ATTOM_API_KEY"),
		AttomBaseURL:              os.Getenv("ATTOM_BASE_URL"),
		AllowedOrigins:            splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		DBOpTimeoutStr:            os.Getenv("DB_OP_TIMEOUT"),
		HTTPShutdownTimeoutStr:    os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:            os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:               os.Getenv("METRICS_PATH"),
		MetricsPort:               os.Getenv("METRICS_PORT"),
		PolicyFile:                os.Getenv("POLICY_FILE"),
	}

	cfg.CircuitBreakerThreshold = intEnv("CIRCUIT_BREAKER_THRESHOLD", 5)
	cfg.CacheMaxEntries = intEnv("CACHE_MAX_ENTRIES", 10000)
	cfg.EnrichmentMonthlyQuota = intEnv("ENRICHMENT_MONTHLY_QUOTA", 400)
	cfg.CompressionThreshold = intEnv("COMPRESSION_THRESHOLD", 10)
	cfg.IngressBurst = intEnv("INGRESS_BURST", 40)
	cfg.ArchiveBufferSize = intEnv("ARCHIVE_BUFFER_SIZE", 256)

	cfg.IngressRPS = 20
	if s := os.Getenv("INGRESS_RPS"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
			cfg.IngressRPS = f
		} else {
			log.Printf("config: invalid INGRESS_RPS %q (must be a non-negative number), using default 20", s)
		}
	}

	// Support the platform PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.TokenTTLStr == "" {
		cfg.TokenTTLStr = "24h"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "5m"
	}
	if cfg.CacheTTLStr == "" {
		cfg.CacheTTLStr = "24h"
	}
	if cfg.CacheSweepSchedule == "" {
		cfg.CacheSweepSchedule = "*/10 * * * *"
	}
	if cfg.CacheSweepTimezone == "" {
		cfg.CacheSweepTimezone = "UTC"
	}
	if cfg.MetricsRetentionStr == "" {
		cfg.MetricsRetentionStr = "1h"
	}
	if cfg.EnrichmentTimeoutStr == "" {
		cfg.EnrichmentTimeoutStr = "10s"
	}
	if cfg.AttomBaseURL == "" {
		cfg.AttomBaseURL = DefaultAttomBaseURL
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}

	// Parse durations; validation is handled separately by Validate().
	cfg.TokenTTL = parseDuration(cfg.TokenTTLStr)
	cfg.CircuitBreakerCooldown = parseDuration(cfg.CircuitBreakerCooldownStr)
	cfg.CacheTTL = parseDuration(cfg.CacheTTLStr)
	cfg.MetricsRetention = parseDuration(cfg.MetricsRetentionStr)
	cfg.EnrichmentTimeout = parseDuration(cfg.EnrichmentTimeoutStr)
	cfg.DBOpTimeout = parseDuration(cfg.DBOpTimeoutStr)
	cfg.HTTPShutdownTimeout = parseDuration(cfg.HTTPShutdownTimeoutStr)

	return cfg
}

// intEnv reads a non-negative integer, logging and falling back to def on
// malformed input.
func intEnv(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := parseInt(s)
	if err != nil {
		log.Printf("config: invalid %s %q (must be a non-negative integer), using default %d", key, s, def)
		return def
	}
	return n
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		Config
		DatabaseURL string `json:"database_url,omitempty"`
		JWTSecret   string `json:"jwt_secret"`
		APIKeys     int    `json:"api_keys"`
		AttomAPIKey string `json:"attom_api_key"`
	}{
		Config:      c,
		DatabaseURL: maskSecret(c.DatabaseURL),
		JWTSecret:   maskSecret(c.JWTSecret),
		APIKeys:     len(c.APIKeys),
		AttomAPIKey: maskSecret(c.AttomAPIKey),
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}
