package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lmcdonald6/reic-gateway/internal/analytics"
	"github.com/lmcdonald6/reic-gateway/internal/api"
	"github.com/lmcdonald6/reic-gateway/internal/archive"
	"github.com/lmcdonald6/reic-gateway/internal/auth"
	"github.com/lmcdonald6/reic-gateway/internal/config"
	"github.com/lmcdonald6/reic-gateway/internal/cron"
	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/gateway"
	"github.com/lmcdonald6/reic-gateway/internal/janitor"
	"github.com/lmcdonald6/reic-gateway/internal/metrics"
	"github.com/lmcdonald6/reic-gateway/internal/ratelimit"
	"github.com/lmcdonald6/reic-gateway/internal/source"
	"github.com/lmcdonald6/reic-gateway/internal/source/attom"
	"github.com/lmcdonald6/reic-gateway/internal/store/postgres"
	"github.com/lmcdonald6/reic-gateway/internal/transport/channel"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "usage":
		os.Exit(runUsage())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`reicgw - real-estate request gateway

Usage:
  reicgw <command>

Commands:
  serve      Start the HTTP gateway, janitor and request archive
  validate   Validate configuration and policy file (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  usage      Print current rate-limit usage mirrored in Redis
  version    Print version information

Environment Variables:
  HTTP_ADDR                 HTTP server address (default: ":8080", or ":$PORT")
  JWT_SECRET                HS256 secret for bearer tokens (empty rejects all tokens)
  API_KEYS                  Comma-separated keys accepted by POST /auth/token
  TOKEN_TTL                 Lifetime of issued tokens (default: "24h")

  CIRCUIT_BREAKER_THRESHOLD Consecutive failures before opening (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Open duration before a probe (default: "5m")
  CACHE_TTL                 Default response cache TTL (default: "24h")
  CACHE_MAX_ENTRIES         Cache entry cap (default: "10000")
  CACHE_SWEEP_SCHEDULE      Janitor cron expression (default: "*/10 * * * *")
  CACHE_SWEEP_TIMEZONE      IANA timezone the sweep schedule is evaluated in (default: "UTC")
  METRICS_RETENTION         Age at which request records are swept (default: "1h")

  ENRICHMENT_MONTHLY_QUOTA  ATTOM soft monthly cap (default: "400")
  ENRICHMENT_TIMEOUT        Per-call enrichment deadline (default: "10s")
  ATTOM_API_KEY             ATTOM key; empty uses the simulated provider
  ATTOM_BASE_URL            ATTOM property API base URL
  COMPRESSION_THRESHOLD     Item count above which responses are compressed (default: "10")

  INGRESS_RPS               Per-client requests per second, 0 disables (default: "20")
  INGRESS_BURST             Per-client burst (default: "40")
  CORS_ALLOWED_ORIGINS      Comma-separated origins (default: "*")

  REDIS_ADDR                Redis address for usage analytics (optional)
  DATABASE_URL              PostgreSQL request-log archive (optional)
  DB_OP_TIMEOUT             Archive write timeout (default: "5s")
  ARCHIVE_BUFFER_SIZE       Archive channel buffer (default: "256")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")
  POLICY_FILE               YAML rate-limit/cache/essential-field overrides (optional)`)
}

// loadConfig loads and validates configuration plus the optional policy file.
func loadConfig() (config.Config, config.Policy, error) {
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		return cfg, config.Policy{}, err
	}
	var policy config.Policy
	if cfg.PolicyFile != "" {
		p, err := config.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return cfg, config.Policy{}, fmt.Errorf("policy file: %w", err)
		}
		policy = p
	}
	return cfg, policy, nil
}

// ratePolicies resolves the quota table: stock defaults, the configured
// enrichment quota, then policy file overrides.
func ratePolicies(cfg config.Config, policy config.Policy) map[domain.RequestType]ratelimit.Policy {
	base := ratelimit.DefaultPolicies()
	base[domain.RequestTypeAttomAPI] = ratelimit.Policy{
		Limit:  cfg.EnrichmentMonthlyQuota,
		Window: ratelimit.Monthly,
		Kind:   ratelimit.Soft,
	}
	return policy.Apply(base)
}

// newSweepSchedule compiles the janitor schedule in its configured zone.
func newSweepSchedule(cfg config.Config) (cron.Schedule, error) {
	return cron.NewParser().Parse(cfg.CacheSweepSchedule, cfg.CacheSweepTimezone)
}

// logConfigWarnings surfaces configurations that run but degrade the gateway.
func logConfigWarnings(cfg config.Config) {
	if cfg.JWTSecret == "" {
		log.Println("WARNING [P0]: JWT_SECRET is empty; every bearer token will be rejected and only anonymous requests succeed")
	}
	if cfg.IngressRPS <= 0 {
		log.Println("WARNING [P1]: INGRESS_RPS=0; per-client ingress throttling is disabled")
	}
	if !cfg.MetricsEnabled {
		log.Println("WARNING [P1]: METRICS_ENABLED=false; breaker transitions and quota usage are only visible in logs")
	}
	if len(cfg.AllowedOrigins) == 0 {
		log.Println("INFO: CORS_ALLOWED_ORIGINS not set; all origins are allowed")
	}
	if cfg.AttomAPIKey == "" {
		log.Println("INFO: ATTOM_API_KEY not set; enrichment uses the simulated provider")
	}
	if cfg.DatabaseURL == "" {
		log.Println("INFO: DATABASE_URL not set; request archive disabled")
	}
	if cfg.RedisAddr == "" {
		log.Println("INFO: REDIS_ADDR not set; usage analytics disabled")
	}
}

func runServe() int {
	cfg, policy, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	logConfigWarnings(cfg)

	sweepSchedule, err := newSweepSchedule(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	var sink metrics.Sink = metrics.NewNoopSink()
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		sink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("reicgw: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("reicgw: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("reicgw: metrics server error: %v", err)
			}
		}()
	}

	var enrichment source.EnrichmentProvider
	if cfg.AttomAPIKey != "" {
		enrichment = attom.NewClient(cfg.AttomBaseURL, cfg.AttomAPIKey, cfg.EnrichmentTimeout)
		log.Printf("reicgw: enrichment enabled (base_url=%s)", cfg.AttomBaseURL)
	} else {
		enrichment = attom.NewSimulated(50 * time.Millisecond)
	}

	opts := []gateway.Option{
		gateway.WithMetricsSink(sink),
		gateway.WithAuth(auth.NewGate(cfg.JWTSecret, cfg.APIKeys, cfg.TokenTTL)),
		gateway.WithPolicies(ratePolicies(cfg, policy)),
		gateway.WithBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown),
		gateway.WithCache(cfg.CacheTTL, policy.CacheTTLs, cfg.CacheMaxEntries),
		gateway.WithEnrichment(enrichment, cfg.EnrichmentTimeout),
		gateway.WithProtocol(cfg.CompressionThreshold, policy.EssentialFields),
	}
	checkers := make(map[string]api.HealthChecker)

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer redisClient.Close()
		usage := analytics.NewRedisSink(redisClient, 0)
		opts = append(opts, gateway.WithUsageWriter(usage))
		checkers["redis"] = api.PingFunc(usage.Ping)
		log.Printf("reicgw: usage analytics enabled (redis=%s)", cfg.RedisAddr)
	}

	// Request archive: recorder -> bus -> archiver -> Postgres.
	var bus *channel.EventBus
	var archiver *archive.Archiver
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			return exitRuntimeError
		}
		defer db.Close()

		store := postgres.New(db, cfg.DBOpTimeout)
		migrateCtx, cancel := context.WithTimeout(context.Background(), cfg.DBOpTimeout)
		err = store.Migrate(migrateCtx)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to prepare database: %v\n", err)
			return exitRuntimeError
		}

		bus = channel.NewEventBus(cfg.ArchiveBufferSize, channel.WithMetrics(sink))
		archiver = archive.New(store).WithMetrics(sink)
		opts = append(opts, gateway.WithEmitter(func(m domain.RequestMetrics) { bus.TryEmit(m) }))
		checkers["postgres"] = store
		log.Printf("reicgw: request archive enabled (buffer=%d)", cfg.ArchiveBufferSize)
	}

	gw := gateway.New(opts...)

	handler := api.NewHandler(gw)
	for name, c := range checkers {
		handler = handler.WithHealthChecker(name, c)
	}
	throttle := api.NewThrottle(cfg.IngressRPS, cfg.IngressBurst)

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.Wrap(handler, api.MiddlewareConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			Throttle:       throttle,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("reicgw: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("reicgw: http server error: %v", err)
		}
	}()

	// Separate contexts for janitor and archiver to enable ordered shutdown.
	janitorCtx, cancelJanitor := context.WithCancel(context.Background())
	archiverCtx, cancelArchiver := context.WithCancel(context.Background())

	var janitorWg sync.WaitGroup
	var archiverWg sync.WaitGroup

	jan := janitor.New(janitor.Config{
		Schedule:  sweepSchedule,
		Retention: cfg.MetricsRetention,
	}, gw)
	if throttle != nil {
		jan = jan.WithIdleCleaner(throttle)
	}
	janitorWg.Add(1)
	go func() {
		defer janitorWg.Done()
		jan.Run(janitorCtx)
	}()

	if archiver != nil {
		archiverWg.Add(1)
		go func() {
			defer archiverWg.Done()
			archiver.Run(archiverCtx, bus.Channel())
		}()
	}

	log.Printf("reicgw: started (http=%s, sweep=%q, sweep_tz=%s)", cfg.HTTPAddr, sweepSchedule, cfg.CacheSweepTimezone)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("reicgw: received signal %v, shutting down", received)

	// Phase 1: Stop HTTP server (no new requests)
	log.Println("reicgw: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("reicgw: http server shutdown error: %v", err)
	}
	log.Println("reicgw: http server stopped")

	// Phase 2: Close gateway (waits for in-flight usage writes)
	if err := gw.Close(); err != nil {
		log.Printf("reicgw: gateway close error: %v", err)
	}

	// Phase 3: Stop janitor
	log.Println("reicgw: stopping janitor...")
	cancelJanitor()
	janitorWg.Wait()
	log.Println("reicgw: janitor stopped")

	// Phase 4: Stop archiver (drains buffered records before returning)
	if archiver != nil {
		log.Println("reicgw: stopping archiver (draining records)...")
		cancelArchiver()
		archiverWg.Wait()
		log.Println("reicgw: archiver stopped")
	} else {
		cancelArchiver()
	}

	// Phase 5: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("reicgw: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("reicgw: metrics server shutdown error: %v", err)
		}
		log.Println("reicgw: metrics server stopped")
	}

	log.Println("reicgw: stopped")
	return exitSuccess
}

func runValidate() int {
	if _, _, err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

// usageRow is one bucket of the usage report.
type usageRow struct {
	Bucket   domain.RequestType `json:"bucket"`
	Period   string             `json:"period"`
	Limit    int                `json:"limit"`
	Kind     string             `json:"kind"`
	Counters map[string]int64   `json:"counters"`
}

type usageReport struct {
	Buckets []usageRow         `json:"buckets"`
	Archive []postgres.Summary `json:"archive_last_24h,omitempty"`
}

func runUsage() int {
	cfg, policy, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	if cfg.RedisAddr == "" {
		fmt.Fprintln(os.Stderr, "REDIS_ADDR is required for usage")
		return exitInvalidConfig
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	usage := analytics.NewRedisSink(redisClient, 0)

	report, err := buildUsageReport(ctx, usage, ratePolicies(cfg, policy), time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read usage: %v\n", err)
		return exitRuntimeError
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			return exitRuntimeError
		}
		defer db.Close()
		summary, err := postgres.New(db, cfg.DBOpTimeout).Summarize(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to summarize archive: %v\n", err)
			return exitRuntimeError
		}
		report.Archive = summary
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal usage: %v\n", err)
		return exitRuntimeError
	}
	fmt.Println(string(data))
	return exitSuccess
}

// usageReader is the read side of analytics.RedisSink.
type usageReader interface {
	Read(ctx context.Context, bucket domain.RequestType, period string) (map[string]int64, error)
}

func buildUsageReport(ctx context.Context, r usageReader, policies map[domain.RequestType]ratelimit.Policy, now time.Time) (usageReport, error) {
	buckets := make([]domain.RequestType, 0, len(policies))
	for b := range policies {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

	report := usageReport{Buckets: make([]usageRow, 0, len(buckets))}
	for _, b := range buckets {
		p := policies[b]
		period := p.Window.Bucket(now)
		counters, err := r.Read(ctx, b, period)
		if err != nil {
			return usageReport{}, fmt.Errorf("bucket %s: %w", b, err)
		}
		report.Buckets = append(report.Buckets, usageRow{
			Bucket:   b,
			Period:   period,
			Limit:    p.Limit,
			Kind:     p.Kind.String(),
			Counters: counters,
		})
	}
	return report, nil
}

func runVersion() int {
	fmt.Printf("reicgw version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
