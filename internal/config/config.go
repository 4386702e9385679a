package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	series "dashboard-refresher/internal/series/core/domain"
)

const (
	BackendMetabase = "metabase"
	BackendPostgres = "postgres"
)

var (
	ErrMissingAPIKey = errors.New("METABASE_API_KEY is required for the metabase backend")
	ErrMissingDSN    = errors.New("WAREHOUSE_DSN is required for the postgres backend")
	ErrBadBackend    = errors.New("QUERY_BACKEND must be metabase or postgres")
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Query backend
	Backend            string
	MetabaseURL        string
	MetabaseAPIKey     string
	MetabaseDatabaseID int
	WarehouseDSN       string
	WarehouseDriver    string            // "postgres" (lib/pq) or "pgx"
	WarehouseTables    map[string]string // logical source -> table

	// Upstream sources
	RevenueSource string
	TrialSource   string
	PurchaseTable string

	// Fetching
	Start            time.Time
	FetchRetries     int
	FetchBackoff     time.Duration
	FetchTimeout     time.Duration
	ShardParallelism int

	// Files
	TemplateFile string
	OutputFile   string
	LabelsFile   string

	// Snapshots
	RedisURL       string
	SnapshotPrefix string
	SnapshotTTL    time.Duration

	// Outputs
	PushgatewayURL  string
	SlackWebhookURL string
	DashboardName   string

	// Serve mode
	ServerAddr      string
	RefreshInterval time.Duration

	// Template passthrough, e.g. GOOGLE_SHEETS_ID
	Passthrough map[string]string

	Labels *Labels
}

var passthroughKeys = []string{"GOOGLE_SHEETS_ID", "GOOGLE_API_KEY", "GOOGLE_APPS_SCRIPT_URL"}

// LoadEnvironment loads envFile into the process environment. A missing file
// is not an error; variables already set win.
func LoadEnvironment(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// Load reads configuration from environment variables with defaults and
// validates it.
func Load() (*Config, error) {
	var errs []error
	cfg := &Config{
		Backend:            strings.ToLower(getEnv("QUERY_BACKEND", BackendMetabase)),
		MetabaseURL:        strings.TrimRight(getEnv("METABASE_URL", "https://metabase.ultrahuman.com"), "/"),
		MetabaseAPIKey:     getEnv("METABASE_API_KEY", ""),
		MetabaseDatabaseID: parseInt("METABASE_DATABASE_ID", 2, &errs),
		WarehouseDSN:       getEnv("WAREHOUSE_DSN", ""),
		WarehouseDriver:    getEnv("WAREHOUSE_DRIVER", "postgres"),
		WarehouseTables:    parsePairs(getEnv("WAREHOUSE_TABLES", "card__9061=revenue_by_country,card__19529=trial_conversions")),

		RevenueSource: getEnv("REVENUE_SOURCE", "card__9061"),
		TrialSource:   getEnv("TRIAL_SOURCE", "card__19529"),
		PurchaseTable: getEnv("PURCHASE_TABLE", "purchases"),

		FetchRetries:     parseInt("FETCH_RETRIES", 3, &errs),
		FetchBackoff:     parseDuration("FETCH_BACKOFF", 10*time.Second, &errs),
		FetchTimeout:     parseDuration("FETCH_TIMEOUT", 300*time.Second, &errs),
		ShardParallelism: parseInt("SHARD_PARALLELISM", 4, &errs),

		TemplateFile: getEnv("TEMPLATE_FILE", "dashboard_template.html"),
		OutputFile:   getEnv("OUTPUT_FILE", "powerplugs_dashboard.html"),
		LabelsFile:   getEnv("LABELS_FILE", ""),

		RedisURL:       getEnv("REDIS_URL", ""),
		SnapshotPrefix: getEnv("SNAPSHOT_PREFIX", "dashboard:snapshot"),
		SnapshotTTL:    parseDuration("SNAPSHOT_TTL", 0, &errs),

		PushgatewayURL:  getEnv("PUSHGATEWAY_URL", ""),
		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		DashboardName:   getEnv("DASHBOARD_NAME", "Powerplugs dashboard"),

		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		RefreshInterval: parseDuration("REFRESH_INTERVAL", time.Hour, &errs),

		Passthrough: map[string]string{},
	}
	for _, k := range passthroughKeys {
		cfg.Passthrough[k] = os.Getenv(k)
	}

	start, err := series.ParseDay(getEnv("DATA_START_DATE", "2025-09-01"))
	if err != nil {
		errs = append(errs, fmt.Errorf("DATA_START_DATE: %w", err))
	}
	cfg.Start = start

	labels, err := LoadLabels(cfg.LabelsFile)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Labels = labels

	if len(errs) == 0 {
		errs = append(errs, cfg.Validate())
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMetabase:
		if c.MetabaseAPIKey == "" {
			errs = append(errs, ErrMissingAPIKey)
		}
	case BackendPostgres:
		if c.WarehouseDSN == "" {
			errs = append(errs, ErrMissingDSN)
		}
	default:
		errs = append(errs, fmt.Errorf("%w, got %q", ErrBadBackend, c.Backend))
	}
	if c.FetchRetries < 1 {
		errs = append(errs, errors.New("FETCH_RETRIES must be at least 1"))
	}
	if c.ShardParallelism < 1 {
		errs = append(errs, errors.New("SHARD_PARALLELISM must be at least 1"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}
	if c.Labels != nil {
		errs = append(errs, c.Labels.Validate())
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func parseDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

// parsePairs reads "a=b,c=d".
func parsePairs(s string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k == "" {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
