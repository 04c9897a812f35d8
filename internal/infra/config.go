package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Deployment profiles select the default polling budget. Short-lived
// deployments run under a hard execution ceiling and hand unfinished runs back
// to the client instead of blocking.
const (
	ProfileLongLived  = "long-lived"
	ProfileShortLived = "short-lived"
)

// Result store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

const (
	defaultPollIntervalMS         = 1000
	defaultLongLivedMaxAttempts   = 30
	defaultShortLivedMaxAttempts  = 55
	defaultSQLitePath             = "./schema_results.db"
	defaultRateLimitPerMin        = 30
	defaultHTTPWriteTimeoutSecond = 90
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DeploymentProfile string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIOrg         string
	AssistantID       string
	PollInterval      time.Duration
	PollMaxAttempts   int
	AllowAsyncResume  bool
	ResultStore       string
	DatabaseURL       string
	SQLitePath        string
	GeoIPDBPath       string
	CORSOrigins       []string
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	profile := strings.ToLower(getEnv("DEPLOYMENT_PROFILE", ProfileLongLived))
	maxAttempts := defaultLongLivedMaxAttempts
	switch profile {
	case ProfileLongLived:
	case ProfileShortLived:
		maxAttempts = defaultShortLivedMaxAttempts
	default:
		return nil, fmt.Errorf("DEPLOYMENT_PROFILE %q is not supported", profile)
	}

	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DeploymentProfile: profile,
		OpenAIAPIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:         os.Getenv("OPENAI_ORG"),
		AssistantID:       strings.TrimSpace(os.Getenv("ASSISTANT_ID")),
		PollInterval:      time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", defaultPollIntervalMS)),
		PollMaxAttempts:   getEnvInt("POLL_MAX_ATTEMPTS", maxAttempts),
		AllowAsyncResume:  getEnvBool("ALLOW_ASYNC_RESUME", profile == ProfileShortLived),
		ResultStore:       strings.ToLower(getEnv("RESULT_STORE", StoreSQLite)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        getEnv("SQLITE_PATH", defaultSQLitePath),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		CORSOrigins:       splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", defaultHTTPWriteTimeoutSecond)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", defaultRateLimitPerMin),
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}

	switch cfg.ResultStore {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when RESULT_STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("RESULT_STORE %q is not supported", cfg.ResultStore)
	}

	return cfg, nil
}

// IsDevelopment reports whether error responses may carry internal detail.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
