package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Driver AI backends, in priority order (primary first).
	BackendURLs []string

	// Per-attempt timeouts by endpoint class
	ChatTimeout    time.Duration
	AnalyzeTimeout time.Duration
	HealthTimeout  time.Duration

	// Dispatch
	MaxCandidates        int
	LegacyQueryEndpoints bool
	HistoryWindow        int

	// Health cache
	HealthCacheTTL time.Duration

	// Health probing
	ProbeRetries   int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Observability
	OTLPEndpoint string

	// Optional TOML file overriding backends and timeouts
	ConfigFile string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendURLs: getEnvList("DRIVER_AI_URLS", []string{"http://localhost:8000"}),

		ChatTimeout:    getEnvDuration("CHAT_TIMEOUT", 15*time.Second),
		AnalyzeTimeout: getEnvDuration("ANALYZE_TIMEOUT", 30*time.Second),
		HealthTimeout:  getEnvDuration("HEALTH_TIMEOUT", 5*time.Second),

		MaxCandidates:        getEnvInt("MAX_CANDIDATES", 3),
		LegacyQueryEndpoints: getEnv("LEGACY_QUERY_ENDPOINTS", "true") == "true",
		HistoryWindow:        getEnvInt("HISTORY_WINDOW", 10),

		HealthCacheTTL: getEnvDuration("HEALTH_CACHE_TTL", 30*time.Second),

		ProbeRetries:   getEnvInt("PROBE_RETRIES", 1),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 4),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		ConfigFile: getEnv("ROUTER_CONFIG", ""),
	}
}

// Validate rejects configurations the router cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.BackendURLs) == 0 {
		errs = append(errs, errors.New("at least one backend URL is required"))
	}
	for _, u := range c.BackendURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("backend URL %q must be http(s)", u))
		}
	}
	if c.ChatTimeout <= 0 || c.AnalyzeTimeout <= 0 || c.HealthTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.MaxCandidates <= 0 {
		errs = append(errs, errors.New("max candidates must be positive"))
	}
	if c.HealthCacheTTL <= 0 {
		errs = append(errs, errors.New("health cache TTL must be positive"))
	}
	if c.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("max concurrency must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks and
// trailing slashes.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimRight(strings.TrimSpace(part), "/")
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
