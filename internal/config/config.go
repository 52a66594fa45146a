// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken string
	Repos       []string

	DBPath string

	TickInterval time.Duration
	CycleTimeout time.Duration
	RecentWindow time.Duration
	CacheTTL     time.Duration

	MaxConcurrentRepos        int64
	MaxConcurrentCheckFetches int64

	QuotaRequestsPerHour int
	QuotaMaxInFlight     int64
	QuotaWaitTimeout     time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. CITRIAGE_GITHUB_TOKEN is required. CITRIAGE_REPOS is an optional
// comma-separated list of owner/name repositories seeded into the watch list
// at startup. Everything else has a default:
// CITRIAGE_TICK_INTERVAL (30s), CITRIAGE_CYCLE_TIMEOUT (2m),
// CITRIAGE_RECENT_WINDOW (168h), CITRIAGE_CACHE_TTL (30s),
// CITRIAGE_DB_PATH (citriage.db), CITRIAGE_MAX_CONCURRENT_REPOS (5),
// CITRIAGE_MAX_CONCURRENT_CHECK_FETCHES (5),
// CITRIAGE_QUOTA_REQUESTS_PER_HOUR (5000), CITRIAGE_QUOTA_MAX_IN_FLIGHT (10),
// CITRIAGE_QUOTA_WAIT_TIMEOUT (30s).
func Load() (*Config, error) {
	token := os.Getenv("CITRIAGE_GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("CITRIAGE_GITHUB_TOKEN is required")
	}

	cfg := &Config{
		GitHubToken:               token,
		Repos:                     splitList(os.Getenv("CITRIAGE_REPOS")),
		DBPath:                    "citriage.db",
		TickInterval:              30 * time.Second,
		CycleTimeout:              2 * time.Minute,
		RecentWindow:              7 * 24 * time.Hour,
		CacheTTL:                  30 * time.Second,
		MaxConcurrentRepos:        5,
		MaxConcurrentCheckFetches: 5,
		QuotaRequestsPerHour:      5000,
		QuotaMaxInFlight:          10,
		QuotaWaitTimeout:          30 * time.Second,
	}

	if v, ok := os.LookupEnv("CITRIAGE_DB_PATH"); ok {
		cfg.DBPath = v
	}

	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"CITRIAGE_TICK_INTERVAL", &cfg.TickInterval},
		{"CITRIAGE_CYCLE_TIMEOUT", &cfg.CycleTimeout},
		{"CITRIAGE_RECENT_WINDOW", &cfg.RecentWindow},
		{"CITRIAGE_CACHE_TTL", &cfg.CacheTTL},
		{"CITRIAGE_QUOTA_WAIT_TIMEOUT", &cfg.QuotaWaitTimeout},
	}
	for _, d := range durations {
		if v, ok := os.LookupEnv(d.key); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%s has invalid duration %q: %w", d.key, v, err)
			}
			if parsed <= 0 {
				return nil, fmt.Errorf("%s must be positive, got %q", d.key, v)
			}
			*d.dest = parsed
		}
	}

	ints := []struct {
		key  string
		dest *int64
	}{
		{"CITRIAGE_MAX_CONCURRENT_REPOS", &cfg.MaxConcurrentRepos},
		{"CITRIAGE_MAX_CONCURRENT_CHECK_FETCHES", &cfg.MaxConcurrentCheckFetches},
		{"CITRIAGE_QUOTA_MAX_IN_FLIGHT", &cfg.QuotaMaxInFlight},
	}
	for _, n := range ints {
		if v, ok := os.LookupEnv(n.key); ok {
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil || parsed < 1 {
				return nil, fmt.Errorf("%s must be a positive integer, got %q", n.key, v)
			}
			*n.dest = parsed
		}
	}

	if v, ok := os.LookupEnv("CITRIAGE_QUOTA_REQUESTS_PER_HOUR"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("CITRIAGE_QUOTA_REQUESTS_PER_HOUR must be a positive integer, got %q", v)
		}
		cfg.QuotaRequestsPerHour = parsed
	}

	for _, repo := range cfg.Repos {
		if !strings.Contains(repo, "/") {
			return nil, fmt.Errorf("CITRIAGE_REPOS entry %q is not owner/name", repo)
		}
	}

	return cfg, nil
}

// splitList splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
