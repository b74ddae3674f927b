package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration. Values come from defaults,
// then an optional TOML file, then command-line overrides.
type Config struct {
	Domain   string `toml:"-"` // audit target, set from CLI
	StartURL string `toml:"-"` // seed URL derived from the CLI domain

	DataDir  string         `toml:"data_dir"` // root of per-domain audit storage
	Crawler  CrawlerConfig  `toml:"crawler"`
	Verifier VerifierConfig `toml:"verifier"`
	Cache    CacheConfig    `toml:"cache"`
	Audits   AuditConfig    `toml:"audits"`
	Logging  LoggingConfig  `toml:"logging"`
	Schedule string         `toml:"schedule"` // cron spec for periodic audits, empty = run once
}

// CrawlerConfig controls the internal crawl phase.
type CrawlerConfig struct {
	Concurrency       int     `toml:"concurrency"`         // internal crawl worker count
	MaxPages          int     `toml:"max_pages"`           // page-count limit, 0 = unlimited
	CheckpointEvery   int     `toml:"checkpoint_every"`    // persist state every N processed pages
	RequestsPerSecond float64 `toml:"requests_per_second"` // politeness limit, 0 = unlimited
	FollowRobotsTxt   bool    `toml:"follow_robots_txt"`   // respect robots.txt rules
	UserAgent         string  `toml:"user_agent"`
}

// VerifierConfig controls the external link verification phase.
type VerifierConfig struct {
	Concurrency  int           `toml:"concurrency"`   // verification worker count
	CheckTimeout time.Duration `toml:"check_timeout"` // per-attempt timeout for existence checks
	RetryCount   int           `toml:"retry_count"`   // retries after the first attempt, transient outcomes only
	RetryBackoff time.Duration `toml:"retry_backoff"` // delay between attempts
}

// CacheConfig controls the page data cache.
type CacheConfig struct {
	Capacity int `toml:"capacity"` // max memory-resident page records
}

// AuditConfig controls run history retention.
type AuditConfig struct {
	Keep int `toml:"keep"` // audit runs retained by cleanup
}

// LoggingConfig controls arbor logger output.
type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultMaxPages is the fallback when the CLI limit argument is missing or
// not a valid positive integer.
const DefaultMaxPages = 100

// DefaultConfig returns the built-in configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "data",
		Crawler: CrawlerConfig{
			Concurrency:       5,
			MaxPages:          DefaultMaxPages,
			CheckpointEvery:   3,
			RequestsPerSecond: 8,
			FollowRobotsTxt:   false,
			UserAgent:         "siteaudit/" + Version,
		},
		Verifier: VerifierConfig{
			Concurrency:  10,
			CheckTimeout: 10 * time.Second,
			RetryCount:   2,
			RetryBackoff: time.Second,
		},
		Cache: CacheConfig{
			Capacity: 100,
		},
		Audits: AuditConfig{
			Keep: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadConfig loads configuration from an optional TOML file layered over the
// defaults. An empty path returns the defaults; a missing file at an explicit
// path is an error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return config, nil
}

// CleanDomain strips the scheme and trailing slash from a CLI domain
// argument and lowercases the host.
func CleanDomain(raw string) string {
	domain := strings.TrimSpace(raw)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimSuffix(domain, "/")
	return strings.ToLower(domain)
}

// SeedURL derives the crawl seed from the raw CLI argument. The scheme is
// preserved when the caller gave one, otherwise https is assumed.
func SeedURL(raw string) string {
	scheme := "https"
	if strings.HasPrefix(strings.TrimSpace(raw), "http://") {
		scheme = "http"
	}
	return scheme + "://" + CleanDomain(raw) + "/"
}

// ParseMaxPages parses the optional CLI page limit. Invalid or non-positive
// values fall back to the configured default.
func ParseMaxPages(arg string, fallback int) int {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
