package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the mirror service
type Config struct {
	// HTTP server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Upstream platform settings
	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`

	// Per-requester quota settings
	Quota QuotaConfig `yaml:"quota" json:"quota"`

	// Entity cache settings
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Egress path settings
	Egress EgressConfig `yaml:"egress" json:"egress"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds the inbound HTTP surface configuration
type ServerConfig struct {
	ListenAddr     string `yaml:"listen_addr" json:"listen_addr"`
	MetricsEnabled bool   `yaml:"metrics_enabled" json:"metrics_enabled"`
}

// UpstreamConfig holds settings for the third-party platform client
type UpstreamConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`

	// Endpoints the administrator has deliberately made unreachable.
	// Requests touching them fail with an endpoint-overridden error.
	BlockedEndpoints []string `yaml:"blocked_endpoints" json:"blocked_endpoints"`
}

// QuotaConfig holds the rolling-window quota settings
type QuotaConfig struct {
	Window  time.Duration `yaml:"window" json:"window"`
	Budget  int           `yaml:"budget" json:"budget"`
	Weights WeightsConfig `yaml:"weights" json:"weights"`
}

// WeightsConfig assigns a unit cost to each upstream call kind
type WeightsConfig struct {
	UserSummary int `yaml:"user_summary" json:"user_summary"`
	PostPage    int `yaml:"post_page" json:"post_page"`
	PostDetail  int `yaml:"post_detail" json:"post_detail"`
	VideoURL    int `yaml:"video_url" json:"video_url"`
}

// CacheConfig holds TTL classes for the entity cache
type CacheConfig struct {
	// LongTTL applies to normally resolved entities
	LongTTL time.Duration `yaml:"long_ttl" json:"long_ttl"`
	// ShortTTL applies to blocked/unavailable sentinels so the next real
	// retry happens sooner
	ShortTTL time.Duration `yaml:"short_ttl" json:"short_ttl"`
}

// EgressConfig holds the ranked egress path list and block cooldown
type EgressConfig struct {
	Cooldown        time.Duration `yaml:"cooldown" json:"cooldown"`
	ForceAnonymized bool          `yaml:"force_anonymized" json:"force_anonymized"`
	Paths           []PathConfig  `yaml:"paths" json:"paths"`
}

// PathConfig describes one egress path. An empty ProxyURL means direct
// egress; otherwise a SOCKS5 proxy address (e.g. the local onion router).
type PathConfig struct {
	Name       string `yaml:"name" json:"name"`
	Anonymized bool   `yaml:"anonymized" json:"anonymized"`
	ProxyURL   string `yaml:"proxy_url" json:"proxy_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":10407",
			MetricsEnabled: true,
		},
		Upstream: UpstreamConfig{
			BaseURL:   "https://www.instagram.com",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:87.0) Gecko/20100101 Firefox/87.0",
			Timeout:   30 * time.Second,
		},
		Quota: QuotaConfig{
			Window: time.Hour,
			Budget: 50,
			Weights: WeightsConfig{
				UserSummary: 3,
				PostPage:    2,
				PostDetail:  2,
				VideoURL:    1,
			},
		},
		Cache: CacheConfig{
			LongTTL:  30 * time.Minute,
			ShortTTL: 3 * time.Minute,
		},
		Egress: EgressConfig{
			Cooldown: 10 * time.Minute,
			Paths: []PathConfig{
				{Name: "direct"},
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given YAML file, layered over defaults,
// with environment variable overrides applied last. An empty path loads
// defaults and environment only.
func Load(path string) (*Config, error) {
	// Load .env if present; missing files are fine
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides overrides configuration values from environment variables
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("IGMIRROR_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("IGMIRROR_UPSTREAM_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("IGMIRROR_USER_AGENT"); v != "" {
		c.Upstream.UserAgent = v
	}
	if v := os.Getenv("IGMIRROR_QUOTA_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Quota.Budget = n
		}
	}
	if v := os.Getenv("IGMIRROR_QUOTA_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Quota.Window = d
		}
	}
	if v := os.Getenv("IGMIRROR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	var errs []error

	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr must not be empty"))
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.base_url must not be empty"))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}
	if c.Quota.Window <= 0 {
		errs = append(errs, errors.New("quota.window must be positive"))
	}
	if c.Quota.Budget <= 0 {
		errs = append(errs, errors.New("quota.budget must be positive"))
	}
	for name, w := range map[string]int{
		"user_summary": c.Quota.Weights.UserSummary,
		"post_page":    c.Quota.Weights.PostPage,
		"post_detail":  c.Quota.Weights.PostDetail,
		"video_url":    c.Quota.Weights.VideoURL,
	} {
		if w < 0 {
			errs = append(errs, fmt.Errorf("quota.weights.%s must not be negative", name))
		}
	}
	if c.Cache.LongTTL <= 0 {
		errs = append(errs, errors.New("cache.long_ttl must be positive"))
	}
	if c.Cache.ShortTTL <= 0 {
		errs = append(errs, errors.New("cache.short_ttl must be positive"))
	}
	if c.Cache.ShortTTL > c.Cache.LongTTL {
		errs = append(errs, errors.New("cache.short_ttl must not exceed cache.long_ttl"))
	}
	if c.Egress.Cooldown <= 0 {
		errs = append(errs, errors.New("egress.cooldown must be positive"))
	}
	if len(c.Egress.Paths) == 0 {
		errs = append(errs, errors.New("egress.paths must list at least one path"))
	}
	seen := make(map[string]bool)
	for i, p := range c.Egress.Paths {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("egress.paths[%d].name must not be empty", i))
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("egress.paths: duplicate path name %q", p.Name))
		}
		seen[p.Name] = true
	}

	return errors.Join(errs...)
}
