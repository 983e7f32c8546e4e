// Package config loads huddle settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// HUDDLE_* environment variables. Command-line flags are applied on top by
// cmd/huddle. API keys are never part of Config; see credentials.FromEnv.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "HUDDLE"

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full runtime configuration.
type Config struct {
	Workers      int  `yaml:"workers" envconfig:"WORKERS"`
	UpcomingOnly bool `yaml:"upcoming_only" envconfig:"UPCOMING_ONLY"`

	Input  string `yaml:"input" envconfig:"INPUT"`
	Output string `yaml:"output" envconfig:"OUTPUT"`
	Menu   string `yaml:"menu" envconfig:"MENU"`
	Seed   uint64 `yaml:"seed" envconfig:"SEED"`

	OpenAIBaseURL string `yaml:"openai_base_url" envconfig:"OPENAI_BASE_URL"`

	MaxAttempts    int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	BaseDelay      time.Duration `yaml:"base_delay" envconfig:"BASE_DELAY"`
	MaxDelay       time.Duration `yaml:"max_delay" envconfig:"MAX_DELAY"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" envconfig:"ATTEMPT_TIMEOUT"`
	RateLimit      float64       `yaml:"rate_limit" envconfig:"RATE_LIMIT"`

	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT"`

	RedisURL  string        `yaml:"redis_url" envconfig:"REDIS_URL"`
	CacheTTL  time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	CacheSize int           `yaml:"cache_size" envconfig:"CACHE_SIZE"`

	MetricsAddr  string `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`
	OTLPEndpoint string `yaml:"otlp_endpoint" envconfig:"OTLP_ENDPOINT"`
	TraceConsole bool   `yaml:"trace_console" envconfig:"TRACE_CONSOLE"`
}

// Default returns the built-in configuration. The response cache is off
// until CacheSize or RedisURL is set.
func Default() Config {
	return Config{
		Workers:        8,
		Input:          "fine-dining-dataset.json",
		Output:         "augmented-fine-dining-dataset.json",
		Seed:           1,
		MaxAttempts:    10,
		BaseDelay:      time.Second,
		MaxDelay:       60 * time.Second,
		AttemptTimeout: 2 * time.Minute,
		LogLevel:       "info",
		LogFormat:      "text",
		CacheTTL:       24 * time.Hour,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty or the file does not exist) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if strings.TrimSpace(c.Input) == "" {
		errs = append(errs, errors.New("input path is required"))
	}
	if strings.TrimSpace(c.Output) == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.BaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("base_delay must be positive, got %s", c.BaseDelay))
	}
	if c.MaxDelay < c.BaseDelay {
		errs = append(errs, fmt.Errorf("max_delay %s is below base_delay %s", c.MaxDelay, c.BaseDelay))
	}
	if c.AttemptTimeout < 0 {
		errs = append(errs, fmt.Errorf("attempt_timeout must not be negative, got %s", c.AttemptTimeout))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative, got %v", c.RateLimit))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize))
	}
	if c.CacheEnabled() && c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache_ttl must be positive when caching, got %s", c.CacheTTL))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// CacheEnabled reports whether a response cache is configured.
func (c Config) CacheEnabled() bool {
	return c.RedisURL != "" || c.CacheSize > 0
}
