// Package config assembles mdlinkcheck settings from defaults, an optional
// YAML file and MDLINKCHECK_* environment variables. Command-line flags are
// applied on top by the cli package.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lukemcguire/mdlinkcheck/checker"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MDLINKCHECK_"

// Config holds the application's configuration values.
type Config struct {
	Root                string        `yaml:"root"`
	Format              string        `yaml:"format"`
	LogLevel            string        `yaml:"log_level"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxRedirects        int           `yaml:"max_redirects"`
	Concurrency         int           `yaml:"concurrency"`
	DocumentConcurrency int           `yaml:"document_concurrency"`
	Retries             int           `yaml:"retries"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
	RateLimit           int           `yaml:"rate_limit"`
	FixedRate           bool          `yaml:"fixed_rate"`
	UserAgent           string        `yaml:"user_agent"`
	FallbackGET         bool          `yaml:"fallback_get"`
	RespectRobots       bool          `yaml:"robots"`
	TUI                 bool          `yaml:"tui"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Root:                ".",
		Format:              FormatText,
		LogLevel:            "warn",
		Timeout:             checker.DefaultRequestTimeout,
		MaxRedirects:        checker.DefaultMaxRedirects,
		Concurrency:         checker.DefaultConcurrency,
		DocumentConcurrency: checker.DefaultDocumentConcurrency,
		RetryDelay:          time.Second,
		UserAgent:           checker.DefaultUserAgent,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the settings present in a YAML file. Keys that are not
// present keep their current value; unknown keys are an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays MDLINKCHECK_* environment variables. Values that fail to
// parse are ignored.
func (c *Config) ApplyEnv() {
	c.Root = getEnv("ROOT", c.Root)
	c.Format = getEnv("FORMAT", c.Format)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Timeout = getEnvDuration("TIMEOUT", c.Timeout)
	c.MaxRedirects = getEnvInt("MAX_REDIRECTS", c.MaxRedirects)
	c.Concurrency = getEnvInt("CONCURRENCY", c.Concurrency)
	c.DocumentConcurrency = getEnvInt("DOC_CONCURRENCY", c.DocumentConcurrency)
	c.Retries = getEnvInt("RETRIES", c.Retries)
	c.RetryDelay = getEnvDuration("RETRY_DELAY", c.RetryDelay)
	c.RateLimit = getEnvInt("RATE_LIMIT", c.RateLimit)
	c.FixedRate = getEnvBool("FIXED_RATE", c.FixedRate)
	c.UserAgent = getEnv("USER_AGENT", c.UserAgent)
	c.FallbackGET = getEnvBool("FALLBACK_GET", c.FallbackGET)
	c.RespectRobots = getEnvBool("ROBOTS", c.RespectRobots)
	c.TUI = getEnvBool("TUI", c.TUI)
}

// Validate reports settings that cannot be honoured. Errors wrap
// checker.ErrInvalidRequest.
func (c Config) Validate() error {
	var errs []error
	switch c.Format {
	case FormatText, FormatJSON, FormatCSV:
	default:
		errs = append(errs, fmt.Errorf("unknown format %q (want text, json or csv)", c.Format))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", c.Timeout))
	}
	if c.MaxRedirects < 0 {
		errs = append(errs, fmt.Errorf("max redirects must not be negative, got %d", c.MaxRedirects))
	}
	if c.DocumentConcurrency < 0 {
		errs = append(errs, fmt.Errorf("document concurrency must not be negative, got %d", c.DocumentConcurrency))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %d", c.RateLimit))
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		errs = append(errs, errors.New("user agent must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", checker.ErrInvalidRequest, errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// CheckerConfig converts the settings into a checker.Config.
func (c Config) CheckerConfig(logger *slog.Logger) checker.Config {
	maxRedirects := c.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = checker.NoRedirects
	}
	return checker.Config{
		Concurrency:         c.Concurrency,
		DocumentConcurrency: c.DocumentConcurrency,
		RequestTimeout:      c.Timeout,
		MaxRedirects:        maxRedirects,
		UserAgent:           c.UserAgent,
		RateLimit:           c.RateLimit,
		FixedRate:           c.FixedRate,
		RetryPolicy: checker.RetryPolicy{
			MaxRetries: c.Retries,
			BaseDelay:  c.RetryDelay,
			MaxDelay:   checker.DefaultRetryPolicy().MaxDelay,
		},
		FallbackGET:   c.FallbackGET,
		RespectRobots: c.RespectRobots,
		Logger:        logger,
	}
}

// Helper function to get a prefixed environment variable or return a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(EnvPrefix + key); exists {
		return value
	}
	return fallback
}

// Helper function to get a prefixed environment variable as an integer.
func getEnvInt(key string, fallback int) int {
	if valueStr, exists := os.LookupEnv(EnvPrefix + key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

// Helper function to get a prefixed environment variable as a time.Duration.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(EnvPrefix + key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

// Helper function to get a prefixed environment variable as a bool.
func getEnvBool(key string, fallback bool) bool {
	if valueStr, exists := os.LookupEnv(EnvPrefix + key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return fallback
}
