package checker

import (
	"errors"
	"log/slog"
	"time"
)

// ErrInvalidRequest marks a call that violates the caller contract (no
// documents, missing directory, unknown mode). It is distinct from link
// outcomes so that hosts can tell a bad request from an unreachable link.
var ErrInvalidRequest = errors.New("invalid request")

const (
	// DefaultUserAgent identifies probe traffic from this tool.
	DefaultUserAgent = "mdlinkcheck/1.0 (+https://github.com/lukemcguire/mdlinkcheck)"

	DefaultMaxRedirects        = 5
	DefaultRequestTimeout      = 10 * time.Second
	DefaultConcurrency         = 10
	DefaultDocumentConcurrency = 4
)

// NoRedirects as MaxRedirects reports any redirect as "Too many redirects".
const NoRedirects = -1

// Config holds checker configuration.
type Config struct {
	Concurrency         int           // Concurrent probes per document (default 10, negative = unbounded)
	DocumentConcurrency int           // Documents checked concurrently (default 4)
	RequestTimeout      time.Duration // Per-hop request timeout (default 10s)
	MaxRedirects        int           // Redirect hops followed before giving up (default 5, NoRedirects = none)
	UserAgent           string        // User-Agent header sent with every probe
	RateLimit           int           // Initial requests per second; 0 disables rate limiting
	FixedRate           bool          // Keep RateLimit constant instead of adapting to observed RTTs
	RetryPolicy         RetryPolicy   // Retries for transient failures (default none)
	FallbackGET         bool          // Retry 405/501 HEAD responses with GET
	RespectRobots       bool          // Report robots.txt-disallowed URLs instead of probing them
	Logger              *slog.Logger  // Log sink; nil discards
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:         DefaultConcurrency,
		DocumentConcurrency: DefaultDocumentConcurrency,
		RequestTimeout:      DefaultRequestTimeout,
		MaxRedirects:        DefaultMaxRedirects,
		UserAgent:           DefaultUserAgent,
		RetryPolicy:         DefaultRetryPolicy(),
	}
}

// withDefaults fills zero values with defaults.
func (cfg Config) withDefaults() Config {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.DocumentConcurrency == 0 {
		cfg.DocumentConcurrency = DefaultDocumentConcurrency
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	switch {
	case cfg.MaxRedirects == 0:
		cfg.MaxRedirects = DefaultMaxRedirects
	case cfg.MaxRedirects < 0:
		cfg.MaxRedirects = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RetryPolicy.BaseDelay <= 0 {
		cfg.RetryPolicy.BaseDelay = DefaultRetryPolicy().BaseDelay
	}
	if cfg.RetryPolicy.MaxDelay <= 0 {
		cfg.RetryPolicy.MaxDelay = DefaultRetryPolicy().MaxDelay
	}
	cfg.Logger = loggerOrDiscard(cfg.Logger)
	return cfg
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
