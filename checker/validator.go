package checker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lukemcguire/mdlinkcheck/result"
	"github.com/lukemcguire/mdlinkcheck/urlutil"
)

// Limiter paces outgoing probes. AdaptiveLimiter implements it.
type Limiter interface {
	Wait(ctx context.Context) error
	ObserveRTT(rtt time.Duration)
}

// Validator probes single URLs and classifies the outcome.
// It is safe for concurrent use; all probes share one HTTP client.
type Validator struct {
	cfg     Config
	client  *http.Client
	limiter Limiter
	robots  *RobotsChecker
	logger  *slog.Logger
}

// hop is what one HTTP exchange tells us about a URL.
type hop struct {
	statusCode int
	statusLine string
	location   string
	requestURL string
}

// NewValidator creates a Validator. The client must not follow redirects on
// its own; use NewHTTPClient unless a test needs a custom transport.
// limiter and robots may be nil.
func NewValidator(cfg Config, client *http.Client, limiter Limiter, robots *RobotsChecker) *Validator {
	cfg = cfg.withDefaults()
	return &Validator{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		robots:  robots,
		logger:  cfg.Logger,
	}
}

// NewHTTPClient returns a client suitable for probing: it never follows
// redirects itself and relies on per-request contexts for timeouts.
func NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Check determines whether rawURL is reachable.
// It never returns an error: every failure becomes a Broken or Errored outcome.
func (v *Validator) Check(ctx context.Context, rawURL string) result.LinkOutcome {
	outcome := v.checkWithRetry(ctx, rawURL)

	switch outcome.Status {
	case result.StatusValid:
		v.logger.Debug("link ok", "url", rawURL)
	case result.StatusBroken:
		v.logger.Warn("link broken", "url", rawURL, "reason", outcome.Reason)
	default:
		v.logger.Warn("link errored", "url", rawURL, "reason", outcome.Reason)
	}
	return outcome
}

// check follows redirects iteratively. The original URL is hop 0; once the
// hop counter exceeds MaxRedirects the chain is abandoned. Loops are not
// detected as such, they simply exhaust the budget.
func (v *Validator) check(ctx context.Context, rawURL string) (result.LinkOutcome, int) {
	current := rawURL

	for depth := 0; ; depth++ {
		if depth > v.cfg.MaxRedirects {
			return result.Errored(result.ReasonTooManyRedirects), 0
		}

		if v.robots != nil {
			allowed, err := v.robots.Allowed(ctx, current, v.cfg.UserAgent)
			if err != nil {
				v.logger.Debug("robots.txt check failed", "url", current, "error", err)
			}
			if !allowed {
				return result.Errored(result.ReasonRobotsDisallowed), 0
			}
		}

		h, err := v.probe(ctx, current)
		if err != nil {
			return result.Errored(result.FailureReason(err)), 0
		}

		switch {
		case h.statusCode >= 200 && h.statusCode < 300:
			return result.Valid(), h.statusCode

		case h.statusCode >= 300 && h.statusCode < 400:
			if h.location == "" {
				return result.Broken(h.statusLine + " (Redirect without Location)"), h.statusCode
			}
			next, err := urlutil.ResolveReference(h.requestURL, h.location)
			if err != nil {
				v.logger.Warn("invalid redirect location", "url", current, "location", h.location, "error", err)
				return result.Errored(result.UnexpectedReason("InvalidRedirectLocation")), h.statusCode
			}
			v.logger.Debug("redirect", "status", h.statusCode, "from", current, "to", next)
			current = next

		default:
			return result.Broken(h.statusLine), h.statusCode
		}
	}
}

// probe performs one hop: a HEAD request (optionally retried as GET) bounded
// by its own timeout.
func (v *Validator) probe(ctx context.Context, rawURL string) (hop, error) {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return hop{}, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	hopCtx, cancel := context.WithTimeout(ctx, v.cfg.RequestTimeout)
	defer cancel()

	h, err := v.do(hopCtx, http.MethodHead, rawURL)
	if err != nil {
		return hop{}, err
	}

	if v.cfg.FallbackGET && (h.statusCode == http.StatusMethodNotAllowed || h.statusCode == http.StatusNotImplemented) {
		v.logger.Debug("HEAD not supported, retrying with GET", "url", rawURL, "status", h.statusCode)
		return v.do(hopCtx, http.MethodGet, rawURL)
	}
	return h, nil
}

func (v *Validator) do(ctx context.Context, method, rawURL string) (hop, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return hop{}, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", v.cfg.UserAgent)

	start := time.Now()
	resp, err := v.client.Do(req)
	if v.limiter != nil {
		v.limiter.ObserveRTT(time.Since(start))
	}
	if err != nil {
		return hop{}, err
	}
	// Only the status line and headers matter; the body is never read.
	if closeErr := resp.Body.Close(); closeErr != nil {
		v.logger.Debug("close response body", "url", rawURL, "error", closeErr)
	}

	requestURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		requestURL = resp.Request.URL.String()
	}

	return hop{
		statusCode: resp.StatusCode,
		statusLine: statusLine(resp),
		location:   resp.Header.Get("Location"),
		requestURL: requestURL,
	}, nil
}

// statusLine renders "<code> <reason>", preferring the reason phrase the
// server sent and falling back to the standard one.
func statusLine(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	status := strings.TrimSpace(resp.Status)
	if status != "" && status != code {
		return status
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return code + " " + text
	}
	return code
}
