package checker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// maxRobotsBytes bounds how much of a robots.txt file is read.
const maxRobotsBytes = 512 << 10

// robotsEntry is the robots.txt state of one host. data == nil means allow-all.
type robotsEntry struct {
	once sync.Once
	data *robotstxt.RobotsData
	err  error
}

// RobotsChecker fetches robots.txt once per host for the lifetime of one
// invocation. Concurrent probes of the same host share a single fetch.
// Fetch and parse failures fail open.
type RobotsChecker struct {
	client *http.Client

	mu    sync.Mutex
	hosts map[string]*robotsEntry
}

// NewRobotsChecker creates a RobotsChecker with the given HTTP client.
func NewRobotsChecker(client *http.Client) *RobotsChecker {
	return &RobotsChecker{
		client: client,
		hosts:  make(map[string]*robotsEntry),
	}
}

// Allowed reports whether userAgent may fetch rawURL. The returned error is
// informational: on any error the URL is allowed.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL, userAgent string) (bool, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return true, fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Host == "" {
		return true, nil
	}

	key := parsedURL.Scheme + "://" + parsedURL.Host
	entry := r.entry(key)
	entry.once.Do(func() {
		entry.data, entry.err = r.fetch(ctx, key)
	})

	if entry.data == nil {
		return true, entry.err
	}
	path := parsedURL.EscapedPath()
	if path == "" {
		path = "/"
	}
	return entry.data.TestAgent(path, userAgent), nil
}

func (r *RobotsChecker) entry(key string) *robotsEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.hosts[key]
	if !ok {
		entry = &robotsEntry{}
		r.hosts[key] = entry
	}
	return entry
}

// fetch downloads and parses robots.txt for origin. A nil result with a nil
// error means the host has no usable rules (404, 5xx, empty).
func (r *RobotsChecker) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create robots.txt request for %s: %w", origin, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt for %s: %w", origin, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt body for %s: %w", origin, err)
	}

	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt for %s: %w", origin, err)
	}
	return robots, nil
}
