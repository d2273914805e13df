// Package checker extracts HTTP(S) links from Markdown documents and checks
// that they are reachable. Link probes within a document run concurrently, as
// do documents within one invocation.
package checker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lukemcguire/mdlinkcheck/result"
)

// Document is one unit of input: its text, or the reason it could not be
// obtained. A non-empty FailureReason marks a document-level failure.
type Document struct {
	ID            string
	Text          string
	FailureReason string
}

// Checker coordinates extraction and concurrent validation for one
// invocation. Create a new Checker per invocation and Close it afterwards.
type Checker struct {
	cfg        Config
	runID      string
	client     *http.Client
	limiter    *AdaptiveLimiter
	extractor  *Extractor
	validator  *Validator
	inflight   singleflight.Group
	memo       sync.Map // url -> result.LinkOutcome
	progressCh chan<- CheckEvent

	checked atomic.Int64
	failed  atomic.Int64
}

// New creates a Checker with the given configuration.
// The progressCh parameter is optional; pass nil to disable progress events.
func New(cfg Config, progressCh chan<- CheckEvent) *Checker {
	cfg = cfg.withDefaults()
	runID := uuid.NewString()
	cfg.Logger = cfg.Logger.With("run_id", runID)

	client := NewHTTPClient()

	var limiter *AdaptiveLimiter
	switch {
	case cfg.RateLimit > 0 && cfg.FixedRate:
		limiter = NewFixedLimiter(cfg.RateLimit)
	case cfg.RateLimit > 0:
		limiter = NewAdaptiveLimiter(cfg.RateLimit, DefaultTargetRTT)
	}

	var robots *RobotsChecker
	if cfg.RespectRobots {
		// Separate client for robots.txt: it follows redirects and has a shorter timeout.
		robots = NewRobotsChecker(&http.Client{Timeout: 5 * time.Second})
	}

	c := &Checker{
		cfg:        cfg,
		runID:      runID,
		client:     client,
		limiter:    limiter,
		extractor:  NewExtractor(cfg.Logger),
		progressCh: progressCh,
	}
	// A nil *AdaptiveLimiter must not become a non-nil Limiter interface.
	if limiter != nil {
		c.validator = NewValidator(cfg, client, limiter, robots)
	} else {
		c.validator = NewValidator(cfg, client, nil, robots)
	}
	return c
}

// RunID identifies this invocation in logs and reports.
func (c *Checker) RunID() string { return c.runID }

// Extract returns the sorted, deduplicated HTTP(S) links in text.
func (c *Checker) Extract(text string) []string {
	return c.extractor.Extract(text)
}

// CheckLink validates one URL. Within this invocation each URL is probed at
// most once: concurrent checks share a single probe and later checks reuse
// its outcome.
func (c *Checker) CheckLink(ctx context.Context, rawURL string) result.LinkOutcome {
	if v, ok := c.memo.Load(rawURL); ok {
		return v.(result.LinkOutcome)
	}
	v, _, _ := c.inflight.Do(rawURL, func() (any, error) {
		if v, ok := c.memo.Load(rawURL); ok {
			return v, nil
		}
		outcome := c.guardedCheck(ctx, rawURL)
		c.memo.Store(rawURL, outcome)
		return outcome, nil
	})
	return v.(result.LinkOutcome)
}

// CheckDocument extracts the links in text and validates them concurrently.
// It never fails as a whole; individual link failures are recorded in the
// result. Documents without links cause no network activity.
func (c *Checker) CheckDocument(ctx context.Context, text string) result.DocumentCheckResult {
	return c.checkDocument(ctx, "", text)
}

func (c *Checker) checkDocument(ctx context.Context, docID, text string) result.DocumentCheckResult {
	res := result.NewDocumentCheckResult()

	links := c.extractor.Extract(text)
	if len(links) == 0 {
		c.cfg.Logger.Info("no links found to check", "document", docID)
		return res
	}
	res.Total = len(links)

	// Each task writes only its own slot, so the report keeps the sorted
	// link order whatever order the probes finish in.
	outcomes := make([]result.LinkOutcome, len(links))

	var group errgroup.Group
	group.SetLimit(c.cfg.Concurrency)
	for i, link := range links {
		group.Go(func() error {
			outcomes[i] = c.CheckLink(ctx, link)
			c.emit(ctx, docID, link, outcomes[i])
			return nil
		})
	}
	// Tasks never return errors; Wait only joins them.
	_ = group.Wait()

	for i, link := range links {
		res.Add(link, outcomes[i])
	}

	c.cfg.Logger.Info("link check complete",
		"document", docID,
		"total", res.Total,
		"valid", len(res.Valid),
		"broken", len(res.Broken),
		"errors", len(res.Errors),
	)
	return res
}

// guardedCheck converts a panic escaping the validator into an Errored outcome.
func (c *Checker) guardedCheck(ctx context.Context, link string) (outcome result.LinkOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = result.Errored(result.TaskExceptionReason(r))
			c.cfg.Logger.Error("link check task failed", "url", link, "panic", r)
		}
	}()
	return c.validator.Check(ctx, link)
}

func (c *Checker) emit(ctx context.Context, docID, link string, outcome result.LinkOutcome) {
	checked := c.checked.Add(1)
	failed := c.failed.Load()
	if outcome.Status != result.StatusValid {
		failed = c.failed.Add(1)
	}
	if c.progressCh == nil {
		return
	}
	event := CheckEvent{
		Document: docID,
		URL:      link,
		Status:   outcome.Status,
		Reason:   outcome.Reason,
		Checked:  int(checked),
		Failed:   int(failed),
	}
	// A consumer that went away must not stall the batch.
	select {
	case c.progressCh <- event:
	case <-ctx.Done():
	}
}

// CheckDocuments checks every readable document concurrently and aggregates
// the results in input order. Documents carrying a FailureReason are reported
// as failed without being checked. An empty input is an invalid request.
func (c *Checker) CheckDocuments(ctx context.Context, docs []Document) (result.AggregateReport, error) {
	if len(docs) == 0 {
		return result.AggregateReport{}, fmt.Errorf("check documents: no documents supplied: %w", ErrInvalidRequest)
	}

	entries := make([]result.DocumentEntry, len(docs))

	var group errgroup.Group
	group.SetLimit(c.cfg.DocumentConcurrency)
	for i, doc := range docs {
		if doc.FailureReason != "" {
			c.cfg.Logger.Error("document could not be read", "document", doc.ID, "reason", doc.FailureReason)
			entries[i] = result.DocumentEntry{ID: doc.ID, FailureReason: doc.FailureReason}
			continue
		}
		group.Go(func() error {
			c.cfg.Logger.Info("checking links in document", "document", doc.ID, "bytes", len(doc.Text))
			entries[i] = result.DocumentEntry{ID: doc.ID, Result: c.checkDocument(ctx, doc.ID, doc.Text)}
			return nil
		})
	}
	_ = group.Wait()

	report := result.Aggregate(entries)
	report.RunID = c.runID
	return report, nil
}

// Close releases pooled connections held by the shared HTTP client.
func (c *Checker) Close() {
	if c.limiter != nil {
		c.cfg.Logger.Debug("final probe rate", "rps", c.limiter.CurrentRate(), "avg_rtt", c.limiter.AverageRTT())
	}
	c.client.CloseIdleConnections()
}
