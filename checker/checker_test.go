package checker_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukemcguire/mdlinkcheck/checker"
	"github.com/lukemcguire/mdlinkcheck/result"
)

// newTestServer serves one URL per outcome class:
//
//	/ok       -> 200
//	/missing  -> 404
//	/slow     -> blocks until the client gives up
//	/moved    -> 302 to /ok
func newTestServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/ok", http.StatusFound)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		close(release)
		server.Close()
	})
	return server
}

func testConfig() checker.Config {
	cfg := checker.DefaultConfig()
	cfg.RequestTimeout = 200 * time.Millisecond
	return cfg
}

// TestCheckDocument_MixedOutcomes verifies that one valid, one broken and one
// timed-out link each land in the right collection.
func TestCheckDocument_MixedOutcomes(t *testing.T) {
	var hits atomic.Int32
	ts := newTestServer(t, &hits)

	doc := fmt.Sprintf("Good: %s/ok. Bad: [missing](%s/missing). Slow: <%s/slow>",
		ts.URL, ts.URL, ts.URL)

	c := checker.New(testConfig(), nil)
	defer c.Close()

	res := c.CheckDocument(context.Background(), doc)

	if res.Total != 3 {
		t.Fatalf("Total = %d, want 3", res.Total)
	}
	if !slices.Equal(res.Valid, []string{ts.URL + "/ok"}) {
		t.Errorf("Valid = %v", res.Valid)
	}
	wantBroken := []result.FailedLink{{URL: ts.URL + "/missing", Reason: "404 Not Found"}}
	if !slices.Equal(res.Broken, wantBroken) {
		t.Errorf("Broken = %v, want %v", res.Broken, wantBroken)
	}
	wantErrors := []result.FailedLink{{URL: ts.URL + "/slow", Reason: "Timeout"}}
	if !slices.Equal(res.Errors, wantErrors) {
		t.Errorf("Errors = %v, want %v", res.Errors, wantErrors)
	}
	if !res.Consistent() {
		t.Error("result violates total == valid + broken + errors")
	}
}

// TestCheckDocument_NoLinks verifies that a document without links produces
// an empty result and no network traffic.
func TestCheckDocument_NoLinks(t *testing.T) {
	var hits atomic.Int32
	newTestServer(t, &hits)

	c := checker.New(testConfig(), nil)
	defer c.Close()

	res := c.CheckDocument(context.Background(), "# Notes\n\nNothing to see, just [a relative link](./other.md).")

	if res.Total != 0 || len(res.Valid) != 0 || len(res.Broken) != 0 || len(res.Errors) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if res.Valid == nil || res.Broken == nil || res.Errors == nil {
		t.Error("expected non-nil empty collections")
	}
	if hits.Load() != 0 {
		t.Errorf("expected no requests, got %d", hits.Load())
	}
}

// TestCheckDocument_ReportOrder verifies that results are lexicographic
// regardless of which probe finishes first.
func TestCheckDocument_ReportOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/{name}", func(w http.ResponseWriter, r *http.Request) {
		// Earlier names answer later.
		delay := map[string]time.Duration{"a": 60 * time.Millisecond, "b": 30 * time.Millisecond}
		time.Sleep(delay[r.PathValue("name")])
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	doc := fmt.Sprintf("%s/c %s/a %s/b", ts.URL, ts.URL, ts.URL)

	c := checker.New(testConfig(), nil)
	defer c.Close()
	res := c.CheckDocument(context.Background(), doc)

	want := []string{ts.URL + "/a", ts.URL + "/b", ts.URL + "/c"}
	if !slices.Equal(res.Valid, want) {
		t.Errorf("Valid = %v, want %v", res.Valid, want)
	}
}

// TestCheckDocument_ConcurrentProbes verifies that probes within a document
// run in parallel rather than one after another.
func TestCheckDocument_ConcurrentProbes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/{name}", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	var doc string
	for i := range 8 {
		doc += fmt.Sprintf("%s/page%d\n", ts.URL, i)
	}

	cfg := testConfig()
	cfg.RequestTimeout = 2 * time.Second
	c := checker.New(cfg, nil)
	defer c.Close()

	start := time.Now()
	res := c.CheckDocument(context.Background(), doc)
	elapsed := time.Since(start)

	if len(res.Valid) != 8 {
		t.Fatalf("expected 8 valid links, got %+v", res)
	}
	if elapsed > 600*time.Millisecond {
		t.Errorf("8 probes of 100ms took %v; expected concurrent execution", elapsed)
	}
}

// TestCheckDocuments_DeduplicatesProbes verifies that a URL shared by several
// documents is probed once per invocation.
func TestCheckDocuments_DeduplicatesProbes(t *testing.T) {
	var hits atomic.Int32
	ts := newTestServer(t, &hits)

	shared := fmt.Sprintf("See %s/ok for details.", ts.URL)
	docs := []checker.Document{
		{ID: "a.md", Text: shared},
		{ID: "b.md", Text: shared},
		{ID: "c.md", Text: shared},
	}

	c := checker.New(testConfig(), nil)
	defer c.Close()

	report, err := c.CheckDocuments(context.Background(), docs)
	if err != nil {
		t.Fatalf("CheckDocuments() error: %v", err)
	}
	if report.Totals.Links != 3 || report.Totals.Valid != 3 {
		t.Errorf("Totals = %+v, want 3 links all valid", report.Totals)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 probe for a shared URL, got %d", hits.Load())
	}
}

// TestCheckDocuments_Aggregate verifies input order, failure propagation and
// summed totals.
func TestCheckDocuments_Aggregate(t *testing.T) {
	var hits atomic.Int32
	ts := newTestServer(t, &hits)

	docs := []checker.Document{
		{ID: "docs/one.md", Text: fmt.Sprintf("%s/ok and %s/missing", ts.URL, ts.URL)},
		{ID: "docs/missing.md", FailureReason: "File not found"},
		{ID: "docs/empty.md", Text: "no links"},
		{ID: "docs/two.md", Text: fmt.Sprintf("[moved](%s/moved)", ts.URL)},
	}

	c := checker.New(testConfig(), nil)
	defer c.Close()

	report, err := c.CheckDocuments(context.Background(), docs)
	if err != nil {
		t.Fatalf("CheckDocuments() error: %v", err)
	}

	wantProcessed := []string{"docs/one.md", "docs/empty.md", "docs/two.md"}
	if !slices.Equal(report.Processed, wantProcessed) {
		t.Errorf("Processed = %v, want %v", report.Processed, wantProcessed)
	}
	if len(report.Results) != len(report.Processed) {
		t.Errorf("Results has %d entries, Processed has %d", len(report.Results), len(report.Processed))
	}
	if reason, ok := report.FailureReason("docs/missing.md"); !ok || reason != "File not found" {
		t.Errorf("FailureReason(docs/missing.md) = %q, %v", reason, ok)
	}
	want := result.Totals{Links: 3, Valid: 2, Broken: 1, Errors: 0}
	if report.Totals != want {
		t.Errorf("Totals = %+v, want %+v", report.Totals, want)
	}
	if report.RunID == "" || report.RunID != c.RunID() {
		t.Errorf("RunID = %q, want checker run ID %q", report.RunID, c.RunID())
	}
	if !report.HasFailures() {
		t.Error("expected HasFailures() for a broken link and a failed document")
	}
}

func TestCheckDocuments_NoDocuments(t *testing.T) {
	c := checker.New(testConfig(), nil)
	defer c.Close()

	_, err := c.CheckDocuments(context.Background(), nil)
	if !errors.Is(err, checker.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

// TestProgressEvents verifies that one event is sent per checked link with
// running counters.
func TestProgressEvents(t *testing.T) {
	var hits atomic.Int32
	ts := newTestServer(t, &hits)

	events := make(chan checker.CheckEvent, 10)
	c := checker.New(testConfig(), events)
	defer c.Close()

	report, err := c.CheckDocuments(context.Background(), []checker.Document{
		{ID: "readme.md", Text: fmt.Sprintf("%s/ok %s/missing", ts.URL, ts.URL)},
	})
	if err != nil {
		t.Fatalf("CheckDocuments() error: %v", err)
	}
	close(events)

	var got []checker.CheckEvent
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	// Events may arrive out of order; the counters only ever grow.
	var maxChecked, maxFailed int
	for _, ev := range got {
		maxChecked = max(maxChecked, ev.Checked)
		maxFailed = max(maxFailed, ev.Failed)
	}
	if maxChecked != 2 || maxFailed != 1 {
		t.Errorf("final counters = checked %d, failed %d; want 2, 1", maxChecked, maxFailed)
	}
	for _, ev := range got {
		if ev.Document != "readme.md" {
			t.Errorf("event document = %q, want readme.md", ev.Document)
		}
	}
	if report.Totals.Links != 2 {
		t.Errorf("Totals.Links = %d, want 2", report.Totals.Links)
	}
}
