package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// jsonDocument is the per-document shape used in JSON output.
type jsonDocument struct {
	ID string `json:"id"`
	DocumentCheckResult
}

type jsonReport struct {
	RunID     string           `json:"run_id,omitempty"`
	Totals    Totals           `json:"totals"`
	Documents []jsonDocument   `json:"documents"`
	Failed    []FailedDocument `json:"failed"`
}

// WriteJSON writes the aggregate report as indented JSON.
// URLs are not HTML-escaped so query strings stay readable.
func WriteJSON(w io.Writer, report AggregateReport) error {
	out := jsonReport{
		RunID:     report.RunID,
		Totals:    report.Totals,
		Documents: make([]jsonDocument, 0, len(report.Processed)),
		Failed:    report.Failed,
	}
	if out.Failed == nil {
		out.Failed = []FailedDocument{}
	}
	for i, id := range report.Processed {
		out.Documents = append(out.Documents, jsonDocument{ID: id, DocumentCheckResult: report.Results[i]})
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes one row per checked link, followed by one row per failed
// document. Always includes a header row.
// Column order: document, url, status, reason
func WriteCSV(w io.Writer, report AggregateReport) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"document", "url", "status", "reason"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i, id := range report.Processed {
		res := report.Results[i]
		for _, link := range res.Valid {
			if err := cw.Write([]string{id, link, string(StatusValid), ""}); err != nil {
				return fmt.Errorf("write csv record for %s: %w", link, err)
			}
		}
		for _, link := range res.Broken {
			if err := cw.Write([]string{id, link.URL, string(StatusBroken), link.Reason}); err != nil {
				return fmt.Errorf("write csv record for %s: %w", link.URL, err)
			}
		}
		for _, link := range res.Errors {
			if err := cw.Write([]string{id, link.URL, string(StatusErrored), link.Reason}); err != nil {
				return fmt.Errorf("write csv record for %s: %w", link.URL, err)
			}
		}
	}

	for _, f := range report.Failed {
		if err := cw.Write([]string{f.ID, "", "failed", f.Reason}); err != nil {
			return fmt.Errorf("write csv record for %s: %w", f.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// countLabel renders "Label (n)".
func countLabel(label string, n int) string {
	return label + " (" + strconv.Itoa(n) + ")"
}
