package result

// DocumentEntry pairs a document identifier with either its check result or
// the reason the document could not be read. Exactly one of Result and
// FailureReason is meaningful: a non-empty FailureReason marks a failure.
type DocumentEntry struct {
	ID            string
	Result        DocumentCheckResult
	FailureReason string
}

// Failed reports whether the document could not be processed.
func (e DocumentEntry) Failed() bool { return e.FailureReason != "" }

// Totals sums link counts across processed documents.
type Totals struct {
	Links  int `json:"links"`
	Valid  int `json:"valid"`
	Broken int `json:"broken"`
	Errors int `json:"errors"`
}

// FailedDocument is a document that could not be read or processed.
type FailedDocument struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// AggregateReport merges per-document results for one invocation.
// Processed and Results are parallel slices in input order.
type AggregateReport struct {
	RunID     string                `json:"run_id,omitempty"`
	Processed []string              `json:"processed"`
	Results   []DocumentCheckResult `json:"results"`
	Failed    []FailedDocument      `json:"failed"`
	Totals    Totals                `json:"totals"`
}

// Aggregate builds an AggregateReport from entries, preserving their order.
// Every entry lands in exactly one of Processed or Failed.
func Aggregate(entries []DocumentEntry) AggregateReport {
	report := AggregateReport{
		Processed: make([]string, 0, len(entries)),
		Results:   make([]DocumentCheckResult, 0, len(entries)),
		Failed:    []FailedDocument{},
	}

	for _, entry := range entries {
		if entry.Failed() {
			report.Failed = append(report.Failed, FailedDocument{ID: entry.ID, Reason: entry.FailureReason})
			continue
		}
		report.Processed = append(report.Processed, entry.ID)
		report.Results = append(report.Results, entry.Result)

		report.Totals.Links += entry.Result.Total
		report.Totals.Valid += len(entry.Result.Valid)
		report.Totals.Broken += len(entry.Result.Broken)
		report.Totals.Errors += len(entry.Result.Errors)
	}

	return report
}

// FailureReason returns the recorded reason for a failed document.
func (r AggregateReport) FailureReason(id string) (string, bool) {
	for _, f := range r.Failed {
		if f.ID == id {
			return f.Reason, true
		}
	}
	return "", false
}

// HasFailures reports whether any document failed or any link was not valid.
func (r AggregateReport) HasFailures() bool {
	return len(r.Failed) > 0 || r.Totals.Broken > 0 || r.Totals.Errors > 0
}
