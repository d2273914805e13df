package result

import (
	"fmt"
	"io"
)

// PrintDetails writes the valid, broken and errored links of one document.
// Section headers are always written, even for empty sections.
func PrintDetails(w io.Writer, res DocumentCheckResult) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	writef("  %s:\n", countLabel(FormatStatus(StatusValid), len(res.Valid)))
	for _, link := range res.Valid {
		writef("    - %s\n", link)
	}
	writef("  %s:\n", countLabel(FormatStatus(StatusBroken), len(res.Broken)))
	for _, link := range res.Broken {
		writef("    - %s (Reason: %s)\n", link.URL, link.Reason)
	}
	writef("  %s:\n", countLabel(FormatStatus(StatusErrored), len(res.Errors)))
	for _, link := range res.Errors {
		writef("    - %s (Reason: %s)\n", link.URL, link.Reason)
	}
}

// PrintSingle writes the report for a single-document invocation.
func PrintSingle(w io.Writer, id string, report AggregateReport) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	if len(report.Results) == 0 {
		reason, _ := report.FailureReason(id)
		if reason == "" && len(report.Failed) > 0 {
			reason = report.Failed[0].Reason
		}
		writef("Error processing file: %s - Reason: %s\n", id, reason)
		return
	}

	res := report.Results[0]
	writef("Link Check Report for: %s\n", id)
	writef("Total Links Found: %d\n", res.Total)
	PrintDetails(w, res)
}

// PrintConsolidated writes the report for a multi-document invocation.
// Documents without links are listed as processed but get no detail section.
func PrintConsolidated(w io.Writer, source string, report AggregateReport) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	writef("Consolidated Link Check Report\n")
	writef("%s\n", source)
	if len(report.Processed) > 0 {
		writef("%s:\n", countLabel("Files Processed", len(report.Processed)))
		for _, id := range report.Processed {
			writef("  - %s\n", id)
		}
	}
	if len(report.Failed) > 0 {
		writef("%s:\n", countLabel("Files with Errors", len(report.Failed)))
		for _, f := range report.Failed {
			writef("  - %s (Reason: %s)\n", f.ID, f.Reason)
		}
	}

	writef("---\n")
	writef("Overall Summary:\n")
	writef("  Total Links Found: %d\n", report.Totals.Links)
	writef("  Valid Links: %d\n", report.Totals.Valid)
	writef("  Broken Links: %d\n", report.Totals.Broken)
	writef("  Errored Links: %d\n", report.Totals.Errors)
	writef("---\n")
	writef("Details:\n")

	for i, id := range report.Processed {
		res := report.Results[i]
		if res.Total == 0 {
			continue
		}
		writef("\nFile: %s\n", id)
		PrintDetails(w, res)
	}
}
