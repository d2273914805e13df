package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/mdlinkcheck/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// failureRow is one failed link together with the document it was found in.
type failureRow struct {
	url      string
	reason   string
	document string
}

// RenderSummary produces a Lip Gloss styled summary of an aggregate report:
// one table per failing status, then documents that could not be read.
func RenderSummary(report *result.AggregateReport) string {
	if report == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder
	totals := report.Totals

	if !report.HasFailures() {
		builder.WriteString(successStyle.Render("No broken links found!"))
		builder.WriteString("\n")
		builder.WriteString(dimStyle.Render(fmt.Sprintf(
			"Checked %d links in %d documents",
			totals.Links, len(report.Processed),
		)))
		builder.WriteString("\n")
		return builder.String()
	}

	var broken, errored []failureRow
	for i, res := range report.Results {
		doc := report.Processed[i]
		for _, link := range res.Broken {
			broken = append(broken, failureRow{url: link.URL, reason: link.Reason, document: doc})
		}
		for _, link := range res.Errors {
			errored = append(errored, failureRow{url: link.URL, reason: link.Reason, document: doc})
		}
	}

	writeSection(&builder, result.FormatStatus(result.StatusBroken), broken)
	writeSection(&builder, result.FormatStatus(result.StatusErrored), errored)

	if len(report.Failed) > 0 {
		rows := make([][]string, 0, len(report.Failed))
		for _, doc := range report.Failed {
			rows = append(rows, []string{doc.ID, doc.Reason})
		}
		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## Files with Errors (%d)", len(report.Failed))))
		builder.WriteString("\n")
		builder.WriteString(newTable([]string{"Document", "Reason"}, rows).Render())
		builder.WriteString("\n\n")
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"Found %d broken and %d errored links out of %d links in %d documents",
		totals.Broken, totals.Errors, totals.Links, len(report.Processed),
	)))
	builder.WriteString("\n")

	return builder.String()
}

func writeSection(builder *strings.Builder, title string, failures []failureRow) {
	if len(failures) == 0 {
		return
	}

	builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", title, len(failures))))
	builder.WriteString("\n")

	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.url, f.reason, f.document})
	}
	builder.WriteString(newTable([]string{"URL", "Reason", "Found In"}, rows).Render())
	builder.WriteString("\n\n")
}

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 { // Reason column
				return statusErrorStyle
			}
			return urlStyle
		}).
		Rows(rows...)
}
