// Package tui provides the Bubble Tea terminal UI for mdlinkcheck,
// displaying live link-check progress and a styled summary of results.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/mdlinkcheck/checker"
	"github.com/lukemcguire/mdlinkcheck/result"
)

// Model is the Bubble Tea model for the link-check TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	checker    *checker.Checker
	docs       []checker.Document
	spinner    spinner.Model
	progressCh chan checker.CheckEvent

	checked  int
	failed   int
	current  string
	document string
	quitting bool
	done     bool
	report   *result.AggregateReport
	err      error
	width    int
}

// NewModel creates a TUI model that checks docs with c. progressCh must be
// the channel c was created with; the model closes it once the run ends.
func NewModel(ctx context.Context, cancel context.CancelFunc, c *checker.Checker, docs []checker.Document, progressCh chan checker.CheckEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		checker:    c,
		docs:       docs,
		spinner:    spin,
		progressCh: progressCh,
	}
}

// Init starts the spinner, the check run and the progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCheck(), waitForProgress(m.progressCh))
}

// startCheck returns a tea.Cmd that runs the checker and sends CheckDoneMsg.
func (m Model) startCheck() tea.Cmd {
	return func() tea.Msg {
		report, err := m.checker.CheckDocuments(m.ctx, m.docs)
		close(m.progressCh)
		if err != nil {
			return CheckDoneMsg{Err: fmt.Errorf("check documents: %w", err)}
		}
		return CheckDoneMsg{Report: &report}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case CheckProgressMsg:
		m.checked = msg.Checked
		m.failed = msg.Failed
		m.current = msg.URL
		m.document = msg.Document
		return m, waitForProgress(m.progressCh)

	case CheckDoneMsg:
		m.done = true
		m.report = msg.Report
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.report != nil {
		return RenderSummary(m.report)
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	return fmt.Sprintf("%s Checking links... checked %d, failed %d\n%s\n",
		m.spinner.View(), m.checked, m.failed,
		dimStyle.Render("  "+m.document+"  "+m.current))
}

// Done reports whether the run finished (successfully or with an error)
// rather than being interrupted.
func (m Model) Done() bool { return m.done }

// Err returns the error the run ended with, if any.
func (m Model) Err() error { return m.err }

// HasFailures reports whether any link failed or any document could not be read.
func (m Model) HasFailures() bool {
	return m.report != nil && m.report.HasFailures()
}

// Report returns the aggregate report for output formatting.
func (m Model) Report() *result.AggregateReport {
	return m.report
}
