package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/mdlinkcheck/checker"
	"github.com/lukemcguire/mdlinkcheck/result"
)

// CheckProgressMsg reports progress for a single checked link.
type CheckProgressMsg struct {
	Checked  int
	Failed   int
	URL      string
	Document string
}

// CheckDoneMsg signals the run has completed.
type CheckDoneMsg struct {
	Report *result.AggregateReport
	Err    error
}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel. A closed channel yields no message; completion is reported by
// startCheck.
func waitForProgress(ch <-chan checker.CheckEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return CheckProgressMsg{
			Checked:  evt.Checked,
			Failed:   evt.Failed,
			URL:      evt.URL,
			Document: evt.Document,
		}
	}
}
