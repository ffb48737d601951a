package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauern/marksync/internal/diff"
	"github.com/klauern/marksync/internal/sync"
)

// Console prints one line per rule as results arrive.
type Console struct {
	w    io.Writer
	diff bool
}

// NewConsole creates a console reporter writing to w. When showDiff is set,
// drifted marks are followed by their line hunks.
func NewConsole(w io.Writer, showDiff bool) *Console {
	return &Console{w: w, diff: showDiff}
}

// Report implements sync.Reporter.
func (c *Console) Report(rr sync.RuleResult) {
	line := OutcomeLabel(rr.Outcome) + " " + rr.Rule.Destination
	if rr.Outcome == sync.OutcomeFailed && rr.Error != nil {
		line += " " + Dim("("+rr.Error.Error()+")")
	}
	_, _ = fmt.Fprintln(c.w, line)

	if !c.diff || rr.Report == nil {
		return
	}
	for _, key := range rr.Report.Drifted() {
		status, ok := rr.Report.Get(key)
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(c.w, "  %s %s\n", Bold(key), Dim("from "+rr.Rule.Source))
		for _, h := range status.Hunks {
			c.hunk(h)
		}
	}
	// Marks present on one side only are not drift, but --diff shows them.
	for _, key := range rr.Report.Skipped() {
		status, _ := rr.Report.Get(key)
		_, _ = fmt.Fprintln(c.w, "  "+StatusSkipped(key+" "+Dim(string(status.State))))
	}
}

func (c *Console) hunk(h diff.Hunk) {
	_, _ = fmt.Fprintln(c.w, "  "+Info(h.Header()))
	for _, l := range h.Lines {
		text := l.String()
		switch l.Type {
		case diff.LineRemoved:
			text = Error(text)
		case diff.LineAdded:
			text = Success(text)
		default:
			text = Dim(text)
		}
		_, _ = fmt.Fprintln(c.w, "  "+text)
	}
}

// Summary prints the run totals.
func (c *Console) Summary(result *sync.Result) {
	parts := []string{
		fmt.Sprintf("%d synced", len(result.Synced())),
	}
	if result.Check {
		parts = append(parts, fmt.Sprintf("%d unsynced", len(result.Unsynced())))
	} else {
		parts = append(parts, fmt.Sprintf("%d rewritten", len(result.Syncing())))
	}
	parts = append(parts, fmt.Sprintf("%d failed", len(result.Failed())))

	msg := strings.Join(parts, ", ")
	switch {
	case !result.Success():
		_, _ = fmt.Fprintln(c.w, StatusError(msg))
	case result.DriftFound():
		_, _ = fmt.Fprintln(c.w, StatusWarning(msg))
	default:
		_, _ = fmt.Fprintln(c.w, StatusSuccess(msg))
	}
}
