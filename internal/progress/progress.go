// Package progress renders a progress bar over the rules of a run and keeps
// the results worth printing once the bar is gone.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/sync"
	"github.com/klauern/marksync/internal/ui"
)

// Options configures the progress bar.
type Options struct {
	// Total is the number of rules in the run.
	Total int
	// Description prefixes the bar until the first rule is reported.
	Description string
	// Writer defaults to os.Stderr.
	Writer io.Writer
	// Force renders the bar even when Writer is not a terminal.
	Force bool
}

// Rules is a sync.Reporter that advances a bar once per rule. Rules that did
// not end synced are kept for Notable.
type Rules struct {
	bar     *progressbar.ProgressBar
	desc    string
	total   int
	done    int
	drifted int
	failed  int
	notable []sync.RuleResult
}

var _ sync.Reporter = (*Rules)(nil)

// New creates a rule progress bar. The bar renders only when colors are
// enabled, the writer is a terminal and debug logging is off, unless Force
// is set. Otherwise it logs start and finish at debug level.
func New(opts Options) *Rules {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	r := &Rules{desc: opts.Description, total: opts.Total}

	if !opts.Force && !shouldShowProgress(opts.Writer) {
		logging.Debug(opts.Description+" started", logging.Count(opts.Total))
		return r
	}

	barOpts := []progressbar.Option{
		progressbar.OptionSetDescription(opts.Description),
		progressbar.OptionSetWriter(opts.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(ui.IsColorEnabled()),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprint(opts.Writer, "\n")
		}),
	}
	if !opts.Force {
		barOpts = append(barOpts,
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	r.bar = progressbar.NewOptions(opts.Total, barOpts...)
	return r
}

// Enabled reports whether the bar renders anything.
func (r *Rules) Enabled() bool {
	return r.bar != nil
}

// Report implements sync.Reporter.
func (r *Rules) Report(rr sync.RuleResult) {
	r.done++
	switch {
	case rr.Outcome == sync.OutcomeFailed:
		r.failed++
	case rr.Drifted():
		r.drifted++
	}
	if rr.Outcome != sync.OutcomeSynced {
		r.notable = append(r.notable, rr)
	}

	if r.bar == nil {
		return
	}
	r.bar.Describe(r.describe(rr.Rule.Destination))
	_ = r.bar.Add(1)
}

func (r *Rules) describe(dest string) string {
	switch {
	case r.failed > 0:
		return fmt.Sprintf("%s (%d drifted, %d failed)", dest, r.drifted, r.failed)
	case r.drifted > 0:
		return fmt.Sprintf("%s (%d drifted)", dest, r.drifted)
	default:
		return dest
	}
}

// Notable returns the reported rules that drifted or failed, in report order.
func (r *Rules) Notable() []sync.RuleResult {
	return r.notable
}

// Finish completes the bar. A run aborted early leaves the bar short of its
// total; Finish still clears it.
func (r *Rules) Finish() error {
	if r.bar == nil {
		logging.Debug(r.desc+" completed",
			logging.Count(r.done),
			slog.Int("drifted", r.drifted),
			slog.Int("failed", r.failed),
		)
		return nil
	}
	return r.bar.Finish()
}

// shouldShowProgress reports whether w can show a bar without garbling
// other output: colors on, w a terminal, and debug logging off.
func shouldShowProgress(w io.Writer) bool {
	if !ui.IsColorEnabled() {
		return false
	}

	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115 - file descriptors fit in int
		return false
	}

	return !logging.Default().Enabled(context.Background(), logging.LevelDebug)
}
