package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauern/marksync/internal/backup"
	"github.com/klauern/marksync/internal/drift"
	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/marker"
	"github.com/klauern/marksync/internal/table"
)

// ErrUpstreamFailed marks rules skipped because their source is the
// destination of a rule that failed earlier in the run. The error names the
// chain of sources above the skipped rule.
var ErrUpstreamFailed = errors.New("upstream rule failed")

// Reporter receives one result per processed rule.
type Reporter interface {
	Report(RuleResult)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(RuleResult)

// Report implements Reporter.
func (f ReporterFunc) Report(rr RuleResult) {
	f(rr)
}

// Options configures a run.
type Options struct {
	// Root resolves relative paths in the table. Defaults to the working directory.
	Root string

	// Check reports drift without writing any file.
	Check bool

	// Diff computes line hunks for drifted marks.
	Diff bool

	// Syntax is the marker spelling. Zero value means marker.DefaultSyntax().
	Syntax marker.Syntax

	// Backups, when set, receives a copy of each destination before it is rewritten.
	Backups *backup.Store

	// Reporter receives each rule's result as soon as it is known.
	Reporter Reporter
}

// Orchestrator runs sync tables.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Syntax == (marker.Syntax{}) {
		opts.Syntax = marker.DefaultSyntax()
	}
	return &Orchestrator{opts: opts}
}

// Run processes every rule of t in order. It returns an error, together with
// the results gathered so far, when a file cannot be read or written or ctx
// is cancelled.
func (o *Orchestrator) Run(ctx context.Context, t *table.Table) (*Result, error) {
	defer logging.Timer("sync")()

	result := &Result{
		Check: o.opts.Check,
		Rules: make([]RuleResult, 0, t.Len()),
	}

	log := logging.FromContext(ctx)
	log.Debug("starting sync run",
		logging.Count(t.Len()),
		slog.Bool("check", o.opts.Check),
		slog.String("root", o.opts.Root),
	)

	failed := make(map[string]bool)

	for _, rule := range t.Rules() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var rr RuleResult
		if failed[t.Key(rule.Source)] {
			rr = RuleResult{
				Rule:    rule,
				Outcome: OutcomeFailed,
				State:   StateUnknown,
				Error:   fmt.Errorf("%w: %s", ErrUpstreamFailed, strings.Join(t.Upstream(rule.Destination), " <- ")),
			}
		} else {
			var err error
			rr, err = o.processRule(log.With(logging.Rule(rule.Destination, rule.Source)), rule)
			if err != nil {
				log.Error("sync run aborted",
					logging.Path(rule.Destination),
					logging.Err(err),
				)
				return result, err
			}
		}

		if rr.Outcome == OutcomeFailed {
			failed[t.Key(rule.Destination)] = true
			log.Warn("rule failed",
				logging.Path(rule.Destination),
				logging.Source(rule.Source),
				logging.Err(rr.Error),
			)
		}

		result.Rules = append(result.Rules, rr)
		if o.opts.Reporter != nil {
			o.opts.Reporter.Report(rr)
		}
	}

	log.Debug("sync run completed",
		logging.Count(len(result.Rules)),
		slog.Bool("drift_found", result.DriftFound()),
		slog.Int("failed", len(result.Failed())),
	)

	return result, nil
}

// processRule compares one destination with its source and rewrites it when
// needed. Malformed documents are reported in the RuleResult; the returned
// error is reserved for I/O failures.
func (o *Orchestrator) processRule(log *slog.Logger, rule table.Rule) (RuleResult, error) {
	rr := RuleResult{Rule: rule, State: StateUnknown}

	log.Debug("processing rule", logging.Family(string(rule.Family)))

	res, err := rule.Resolver(o.opts.Syntax)
	if err != nil {
		rr.Outcome = OutcomeFailed
		rr.Error = err
		return rr, nil
	}

	destPath := o.path(rule.Destination)
	srcPath := o.path(rule.Source)

	dest, destMode, err := readDocument(destPath)
	if err != nil {
		return rr, err
	}
	src, _, err := readDocument(srcPath)
	if err != nil {
		return rr, err
	}

	report, err := drift.Compare(dest, src, res, drift.Options{Hunks: o.opts.Diff})
	if err != nil {
		rr.Outcome = OutcomeFailed
		rr.Error = fmt.Errorf("%s <- %s: %w", rule.Destination, rule.Source, err)
		return rr, nil
	}
	rr.Report = report
	rr.State = StateCompared

	for _, name := range report.Unmatched() {
		log.Warn("declared mark not found in either file", logging.Mark(name))
	}

	if report.InSync() {
		rr.Outcome = OutcomeSynced
		rr.State = StateSynced
		return rr, nil
	}

	rr.State = StateDrifted
	if o.opts.Check {
		rr.Outcome = OutcomeUnsynced
		return rr, nil
	}

	rewritten, err := drift.Rewrite(dest, src, res, report.Drifted())
	if err != nil {
		rr.Outcome = OutcomeFailed
		rr.Error = fmt.Errorf("%s <- %s: %w", rule.Destination, rule.Source, err)
		return rr, nil
	}

	if o.opts.Backups != nil {
		meta, err := o.opts.Backups.Create(destPath, rule.String())
		if err != nil {
			return rr, fmt.Errorf("backup %s: %w", rule.Destination, err)
		}
		rr.Backup = meta
	}

	if err := os.WriteFile(destPath, []byte(rewritten), destMode); err != nil {
		return rr, fmt.Errorf("write %s: %w", rule.Destination, err)
	}

	log.Debug("rewrote destination", logging.Count(len(report.Drifted())))

	rr.Outcome = OutcomeSyncing
	rr.State = StateRewritten
	return rr, nil
}

func (o *Orchestrator) path(p string) string {
	if filepath.IsAbs(p) || o.opts.Root == "" {
		return p
	}
	return filepath.Join(o.opts.Root, p)
}

func readDocument(path string) (string, os.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", path, err)
	}
	if info.IsDir() {
		return "", 0, fmt.Errorf("read %s: is a directory", path)
	}
	// #nosec G304 - path comes from the sync table
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), info.Mode().Perm(), nil
}
