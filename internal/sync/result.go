package sync

import (
	"fmt"
	"strings"

	"github.com/klauern/marksync/internal/backup"
	"github.com/klauern/marksync/internal/drift"
	"github.com/klauern/marksync/internal/table"
)

// Outcome is the reported result for one destination.
type Outcome string

const (
	// OutcomeSynced means every applicable region already matched its source.
	OutcomeSynced Outcome = "synced"

	// OutcomeUnsynced means drift was found in check mode; nothing was written.
	OutcomeUnsynced Outcome = "unsynced"

	// OutcomeSyncing means drift was found and the destination was rewritten.
	OutcomeSyncing Outcome = "syncing"

	// OutcomeFailed means the rule could not be evaluated.
	OutcomeFailed Outcome = "failed"
)

// State is the position of a destination in the per-run state machine:
// unknown → compared → synced | drifted. Outside check mode drifted moves
// on to rewritten, which means synced on disk.
type State string

const (
	StateUnknown   State = "unknown"
	StateCompared  State = "compared"
	StateSynced    State = "synced"
	StateDrifted   State = "drifted"
	StateRewritten State = "rewritten"
)

// RuleResult is the outcome of processing one rule.
type RuleResult struct {
	// Rule is the rule that was processed.
	Rule table.Rule

	// Outcome is the reported outcome.
	Outcome Outcome

	// State is the final state of the destination for this run.
	State State

	// Report holds the per-mark comparison, nil if comparison failed.
	Report *drift.Report

	// Backup describes the copy taken before rewriting, if any.
	Backup *backup.Metadata

	// Error is set when Outcome is OutcomeFailed.
	Error error
}

// Drifted returns true if the destination differed from its source.
func (rr *RuleResult) Drifted() bool {
	return rr.Outcome == OutcomeUnsynced || rr.Outcome == OutcomeSyncing
}

// Result contains the outcome of a run.
type Result struct {
	// Check indicates a verification-only run.
	Check bool

	// Rules holds one result per processed rule, in execution order.
	Rules []RuleResult
}

// Synced returns rules that needed no change.
func (r *Result) Synced() []RuleResult {
	return r.filterByOutcome(OutcomeSynced)
}

// Unsynced returns rules that drifted in check mode.
func (r *Result) Unsynced() []RuleResult {
	return r.filterByOutcome(OutcomeUnsynced)
}

// Syncing returns rules whose destination was rewritten.
func (r *Result) Syncing() []RuleResult {
	return r.filterByOutcome(OutcomeSyncing)
}

// Failed returns rules that could not be processed.
func (r *Result) Failed() []RuleResult {
	return r.filterByOutcome(OutcomeFailed)
}

// DriftFound returns true if any destination differed from its source
// before this run touched it.
func (r *Result) DriftFound() bool {
	return len(r.Unsynced()) > 0 || len(r.Syncing()) > 0
}

// InSync returns true if every rule ended synced, either untouched or after
// rewriting.
func (r *Result) InSync() bool {
	return len(r.Unsynced()) == 0 && len(r.Failed()) == 0
}

// Success returns true if no rule failed.
func (r *Result) Success() bool {
	return len(r.Failed()) == 0
}

func (r *Result) filterByOutcome(outcome Outcome) []RuleResult {
	var filtered []RuleResult
	for _, rr := range r.Rules {
		if rr.Outcome == outcome {
			filtered = append(filtered, rr)
		}
	}
	return filtered
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	var sb strings.Builder

	if r.Check {
		sb.WriteString("Check only - no files modified\n")
	}

	sb.WriteString(fmt.Sprintf("Processed %d rule(s)\n", len(r.Rules)))
	sb.WriteString(fmt.Sprintf("  Synced:   %d\n", len(r.Synced())))
	if r.Check {
		sb.WriteString(fmt.Sprintf("  Unsynced: %d\n", len(r.Unsynced())))
	} else {
		sb.WriteString(fmt.Sprintf("  Syncing:  %d\n", len(r.Syncing())))
	}
	sb.WriteString(fmt.Sprintf("  Failed:   %d\n", len(r.Failed())))

	if !r.Success() {
		sb.WriteString("\nErrors:\n")
		for _, f := range r.Failed() {
			sb.WriteString(fmt.Sprintf("  - %s: %v\n", f.Rule.Destination, f.Error))
		}
	}

	return sb.String()
}
