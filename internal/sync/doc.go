// Package sync runs a sync table: for every rule, in dependency order, it
// compares the destination's marked regions with the source's and either
// reports the drift (check mode) or rewrites the destination.
//
// # Outcomes
//
// Each rule produces one RuleResult with an Outcome:
//   - OutcomeSynced: nothing to do
//   - OutcomeUnsynced: drift found in check mode, nothing written
//   - OutcomeSyncing: drift found and the destination rewritten
//   - OutcomeFailed: the rule could not be evaluated (malformed markers,
//     or its source is the destination of a failed rule)
//
// Outcomes are delivered to a Reporter as each rule finishes:
//
//	o := sync.New(sync.Options{
//	    Root:  ".",
//	    Check: true,
//	    Reporter: sync.ReporterFunc(func(rr sync.RuleResult) {
//	        fmt.Printf("%s: %s\n", rr.Outcome, rr.Rule.Destination)
//	    }),
//	})
//	result, err := o.Run(ctx, tbl)
//
// # Errors
//
// Drift is never an error. Run returns an error only for I/O failures, which
// abort the run; malformed documents fail their rule and the run continues.
package sync
