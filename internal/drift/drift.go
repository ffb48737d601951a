// Package drift compares the marked regions of a destination document with
// those of its canonical source and rewrites drifted regions.
package drift

import (
	"fmt"
	"log/slog"

	"github.com/klauern/marksync/internal/diff"
	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/marker"
	"github.com/klauern/marksync/internal/region"
)

// State is the comparison outcome for one mark.
type State string

const (
	// StateMatch means the destination region equals the source region.
	StateMatch State = "match"

	// StateDrift means the destination region differs from the source region.
	StateDrift State = "drift"

	// StateMissingDest means the mark is absent from the destination.
	StateMissingDest State = "missing-dest"

	// StateMissingSource means the mark is absent from the source.
	StateMissingSource State = "missing-source"
)

// Evaluated returns true for states that take part in the sync decision.
func (s State) Evaluated() bool {
	return s == StateMatch || s == StateDrift
}

// MarkStatus is the comparison result for one mark.
type MarkStatus struct {
	Key   string
	State State

	// Source and Dest hold the region texts when present.
	Source string
	Dest   string

	// Hunks holds the line diff from source to destination for drifted
	// marks when Options.Hunks is set.
	Hunks []diff.Hunk
}

// Report is the comparison result for one destination document.
type Report struct {
	Family marker.Family
	Marks  []MarkStatus

	// declared holds the names the rule declared, if any.
	declared []string
}

// InSync returns true when no evaluated mark drifted.
func (r *Report) InSync() bool {
	for _, m := range r.Marks {
		if m.State == StateDrift {
			return false
		}
	}
	return true
}

// Drifted returns the keys of drifted marks.
func (r *Report) Drifted() []string {
	return r.keysWith(StateDrift)
}

// Skipped returns the keys of marks missing from either document.
func (r *Report) Skipped() []string {
	var out []string
	for _, m := range r.Marks {
		if !m.State.Evaluated() {
			out = append(out, m.Key)
		}
	}
	return out
}

// Evaluated returns the number of marks present in both documents.
func (r *Report) Evaluated() int {
	n := 0
	for _, m := range r.Marks {
		if m.State.Evaluated() {
			n++
		}
	}
	return n
}

// Unmatched returns declared mark names found in neither document, which
// usually points at a misspelled mark in the rule.
func (r *Report) Unmatched() []string {
	present := make(map[string]bool, len(r.Marks))
	for _, m := range r.Marks {
		present[marker.NameOf(m.Key)] = true
	}
	var out []string
	for _, name := range r.declared {
		if !present[name] {
			out = append(out, name)
		}
	}
	return out
}

// Get returns the status of a mark.
func (r *Report) Get(key string) (MarkStatus, bool) {
	for _, m := range r.Marks {
		if m.Key == key {
			return m, true
		}
	}
	return MarkStatus{}, false
}

func (r *Report) keysWith(state State) []string {
	var out []string
	for _, m := range r.Marks {
		if m.State == state {
			out = append(out, m.Key)
		}
	}
	return out
}

// Options configures a comparison.
type Options struct {
	// Hunks computes line diffs for drifted marks.
	Hunks bool
}

// Compare extracts every applicable region from dest and src and compares
// them byte for byte. Marks present in only one document are reported but
// never count as drift.
func Compare(dest, src string, r marker.Resolver, opts Options) (*Report, error) {
	srcTexts, srcSpans, err := region.Regions(src, r)
	if err != nil {
		return nil, fmt.Errorf("source document: %w", err)
	}
	destTexts, destSpans, err := region.Regions(dest, r)
	if err != nil {
		return nil, fmt.Errorf("destination document: %w", err)
	}

	report := &Report{Family: r.Family(), declared: r.Marks()}

	for _, key := range evaluationOrder(r.Marks(), srcSpans, destSpans) {
		status := MarkStatus{Key: key}
		srcText, inSrc := srcTexts[key]
		destText, inDest := destTexts[key]
		status.Source, status.Dest = srcText, destText

		switch {
		case !inSrc && !inDest:
			continue
		case !inSrc:
			status.State = StateMissingSource
		case !inDest:
			status.State = StateMissingDest
		case srcText == destText:
			status.State = StateMatch
		default:
			status.State = StateDrift
			if opts.Hunks {
				status.Hunks = diff.Strings(srcText, destText)
			}
		}

		logging.Debug("compared mark",
			logging.Mark(key),
			slog.String("state", string(status.State)),
		)
		report.Marks = append(report.Marks, status)
	}

	return report, nil
}

// evaluationOrder lists the keys to compare: source keys first in document
// order, then destination-only keys. When names are declared only keys of
// those names are kept.
func evaluationOrder(declared []string, srcSpans, destSpans []region.Span) []string {
	allowed := make(map[string]bool, len(declared))
	for _, name := range declared {
		allowed[name] = true
	}

	seen := make(map[string]bool)
	var keys []string
	add := func(spans []region.Span) {
		for _, s := range spans {
			if seen[s.Key] {
				continue
			}
			if len(declared) > 0 && !allowed[s.Name] {
				continue
			}
			seen[s.Key] = true
			keys = append(keys, s.Key)
		}
	}
	add(srcSpans)
	add(destSpans)
	return keys
}
