// Package region splits documents into the text before, inside and after a
// marked region.
package region

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauern/marksync/internal/marker"
)

var (
	// ErrMarkNotFound reports that a mark does not occur in a document.
	// It is informational: callers treat the mark as not applicable.
	ErrMarkNotFound = errors.New("mark not found")

	// ErrUnterminated reports a begin marker without a matching end.
	ErrUnterminated = errors.New("unterminated region")

	// ErrOverlap reports a begin marker inside a region that is still open.
	ErrOverlap = errors.New("overlapping regions")
)

// MalformedError describes a marker that cannot be resolved into a region.
type MalformedError struct {
	Mark string // Key of the offending mark
	Line int    // 1-based line of its begin token
	Err  error  // ErrUnterminated or ErrOverlap
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("mark %q at line %d: %v", e.Mark, e.Line, e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Span is a resolved region: [Begin, End) covers the begin marker, the body
// and the terminator.
type Span struct {
	marker.Occurrence
	Begin int
	End   int
}

// Split is the decomposition of a document around one region.
type Split struct {
	Prefix string
	Region string
	Suffix string
	Span   Span
	Found  bool
}

// Extract splits doc around the region identified by key. When the mark is
// absent every part is empty and Found is false.
func Extract(doc string, r marker.Resolver, key string) (Split, error) {
	occs := r.Find(doc)
	for i, o := range occs {
		if o.Key != key {
			continue
		}
		span, err := resolve(doc, r, occs, i)
		if err != nil {
			return Split{}, err
		}
		return Split{
			Prefix: doc[:span.Begin],
			Region: doc[span.Begin:span.End],
			Suffix: doc[span.End:],
			Span:   span,
			Found:  true,
		}, nil
	}
	return Split{}, nil
}

// Spans resolves every marker occurrence in doc, in document order.
func Spans(doc string, r marker.Resolver) ([]Span, error) {
	occs := r.Find(doc)
	spans := make([]Span, 0, len(occs))
	for i := range occs {
		span, err := resolve(doc, r, occs, i)
		if err != nil {
			return nil, err
		}
		if len(spans) > 0 && span.Begin < spans[len(spans)-1].End {
			return nil, &MalformedError{Mark: span.Key, Line: LineOf(doc, span.Begin), Err: ErrOverlap}
		}
		spans = append(spans, span)
	}
	return spans, nil
}

// Regions resolves every region in doc and indexes its text by key.
func Regions(doc string, r marker.Resolver) (map[string]string, []Span, error) {
	spans, err := Spans(doc, r)
	if err != nil {
		return nil, nil, err
	}
	texts := make(map[string]string, len(spans))
	for _, s := range spans {
		texts[s.Key] = doc[s.Begin:s.End]
	}
	return texts, spans, nil
}

// Lookup returns the span with the given key.
func Lookup(spans []Span, key string) (Span, bool) {
	for _, s := range spans {
		if s.Key == key {
			return s, true
		}
	}
	return Span{}, false
}

// LineOf returns the 1-based line number of offset in doc.
func LineOf(doc string, offset int) int {
	return strings.Count(doc[:offset], "\n") + 1
}

func resolve(doc string, r marker.Resolver, occs []marker.Occurrence, i int) (Span, error) {
	o := occs[i]
	end, ok := r.Terminate(doc, occs, i)
	if !ok {
		return Span{}, &MalformedError{Mark: o.Key, Line: LineOf(doc, o.Pos), Err: ErrUnterminated}
	}
	return Span{Occurrence: o, Begin: o.Pos, End: end}, nil
}
