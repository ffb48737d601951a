package drift

import (
	"fmt"
	"strings"

	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/marker"
	"github.com/klauern/marksync/internal/region"
)

// Rewrite returns dest with the region of every drifted key replaced by the
// matching region of src. Split positions are computed once on the original
// destination and the result is composed in a single pass, so text outside
// the drifted regions is copied unchanged.
func Rewrite(dest, src string, r marker.Resolver, drifted []string) (string, error) {
	if len(drifted) == 0 {
		return dest, nil
	}

	srcTexts, _, err := region.Regions(src, r)
	if err != nil {
		return "", fmt.Errorf("source document: %w", err)
	}
	destSpans, err := region.Spans(dest, r)
	if err != nil {
		return "", fmt.Errorf("destination document: %w", err)
	}

	replace := make(map[string]bool, len(drifted))
	for _, key := range drifted {
		replace[key] = true
	}

	var b strings.Builder
	b.Grow(len(dest))
	cursor := 0
	for _, span := range destSpans {
		replacement, ok := srcTexts[span.Key]
		if !replace[span.Key] || !ok {
			continue
		}
		b.WriteString(dest[cursor:span.Begin])
		b.WriteString(replacement)
		cursor = span.End
		logging.Debug("replaced region", logging.Mark(span.Key), logging.Operation("rewrite"))
	}
	b.WriteString(dest[cursor:])

	return b.String(), nil
}
