// Package marker recognizes the textual markers that delimit synchronized
// regions and decides where each marked region ends.
//
// Three marker families are supported:
//   - Literal: one fixed begin token and one fixed end token.
//   - Qualified: several named marks (sync1, sync2), each with its own pair.
//   - Pattern: every mark matching "<comment> <base><digits> <begin>" is
//     discovered by a single scan. Regions close on their own end token, or,
//     for chained patterns, at the start of the next discovered mark.
//
// All families sit behind the Resolver interface so callers never branch on
// the family of a rule.
package marker

import (
	"fmt"
	"sort"
	"strings"
)

// Family identifies a marker family.
type Family string

const (
	// FamilyLiteral uses a single fixed begin/end token pair.
	FamilyLiteral Family = "literal"

	// FamilyQualified uses declared, independently named begin/end pairs.
	FamilyQualified Family = "qualified"

	// FamilyPattern discovers marks by scanning; each mark has its own end token.
	FamilyPattern Family = "pattern"

	// FamilyChained discovers marks by scanning; each region ends where the next one begins.
	FamilyChained Family = "chained"
)

// DefaultBase is the mark name used when a rule names none.
const DefaultBase = "sync"

// AllFamilies returns all valid families.
func AllFamilies() []Family {
	return []Family{FamilyLiteral, FamilyQualified, FamilyPattern, FamilyChained}
}

// IsValid returns true if f is a known family.
func (f Family) IsValid() bool {
	switch f {
	case FamilyLiteral, FamilyQualified, FamilyPattern, FamilyChained:
		return true
	default:
		return false
	}
}

// String returns the string representation of the family.
func (f Family) String() string {
	return string(f)
}

// ParseFamily parses a family name. The empty string selects FamilyPattern.
func ParseFamily(s string) (Family, error) {
	normalized := Family(strings.ToLower(strings.TrimSpace(s)))
	if normalized == "" {
		return FamilyPattern, nil
	}
	if !normalized.IsValid() {
		return "", fmt.Errorf("invalid marker family %q (valid: literal, qualified, pattern, chained)", s)
	}
	return normalized, nil
}

// Occurrence is one begin marker found in a document.
type Occurrence struct {
	// Key identifies the mark within the document: the mark name for its first
	// occurrence, "name#n" for the n-th repeat.
	Key string

	// Name is the mark name (sync, sync2).
	Name string

	// Family is the family of the resolver that found the marker.
	Family Family

	// Pos is the byte offset of the begin token.
	Pos int

	// Token is the begin token text as it appears in the document.
	Token string
}

// After returns the offset just past the begin token.
func (o Occurrence) After() int {
	return o.Pos + len(o.Token)
}

// Resolver locates marker occurrences and their terminating boundaries.
type Resolver interface {
	// Family reports which marker family this resolver implements.
	Family() Family

	// Marks returns the mark names a rule declared, or nil when every
	// discovered mark applies.
	Marks() []string

	// Find returns the begin markers in text, ordered by position.
	Find(text string) []Occurrence

	// Terminate returns the offset just past the region started by occs[i].
	// ok is false when the region has no terminator.
	Terminate(text string, occs []Occurrence, i int) (end int, ok bool)
}

// Spec describes a resolver to build.
type Spec struct {
	Family Family
	Syntax Syntax
	// Marks names the marks to synchronize. Literal takes at most one name,
	// Qualified requires at least one, Pattern and Chained treat them as a filter.
	Marks []string
	// Base is the mark name scanned for by pattern families (default "sync").
	Base string
}

// New builds the resolver described by spec.
func New(spec Spec) (Resolver, error) {
	syntax := spec.Syntax
	if syntax == (Syntax{}) {
		syntax = DefaultSyntax()
	}
	if err := syntax.Validate(); err != nil {
		return nil, err
	}
	for _, m := range spec.Marks {
		if err := validateName(m); err != nil {
			return nil, err
		}
	}

	family := spec.Family
	if family == "" {
		family = FamilyPattern
	}

	switch family {
	case FamilyLiteral:
		if len(spec.Marks) > 1 {
			return nil, fmt.Errorf("literal family takes one mark, got %d", len(spec.Marks))
		}
		name := DefaultBase
		if len(spec.Marks) == 1 {
			name = spec.Marks[0]
		}
		return NewLiteral(name, syntax.BeginToken(name), syntax.EndToken(name)), nil
	case FamilyQualified:
		if len(spec.Marks) == 0 {
			return nil, fmt.Errorf("qualified family requires at least one mark name")
		}
		return NewQualified(syntax, spec.Marks...), nil
	case FamilyPattern, FamilyChained:
		base := spec.Base
		if base == "" {
			base = DefaultBase
		}
		if err := validateName(base); err != nil {
			return nil, err
		}
		p := NewPattern(syntax, base, family == FamilyChained)
		p.filter = append([]string(nil), spec.Marks...)
		return p, nil
	default:
		return nil, fmt.Errorf("invalid marker family %q", family)
	}
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("mark name must not be empty")
	}
	if strings.ContainsAny(name, " \t\r\n#") {
		return fmt.Errorf("mark name %q must not contain whitespace or '#'", name)
	}
	return nil
}

// indexAll returns the offsets of every non-overlapping occurrence of token.
func indexAll(text, token string) []int {
	var positions []int
	offset := 0
	for {
		i := strings.Index(text[offset:], token)
		if i < 0 {
			return positions
		}
		positions = append(positions, offset+i)
		offset += i + len(token)
	}
}

// finish sorts occurrences by position and assigns keys.
func finish(occs []Occurrence) []Occurrence {
	sort.SliceStable(occs, func(i, j int) bool {
		return occs[i].Pos < occs[j].Pos
	})
	seen := make(map[string]int, len(occs))
	for i := range occs {
		n := seen[occs[i].Name]
		seen[occs[i].Name] = n + 1
		occs[i].Key = KeyFor(occs[i].Name, n)
	}
	return occs
}

// KeyFor returns the key of the n-th (zero based) occurrence of name.
func KeyFor(name string, n int) string {
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s#%d", name, n)
}

// NameOf returns the mark name part of a key.
func NameOf(key string) string {
	if i := strings.IndexByte(key, '#'); i >= 0 {
		return key[:i]
	}
	return key
}

// terminateAt finds token after the begin token of occs[i].
func terminateAt(text string, o Occurrence, token string) (int, bool) {
	i := strings.Index(text[o.After():], token)
	if i < 0 {
		return 0, false
	}
	return o.After() + i + len(token), true
}
