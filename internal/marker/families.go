package marker

import (
	"regexp"
)

// Literal matches one fixed begin token and closes at the first fixed end
// token that follows it.
type Literal struct {
	name  string
	begin string
	end   string
}

// NewLiteral creates a literal resolver for the given tokens.
func NewLiteral(name, begin, end string) *Literal {
	return &Literal{name: name, begin: begin, end: end}
}

// Family implements Resolver.
func (l *Literal) Family() Family { return FamilyLiteral }

// Marks implements Resolver.
func (l *Literal) Marks() []string { return []string{l.name} }

// Find implements Resolver.
func (l *Literal) Find(text string) []Occurrence {
	positions := indexAll(text, l.begin)
	occs := make([]Occurrence, 0, len(positions))
	for _, pos := range positions {
		occs = append(occs, Occurrence{
			Name:   l.name,
			Family: FamilyLiteral,
			Pos:    pos,
			Token:  l.begin,
		})
	}
	return finish(occs)
}

// Terminate implements Resolver.
func (l *Literal) Terminate(text string, occs []Occurrence, i int) (int, bool) {
	return terminateAt(text, occs[i], l.end)
}

// Qualified matches several independently named marks. Each begin token is
// paired only with the end token derived from it.
type Qualified struct {
	syntax Syntax
	names  []string
}

// NewQualified creates a qualified resolver for the named marks.
func NewQualified(syntax Syntax, names ...string) *Qualified {
	return &Qualified{syntax: syntax, names: dedupe(names)}
}

// Family implements Resolver.
func (q *Qualified) Family() Family { return FamilyQualified }

// Marks implements Resolver.
func (q *Qualified) Marks() []string { return append([]string(nil), q.names...) }

// Find implements Resolver.
func (q *Qualified) Find(text string) []Occurrence {
	var occs []Occurrence
	for _, name := range q.names {
		token := q.syntax.BeginToken(name)
		for _, pos := range indexAll(text, token) {
			occs = append(occs, Occurrence{
				Name:   name,
				Family: FamilyQualified,
				Pos:    pos,
				Token:  token,
			})
		}
	}
	return finish(occs)
}

// Terminate implements Resolver.
func (q *Qualified) Terminate(text string, occs []Occurrence, i int) (int, bool) {
	return terminateAt(text, occs[i], q.syntax.EndFor(occs[i].Token))
}

// Pattern discovers every mark of a family with one scan.
type Pattern struct {
	syntax  Syntax
	base    string
	chained bool
	filter  []string
	beginRe *regexp.Regexp
	endRe   *regexp.Regexp
}

// NewPattern creates a pattern resolver for "<comment> <base><digits> <begin>".
// When chained is true a region ends at the next discovered mark, and the last
// region ends after the first family end token.
func NewPattern(syntax Syntax, base string, chained bool) *Pattern {
	prefix := regexp.QuoteMeta(syntax.Comment) + " " + regexp.QuoteMeta(base) + `(\d*) `
	return &Pattern{
		syntax:  syntax,
		base:    base,
		chained: chained,
		beginRe: regexp.MustCompile(prefix + regexp.QuoteMeta(syntax.Begin)),
		endRe:   regexp.MustCompile(prefix + regexp.QuoteMeta(syntax.End)),
	}
}

// Family implements Resolver.
func (p *Pattern) Family() Family {
	if p.chained {
		return FamilyChained
	}
	return FamilyPattern
}

// Marks implements Resolver.
func (p *Pattern) Marks() []string {
	if len(p.filter) == 0 {
		return nil
	}
	return append([]string(nil), p.filter...)
}

// Find implements Resolver.
func (p *Pattern) Find(text string) []Occurrence {
	matches := p.beginRe.FindAllStringSubmatchIndex(text, -1)
	occs := make([]Occurrence, 0, len(matches))
	for _, m := range matches {
		occs = append(occs, Occurrence{
			Name:   p.base + text[m[2]:m[3]],
			Family: p.Family(),
			Pos:    m[0],
			Token:  text[m[0]:m[1]],
		})
	}
	return finish(occs)
}

// Terminate implements Resolver.
func (p *Pattern) Terminate(text string, occs []Occurrence, i int) (int, bool) {
	o := occs[i]
	if !p.chained {
		return terminateAt(text, o, p.syntax.EndFor(o.Token))
	}
	if i+1 < len(occs) {
		return occs[i+1].Pos, true
	}
	loc := p.endRe.FindStringIndex(text[o.After():])
	if loc == nil {
		return 0, false
	}
	return o.After() + loc[1], true
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
