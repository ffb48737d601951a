// Package table holds the sync table: the set of destination → source rules
// for a run, validated and ordered so every source is brought up to date
// before it is read.
package table

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauern/marksync/internal/marker"
)

// ErrCycle reports a cycle among the rules of a table.
var ErrCycle = errors.New("cycle in sync table")

// Validation error types.
const (
	TypeCircular  = "circular"
	TypeDuplicate = "duplicate"
	TypeSelf      = "self"
	TypeInvalid   = "invalid"
)

// ValidationError describes a rejected sync table.
type ValidationError struct {
	Type    string   // circular, duplicate, self, invalid
	Paths   []string // Files involved in the error
	Message string   // Human-readable error message
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrCycle) match circular validation errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrCycle && e.Type == TypeCircular
}

// Rule declares that Destination must mirror the marked regions of Source.
type Rule struct {
	Destination string
	Source      string
	Family      marker.Family
	// Marks restricts the rule to the named marks; empty means every mark the
	// family discovers.
	Marks []string
}

// String returns "destination <- source".
func (r Rule) String() string {
	return r.Destination + " <- " + r.Source
}

// Resolver builds the marker resolver for the rule.
func (r Rule) Resolver(syntax marker.Syntax) (marker.Resolver, error) {
	res, err := marker.New(marker.Spec{
		Family: r.Family,
		Syntax: syntax,
		Marks:  r.Marks,
	})
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", r, err)
	}
	return res, nil
}

// Table is a validated set of rules in execution order.
type Table struct {
	root  string
	rules []Rule
	index map[string]int
}

// FromMap builds a table from the plain {destination: source} shape, where
// every pattern-family mark applies.
func FromMap(m map[string]string) (*Table, error) {
	rules := make([]Rule, 0, len(m))
	for dest, src := range m {
		rules = append(rules, Rule{Destination: dest, Source: src, Family: marker.FamilyPattern})
	}
	return New(rules)
}

// New is NewAt with relative paths taken from the working directory.
func New(rules []Rule) (*Table, error) {
	return NewAt("", rules)
}

// NewAt validates rules and orders them so that a rule whose source is the
// destination of another rule runs after that rule. Ties are broken by
// destination path. The table is rejected before any file is read if it has
// duplicate destinations, self references or cycles.
//
// Files are identified by their absolute path, with relative paths resolved
// against root, so "b.rs" and "<root>/b.rs" name the same file.
func NewAt(root string, rules []Rule) (*Table, error) {
	byKey := make(map[string]Rule, len(rules))
	for _, r := range rules {
		r.Destination = clean(r.Destination)
		r.Source = clean(r.Source)
		if r.Family == "" {
			r.Family = marker.FamilyPattern
		}

		switch {
		case r.Destination == "" || r.Source == "":
			return nil, &ValidationError{
				Type:    TypeInvalid,
				Paths:   []string{r.Destination, r.Source},
				Message: fmt.Sprintf("rule %q: destination and source must both be set", r.String()),
			}
		case !r.Family.IsValid():
			return nil, &ValidationError{
				Type:    TypeInvalid,
				Paths:   []string{r.Destination},
				Message: fmt.Sprintf("rule %s: invalid marker family %q", r, r.Family),
			}
		case key(root, r.Destination) == key(root, r.Source):
			return nil, &ValidationError{
				Type:    TypeSelf,
				Paths:   []string{r.Destination},
				Message: fmt.Sprintf("rule %s: a file cannot be its own source", r),
			}
		}
		k := key(root, r.Destination)
		if prev, dup := byKey[k]; dup {
			return nil, &ValidationError{
				Type:    TypeDuplicate,
				Paths:   []string{prev.Destination, r.Destination},
				Message: fmt.Sprintf("destination %q is declared by more than one rule", r.Destination),
			}
		}
		byKey[k] = r
	}

	// A destination depends on its source only when that source is itself
	// produced by another rule.
	graph := make(map[string][]string, len(byKey))
	for k, r := range byKey {
		src := key(root, r.Source)
		if _, produced := byKey[src]; produced {
			graph[k] = []string{src}
		} else {
			graph[k] = nil
		}
	}

	if cycles := detectCycles(graph); len(cycles) > 0 {
		paths := make([]string, len(cycles[0]))
		for i, k := range cycles[0] {
			paths[i] = byKey[k].Destination
		}
		return nil, &ValidationError{
			Type:    TypeCircular,
			Paths:   paths,
			Message: fmt.Sprintf("circular sync dependency detected: %s", strings.Join(paths, " -> ")),
		}
	}

	ordered, err := topologicalSort(graph)
	if err != nil {
		return nil, &ValidationError{
			Type:    TypeInvalid,
			Message: fmt.Sprintf("failed to order rules: %v", err),
		}
	}

	t := &Table{
		root:  root,
		rules: make([]Rule, 0, len(ordered)),
		index: make(map[string]int, len(ordered)),
	}
	for i, k := range ordered {
		t.rules = append(t.rules, byKey[k])
		t.index[k] = i
	}
	return t, nil
}

// Rules returns the rules in execution order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// Key returns the identity of path within the table: its absolute form,
// resolved against the table root.
func (t *Table) Key(path string) string {
	return key(t.root, clean(path))
}

// Lookup returns the rule writing the given destination, however it is spelled.
func (t *Table) Lookup(dest string) (Rule, bool) {
	i, ok := t.index[t.Key(dest)]
	if !ok {
		return Rule{}, false
	}
	return t.rules[i], true
}

// Upstream returns the chain of sources feeding dest, nearest first, ending
// with the canonical source that no rule writes.
func (t *Table) Upstream(dest string) []string {
	var chain []string
	r, ok := t.Lookup(dest)
	for ok {
		chain = append(chain, r.Source)
		r, ok = t.Lookup(r.Source)
	}
	return chain
}

func key(root, p string) string {
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func clean(p string) string {
	if strings.TrimSpace(p) == "" {
		return ""
	}
	return filepath.Clean(p)
}

// detectCycles finds circular dependencies in the graph. Each cycle is the
// list of paths forming it, with the first path repeated at the end.
func detectCycles(graph map[string][]string) [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := []string{}

	var dfs func(node string) bool
	dfs = func(node string) bool {
		visited[node] = true
		recStack[node] = true
		path = append(path, node)

		for _, dep := range graph[node] {
			if !visited[dep] {
				if dfs(dep) {
					return true
				}
			} else if recStack[dep] {
				cycleStart := -1
				for i, n := range path {
					if n == dep {
						cycleStart = i
						break
					}
				}
				if cycleStart != -1 {
					cycle := make([]string, len(path)-cycleStart)
					copy(cycle, path[cycleStart:])
					cycle = append(cycle, dep)
					cycles = append(cycles, cycle)
				}
				return true
			}
		}

		path = path[:len(path)-1]
		recStack[node] = false
		return false
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		if !visited[node] {
			path = []string{}
			dfs(node)
		}
	}

	return cycles
}

// topologicalSort orders nodes with Kahn's algorithm, dependencies first.
func topologicalSort(graph map[string][]string) ([]string, error) {
	inDegree := make(map[string]int, len(graph))
	dependents := make(map[string][]string, len(graph))
	for node, deps := range graph {
		inDegree[node] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], node)
		}
	}

	var queue []string
	for node, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, node)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, node := range dependents[current] {
			inDegree[node]--
			if inDegree[node] == 0 {
				queue = append(queue, node)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(graph) {
		return nil, fmt.Errorf("topological sort failed: processed %d of %d rules", len(result), len(graph))
	}
	return result, nil
}
