package table

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/klauern/marksync/internal/marker"
)

func destinations(t *Table) []string {
	var out []string
	for _, r := range t.Rules() {
		out = append(out, r.Destination)
	}
	return out
}

func TestNew_OrdersChains(t *testing.T) {
	tbl, err := FromMap(map[string]string{
		"a.rs": "b.rs",
		"b.rs": "c.rs",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := destinations(tbl)
	want := []string{"b.rs", "a.rs"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNew_DeterministicOrder(t *testing.T) {
	rules := []Rule{
		{Destination: "src/timer/timer7.rs", Source: "src/timer/timer8.rs"},
		{Destination: "src/uart/uart.rs", Source: "src/uart/usart.rs"},
		{Destination: "src/timer/timer16.rs", Source: "src/timer/timer8.rs"},
		{Destination: "src/timer/syst.rs", Source: "src/timer/timer16.rs"},
	}

	for i := 0; i < 5; i++ {
		tbl, err := New(rules)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := destinations(tbl)
		want := []string{"src/timer/timer16.rs", "src/timer/syst.rs", "src/timer/timer7.rs", "src/uart/uart.rs"}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("run %d: got %v, want %v", i, got, want)
			}
		}
	}
}

func TestNew_DefaultsAndCleaning(t *testing.T) {
	tbl, err := New([]Rule{{Destination: "./src//a.rs", Source: "src/b.rs"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, ok := tbl.Lookup("src/a.rs")
	if !ok {
		t.Fatal("expected cleaned destination to be found")
	}
	if r.Family != marker.FamilyPattern {
		t.Errorf("expected default family pattern, got %q", r.Family)
	}
	if tbl.Len() != 1 {
		t.Errorf("expected 1 rule, got %d", tbl.Len())
	}
}

func TestNew_Rejects(t *testing.T) {
	tests := map[string]struct {
		rules    []Rule
		wantType string
	}{
		"cycle": {
			rules: []Rule{
				{Destination: "a", Source: "b"},
				{Destination: "b", Source: "c"},
				{Destination: "c", Source: "a"},
			},
			wantType: TypeCircular,
		},
		"two node cycle": {
			rules: []Rule{
				{Destination: "a", Source: "b"},
				{Destination: "b", Source: "a"},
			},
			wantType: TypeCircular,
		},
		"self reference": {
			rules:    []Rule{{Destination: "a", Source: "./a"}},
			wantType: TypeSelf,
		},
		"duplicate destination": {
			rules: []Rule{
				{Destination: "a", Source: "b"},
				{Destination: "a", Source: "c"},
			},
			wantType: TypeDuplicate,
		},
		"missing source": {
			rules:    []Rule{{Destination: "a"}},
			wantType: TypeInvalid,
		},
		"unknown family": {
			rules:    []Rule{{Destination: "a", Source: "b", Family: "fuzzy"}},
			wantType: TypeInvalid,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(tt.rules)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if vErr.Type != tt.wantType {
				t.Errorf("got type %q, want %q (%v)", vErr.Type, tt.wantType, err)
			}
			if got := errors.Is(err, ErrCycle); got != (tt.wantType == TypeCircular) {
				t.Errorf("errors.Is(err, ErrCycle) = %v", got)
			}
		})
	}
}

func TestNewAt_MixedSpellingsNameOneFile(t *testing.T) {
	root := t.TempDir()
	tbl, err := NewAt(root, []Rule{
		{Destination: "a.rs", Source: filepath.Join(root, "b.rs")},
		{Destination: "b.rs", Source: "c.rs"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := destinations(tbl)
	if len(got) != 2 || got[0] != "b.rs" || got[1] != "a.rs" {
		t.Errorf("expected b.rs before a.rs, got %v", got)
	}
	if _, ok := tbl.Lookup(filepath.Join(root, "a.rs")); !ok {
		t.Error("expected absolute spelling to find a.rs")
	}
	if tbl.Key("b.rs") != tbl.Key(filepath.Join(root, "b.rs")) {
		t.Errorf("keys differ: %q vs %q", tbl.Key("b.rs"), tbl.Key(filepath.Join(root, "b.rs")))
	}
	up := tbl.Upstream("a.rs")
	if len(up) != 2 || up[1] != "c.rs" {
		t.Errorf("got upstream %v, want [%s c.rs]", up, filepath.Join(root, "b.rs"))
	}
}

func TestNewAt_MixedSpellingsRejects(t *testing.T) {
	root := t.TempDir()
	abs := func(p string) string { return filepath.Join(root, p) }

	tests := map[string]struct {
		rules    []Rule
		wantType string
	}{
		"cycle": {
			rules: []Rule{
				{Destination: "a", Source: abs("b")},
				{Destination: "b", Source: "a"},
			},
			wantType: TypeCircular,
		},
		"duplicate destination": {
			rules: []Rule{
				{Destination: "a", Source: "b"},
				{Destination: abs("a"), Source: "c"},
			},
			wantType: TypeDuplicate,
		},
		"self reference": {
			rules:    []Rule{{Destination: "a", Source: abs("a")}},
			wantType: TypeSelf,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewAt(root, tt.rules)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if vErr.Type != tt.wantType {
				t.Errorf("got type %q, want %q (%v)", vErr.Type, tt.wantType, err)
			}
		})
	}
}

func TestUpstream(t *testing.T) {
	tbl, err := FromMap(map[string]string{"a": "b", "b": "c", "x": "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	up := tbl.Upstream("a")
	if len(up) != 2 || up[0] != "b" || up[1] != "c" {
		t.Errorf("got %v, want [b c]", up)
	}
	if up := tbl.Upstream("c"); len(up) != 0 {
		t.Errorf("canonical source has no upstream, got %v", up)
	}
}

func TestRuleResolver(t *testing.T) {
	r := Rule{Destination: "a", Source: "b", Family: marker.FamilyQualified, Marks: []string{"sync1"}}
	res, err := r.Resolver(marker.DefaultSyntax())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Family() != marker.FamilyQualified {
		t.Errorf("got family %q", res.Family())
	}

	bad := Rule{Destination: "a", Source: "b", Family: marker.FamilyQualified}
	if _, err := bad.Resolver(marker.DefaultSyntax()); err == nil {
		t.Error("expected error for qualified rule without marks")
	}
}
