package e2e

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/klauern/marksync/internal/export"
	"github.com/klauern/marksync/internal/marker"
	"github.com/klauern/marksync/internal/region"
	"github.com/klauern/marksync/internal/sync"
	"github.com/klauern/marksync/internal/ui"
)

// AssertSuccess fails the test unless the run exited 0.
func AssertSuccess(t *testing.T, r *Result) {
	t.Helper()
	if r.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d: %v\nstdout: %s", r.ExitCode, r.Err, r.Stdout)
	}
}

// AssertExitCode fails the test if the exit code doesn't match.
func AssertExitCode(t *testing.T, r *Result, expected int) {
	t.Helper()
	if r.ExitCode != expected {
		t.Errorf("expected exit code %d, got %d\nerror: %v\nstdout: %s", expected, r.ExitCode, r.Err, r.Stdout)
	}
}

// AssertErrorContains fails the test if the run did not fail with an error
// mentioning substr.
func AssertErrorContains(t *testing.T, r *Result, substr string) {
	t.Helper()
	if r.Err == nil {
		t.Fatalf("expected error containing %q, but the run succeeded", substr)
	}
	if !strings.Contains(r.Err.Error(), substr) {
		t.Errorf("expected error to contain %q\ngot: %v", substr, r.Err)
	}
}

// AssertOutputContains fails the test if stdout doesn't contain substr.
func AssertOutputContains(t *testing.T, r *Result, substr string) {
	t.Helper()
	if !strings.Contains(r.Stdout, substr) {
		t.Errorf("expected output to contain %q\ngot: %s", substr, r.Stdout)
	}
}

// outcomeLine is the console line for dest with colors off.
func outcomeLine(o sync.Outcome, dest string) string {
	return fmt.Sprintf("%-8s %s", ui.Title(string(o)), dest)
}

// AssertOutcome fails the test unless the console reported dest with the
// given outcome.
func AssertOutcome(t *testing.T, r *Result, o sync.Outcome, dest string) {
	t.Helper()
	want := outcomeLine(o, dest)
	for _, line := range strings.Split(r.Stdout, "\n") {
		if line == want || strings.HasPrefix(line, want+" (") {
			return
		}
	}
	t.Errorf("expected a %q line for %s\ngot: %s", o, dest, r.Stdout)
}

// AssertReportedBefore fails the test unless first was reported before second.
func AssertReportedBefore(t *testing.T, r *Result, first, second string) {
	t.Helper()
	i := strings.Index(r.Stdout, " "+first+"\n")
	j := strings.Index(r.Stdout, " "+second+"\n")
	if i < 0 || j < 0 || i > j {
		t.Errorf("expected %s to be reported before %s:\n%s", first, second, r.Stdout)
	}
}

// AssertFileEquals fails the test if the file content doesn't match exactly.
func AssertFileEquals(t *testing.T, f *Fixture, rel, expected string) {
	t.Helper()
	if got := f.ReadFile(rel); got != expected {
		t.Errorf("content mismatch for %s\nexpected: %q\ngot: %q", rel, expected, got)
	}
}

// AssertUntouched fails the test if rel changed content or modification
// time since it was backdated to mtime.
func AssertUntouched(t *testing.T, f *Fixture, rel, content string, mtime time.Time) {
	t.Helper()
	AssertFileEquals(t, f, rel, content)
	if got := f.ModTime(rel); !got.Equal(mtime) {
		t.Errorf("%s was rewritten: mtime %v, want %v", rel, got, mtime)
	}
}

// AssertRegion fails the test unless the pattern-family region key of rel,
// markers included, equals want.
func AssertRegion(t *testing.T, f *Fixture, rel, key, want string) {
	t.Helper()
	res, err := marker.New(marker.Spec{Family: marker.FamilyPattern})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	split, err := region.Extract(f.ReadFile(rel), res, key)
	if err != nil {
		t.Fatalf("extract %s from %s: %v", key, rel, err)
	}
	if !split.Found {
		t.Fatalf("mark %s not found in %s", key, rel)
	}
	if split.Region != want {
		t.Errorf("region %s of %s\nexpected: %q\ngot: %q", key, rel, want, split.Region)
	}
}

// DecodeReport parses stdout of a --format json run.
func DecodeReport(t *testing.T, r *Result) export.Report {
	t.Helper()
	var report export.Report
	if err := json.Unmarshal([]byte(r.Stdout), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, r.Stdout)
	}
	return report
}
