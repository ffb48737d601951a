package sync

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauern/marksync/internal/backup"
	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/marker"
	"github.com/klauern/marksync/internal/region"
	"github.com/klauern/marksync/internal/table"
)

const (
	fooRegion = "// sync begin\nfoo();\n// sync end"
	barRegion = "// sync begin\nbar();\n// sync end"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		t.Fatalf("failed to read %s: %v", rel, err)
	}
	return string(data)
}

func mustTable(t *testing.T, rules ...table.Rule) *table.Table {
	t.Helper()
	tbl, err := table.New(rules)
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}
	return tbl
}

func run(t *testing.T, root string, check bool, tbl *table.Table) *Result {
	t.Helper()
	result, err := New(Options{Root: root, Check: check}).Run(context.Background(), tbl)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return result
}

func TestRun_ApplyRewritesDrift(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/uart/usart.rs", fooRegion)
	writeFile(t, root, "src/uart/uart.rs", barRegion)
	tbl := mustTable(t, table.Rule{Destination: "src/uart/uart.rs", Source: "src/uart/usart.rs"})

	result := run(t, root, false, tbl)
	if len(result.Rules) != 1 {
		t.Fatalf("expected 1 rule result, got %d", len(result.Rules))
	}
	rr := result.Rules[0]
	if rr.Outcome != OutcomeSyncing {
		t.Errorf("expected outcome syncing, got %s", rr.Outcome)
	}
	if rr.State != StateRewritten {
		t.Errorf("expected state rewritten, got %s", rr.State)
	}
	if !result.DriftFound() {
		t.Error("expected DriftFound to be true after fixing drift")
	}
	if !result.InSync() {
		t.Error("expected InSync after rewriting")
	}
	if got := readFile(t, root, "src/uart/uart.rs"); got != fooRegion {
		t.Errorf("destination not rewritten: %q", got)
	}

	second := run(t, root, false, tbl)
	if second.Rules[0].Outcome != OutcomeSynced {
		t.Errorf("expected second run to be synced, got %s", second.Rules[0].Outcome)
	}
	if second.DriftFound() {
		t.Error("expected no drift on second run")
	}
}

func TestRun_CheckModeDoesNotWrite(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "usart.rs", fooRegion)
	writeFile(t, root, "uart.rs", barRegion)

	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	destPath := filepath.Join(root, "uart.rs")
	if err := os.Chtimes(destPath, past, past); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	tbl := mustTable(t, table.Rule{Destination: "uart.rs", Source: "usart.rs"})
	result := run(t, root, true, tbl)

	rr := result.Rules[0]
	if rr.Outcome != OutcomeUnsynced {
		t.Errorf("expected outcome unsynced, got %s", rr.Outcome)
	}
	if rr.State != StateDrifted {
		t.Errorf("expected state drifted, got %s", rr.State)
	}
	if result.InSync() {
		t.Error("expected InSync to be false in check mode with drift")
	}
	if got := readFile(t, root, "uart.rs"); got != barRegion {
		t.Errorf("check mode modified destination: %q", got)
	}
	info, err := os.Stat(destPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.ModTime().Equal(past) {
		t.Errorf("check mode touched modification time: %v", info.ModTime())
	}
}

func TestRun_MissingMarkerIsSynced(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src.rs", fooRegion)
	writeFile(t, root, "dest.rs", "fn main() {}\n")

	tbl := mustTable(t, table.Rule{Destination: "dest.rs", Source: "src.rs", Family: marker.FamilyLiteral})
	result := run(t, root, true, tbl)

	rr := result.Rules[0]
	if rr.Outcome != OutcomeSynced {
		t.Errorf("expected synced, got %s", rr.Outcome)
	}
	if rr.Report == nil || len(rr.Report.Skipped()) != 1 {
		t.Errorf("expected one skipped mark, got %+v", rr.Report)
	}
}

func TestRun_ChainedTablePropagatesInOneRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "c.rs", "// sync begin\nnewest();\n// sync end\n")
	writeFile(t, root, "b.rs", "b header\n// sync begin\nold();\n// sync end\n")
	writeFile(t, root, "a.rs", "a header\n// sync begin\nolder();\n// sync end\na footer\n")

	tbl, err := table.FromMap(map[string]string{"a.rs": "b.rs", "b.rs": "c.rs"})
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}

	var order []string
	o := New(Options{Root: root, Reporter: ReporterFunc(func(rr RuleResult) {
		order = append(order, rr.Rule.Destination)
	})})
	result, err := o.Run(context.Background(), tbl)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(order) != 2 || order[0] != "b.rs" || order[1] != "a.rs" {
		t.Errorf("expected b.rs before a.rs, got %v", order)
	}
	if len(result.Syncing()) != 2 {
		t.Errorf("expected both rules rewritten, got %d", len(result.Syncing()))
	}
	want := "a header\n// sync begin\nnewest();\n// sync end\na footer\n"
	if got := readFile(t, root, "a.rs"); got != want {
		t.Errorf("a.rs did not receive c.rs content transitively:\n%s", got)
	}
}

func TestRun_MixedSpellingChainPropagates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "c.rs", "// sync begin\nNEW();\n// sync end\n")
	writeFile(t, root, "b.rs", "// sync begin\nOLD();\n// sync end\n")
	writeFile(t, root, "a.rs", "// sync begin\nOLD();\n// sync end\n")

	tbl, err := table.NewAt(root, []table.Rule{
		{Destination: "a.rs", Source: filepath.Join(root, "b.rs")},
		{Destination: "b.rs", Source: "c.rs"},
	})
	if err != nil {
		t.Fatalf("NewAt failed: %v", err)
	}

	run(t, root, false, tbl)

	want := "// sync begin\nNEW();\n// sync end\n"
	if got := readFile(t, root, "a.rs"); got != want {
		t.Errorf("a.rs was synced against a stale b.rs:\n%s", got)
	}
}

func TestRun_MixedSpellingUpstreamFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "c.rs", fooRegion)
	writeFile(t, root, "b.rs", "// sync begin\nno end\n")
	writeFile(t, root, "a.rs", barRegion)

	tbl, err := table.NewAt(root, []table.Rule{
		{Destination: "a.rs", Source: filepath.Join(root, "b.rs")},
		{Destination: "b.rs", Source: "c.rs"},
	})
	if err != nil {
		t.Fatalf("NewAt failed: %v", err)
	}

	result := run(t, root, false, tbl)

	if len(result.Failed()) != 2 {
		t.Fatalf("expected 2 failed rules, got %s", result.Summary())
	}
	if got := readFile(t, root, "a.rs"); got != barRegion {
		t.Errorf("downstream of failed rule must not be written, got %q", got)
	}
}

func TestRun_QualifiedSubset(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "timer8.rs", "// sync1 begin\nA\n// sync1 end\n// sync2 begin\nB\n// sync2 end\n")
	writeFile(t, root, "timer7.rs", "// sync1 begin\nold\n// sync1 end\n// sync2 begin\nlocal\n// sync2 end\n")

	tbl := mustTable(t, table.Rule{
		Destination: "timer7.rs",
		Source:      "timer8.rs",
		Family:      marker.FamilyQualified,
		Marks:       []string{"sync1"},
	})
	run(t, root, false, tbl)

	want := "// sync1 begin\nA\n// sync1 end\n// sync2 begin\nlocal\n// sync2 end\n"
	if got := readFile(t, root, "timer7.rs"); got != want {
		t.Errorf("unexpected destination:\n%s", got)
	}
}

func TestRun_UnterminatedFailsRuleAndDownstream(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "c.rs", fooRegion)
	writeFile(t, root, "b.rs", "// sync begin\nno end\n")
	writeFile(t, root, "a.rs", barRegion)
	writeFile(t, root, "x.rs", barRegion)

	tbl, err := table.FromMap(map[string]string{"a.rs": "b.rs", "b.rs": "c.rs", "x.rs": "c.rs"})
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}

	result := run(t, root, false, tbl)

	failed := result.Failed()
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed rules, got %d: %s", len(failed), result.Summary())
	}
	for _, f := range failed {
		switch f.Rule.Destination {
		case "b.rs":
			if !errors.Is(f.Error, region.ErrUnterminated) {
				t.Errorf("expected unterminated error for b.rs, got %v", f.Error)
			}
		case "a.rs":
			if !errors.Is(f.Error, ErrUpstreamFailed) {
				t.Errorf("expected upstream failure for a.rs, got %v", f.Error)
			}
			if !strings.Contains(f.Error.Error(), "b.rs <- c.rs") {
				t.Errorf("expected failed chain in error, got %v", f.Error)
			}
		default:
			t.Errorf("unexpected failed rule %s", f.Rule.Destination)
		}
	}

	if got := readFile(t, root, "x.rs"); got != fooRegion {
		t.Errorf("independent rule should still be synced, got %q", got)
	}
	if got := readFile(t, root, "a.rs"); got != barRegion {
		t.Errorf("downstream of failed rule must not be written, got %q", got)
	}
	if result.Success() {
		t.Error("expected Success to be false")
	}
}

func TestRun_MissingFileAborts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dest.rs", barRegion)

	tbl := mustTable(t,
		table.Rule{Destination: "dest.rs", Source: "missing.rs"},
		table.Rule{Destination: "z.rs", Source: "dest.rs"},
	)

	result, err := New(Options{Root: root}).Run(context.Background(), tbl)
	if err == nil {
		t.Fatal("expected I/O error")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	if len(result.Rules) != 0 {
		t.Errorf("expected no rule results after abort, got %d", len(result.Rules))
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src.rs", fooRegion)
	writeFile(t, root, "dest.rs", barRegion)
	tbl := mustTable(t, table.Rule{Destination: "dest.rs", Source: "src.rs"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{Root: root}).Run(ctx, tbl)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if got := readFile(t, root, "dest.rs"); got != barRegion {
		t.Error("cancelled run must not write")
	}
}

func TestRun_BackupBeforeRewrite(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src.rs", fooRegion)
	writeFile(t, root, "dest.rs", barRegion)
	tbl := mustTable(t, table.Rule{Destination: "dest.rs", Source: "src.rs"})

	store := backup.NewStore(filepath.Join(root, ".marksync", "backups"))
	result, err := New(Options{Root: root, Backups: store}).Run(context.Background(), tbl)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	meta := result.Rules[0].Backup
	if meta == nil {
		t.Fatal("expected a backup to be recorded")
	}
	data, err := os.ReadFile(meta.BackupPath)
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	if string(data) != barRegion {
		t.Errorf("backup should hold the pre-rewrite content, got %q", data)
	}
}

func TestRun_PreservesFileMode(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src.rs", fooRegion)
	writeFile(t, root, "dest.rs", barRegion)
	destPath := filepath.Join(root, "dest.rs")
	if err := os.Chmod(destPath, 0o600); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}

	run(t, root, false, mustTable(t, table.Rule{Destination: "dest.rs", Source: "src.rs"}))

	info, err := os.Stat(destPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestRun_CustomSyntax(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "# sync begin\nx = 1\n# sync end\n")
	writeFile(t, root, "b.py", "# sync begin\nx = 2\n# sync end\n")

	tbl := mustTable(t, table.Rule{Destination: "b.py", Source: "a.py"})
	o := New(Options{Root: root, Syntax: marker.Syntax{Comment: "#", Begin: "begin", End: "end"}})
	if _, err := o.Run(context.Background(), tbl); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := readFile(t, root, "b.py"); got != "# sync begin\nx = 1\n# sync end\n" {
		t.Errorf("unexpected content %q", got)
	}
}

func TestRun_DiffHunks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src.rs", fooRegion)
	writeFile(t, root, "dest.rs", barRegion)
	tbl := mustTable(t, table.Rule{Destination: "dest.rs", Source: "src.rs"})

	result, err := New(Options{Root: root, Check: true, Diff: true}).Run(context.Background(), tbl)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	status, ok := result.Rules[0].Report.Get("sync")
	if !ok || len(status.Hunks) != 1 {
		t.Errorf("expected one diff hunk, got %+v", status)
	}
}

func TestRun_LogsUnmatchedMarksToContextLogger(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", fooRegion)
	writeFile(t, root, "b.rs", fooRegion)
	tbl := mustTable(t, table.Rule{
		Destination: "b.rs",
		Source:      "a.rs",
		Family:      marker.FamilyQualified,
		Marks:       []string{"sync", "synk"},
	})

	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: logging.LevelDebug, Output: &buf})
	ctx := logging.NewContext(context.Background(), logger)

	result, err := New(Options{Root: root}).Run(ctx, tbl)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.InSync() {
		t.Errorf("an unmatched declared mark must not count as drift")
	}

	out := buf.String()
	for _, want := range []string{"declared mark not found", "mark=synk", "rule.dest=b.rs", "rule.source=a.rs"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output:\n%s", want, out)
		}
	}
}
