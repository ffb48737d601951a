package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func TestCreate(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src", "uart.rs")
	writeFile(t, src, "// sync begin\nbar();\n// sync end\n")

	store := NewStore(filepath.Join(tmp, "backups"))
	meta, err := store.Create(src, "src/uart.rs <- src/usart.rs")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if meta.SourcePath != src {
		t.Errorf("expected source path %q, got %q", src, meta.SourcePath)
	}
	if meta.Rule != "src/uart.rs <- src/usart.rs" {
		t.Errorf("unexpected rule %q", meta.Rule)
	}
	if len(meta.Hash) != 64 {
		t.Errorf("expected sha256 hex hash, got %q", meta.Hash)
	}

	data, err := os.ReadFile(meta.BackupPath)
	if err != nil {
		t.Fatalf("backup file not readable: %v", err)
	}
	if string(data) != "// sync begin\nbar();\n// sync end\n" {
		t.Errorf("backup content mismatch: %q", data)
	}

	if _, err := os.Stat(store.IndexPath()); err != nil {
		t.Errorf("expected index file: %v", err)
	}

	got, err := store.Get(meta.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Hash != meta.Hash {
		t.Errorf("index hash mismatch")
	}
}

func TestCreate_MissingFile(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Create(filepath.Join(t.TempDir(), "missing.rs"), ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRestore(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "a.rs")
	writeFile(t, src, "original")

	store := NewStore(filepath.Join(tmp, "backups"))
	meta, err := store.Create(src, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	writeFile(t, src, "rewritten")
	if err := store.Restore(meta.ID, ""); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	data, _ := os.ReadFile(src)
	if string(data) != "original" {
		t.Errorf("expected original content, got %q", data)
	}

	other := filepath.Join(tmp, "elsewhere", "a.rs")
	if err := store.Restore(meta.ID, other); err != nil {
		t.Fatalf("Restore to other path failed: %v", err)
	}
	data, _ = os.ReadFile(other)
	if string(data) != "original" {
		t.Errorf("expected original content at %s, got %q", other, data)
	}
}

func TestRestore_Unknown(t *testing.T) {
	store := NewStore(t.TempDir())
	err := store.Restore("nope", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVerify_DetectsCorruption(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "a.rs")
	writeFile(t, src, "content")

	store := NewStore(filepath.Join(tmp, "backups"))
	meta, err := store.Create(src, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Verify(meta.ID); err != nil {
		t.Fatalf("Verify failed on intact backup: %v", err)
	}

	writeFile(t, meta.BackupPath, "tampered")
	if err := store.Verify(meta.ID); err == nil {
		t.Error("expected hash mismatch error")
	}
	if err := store.Restore(meta.ID, ""); err == nil {
		t.Error("expected Restore to refuse a corrupted backup")
	}
}

func TestListAndDelete(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "a.rs")
	b := filepath.Join(tmp, "b.rs")
	writeFile(t, a, "a")
	writeFile(t, b, "b")

	store := NewStore(filepath.Join(tmp, "backups"))
	metaA, err := store.Create(a, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(b, ""); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	all, err := store.List("")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 backups, got %d", len(all))
	}

	onlyA, err := store.List(a)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(onlyA) != 1 || onlyA[0].ID != metaA.ID {
		t.Errorf("expected only backup of a.rs, got %v", onlyA)
	}

	if err := store.Delete(metaA.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(metaA.BackupPath); !os.IsNotExist(err) {
		t.Error("expected backup file to be removed")
	}
	if err := store.Delete(metaA.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCleanup(t *testing.T) {
	tmp := t.TempDir()
	store := NewStore(filepath.Join(tmp, "backups"))

	now := time.Now()
	index := &Index{Version: IndexVersion, Backups: map[string]Metadata{}}
	for i := 0; i < 4; i++ {
		path := filepath.Join(store.Dir, "b"+string(rune('0'+i)))
		writeFile(t, path, "x")
		id := "id-" + string(rune('0'+i))
		index.Backups[id] = Metadata{
			ID:         id,
			SourcePath: "a.rs",
			BackupPath: path,
			CreatedAt:  now.Add(-time.Duration(i) * time.Hour),
		}
	}
	if err := store.SaveIndex(index); err != nil {
		t.Fatalf("SaveIndex failed: %v", err)
	}

	deleted, err := store.Cleanup(CleanupOptions{MaxBackups: 2, DryRun: true})
	if err != nil {
		t.Fatalf("Cleanup dry run failed: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("expected 2 backups to be reported, got %v", deleted)
	}
	remaining, _ := store.List("")
	if len(remaining) != 4 {
		t.Fatalf("dry run must not delete, %d remain", len(remaining))
	}

	deleted, err = store.Cleanup(CleanupOptions{MaxBackups: 2})
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("expected 2 deletions, got %v", deleted)
	}
	remaining, _ = store.List("")
	if len(remaining) != 2 || remaining[0].ID != "id-0" || remaining[1].ID != "id-1" {
		t.Errorf("expected the two newest backups to remain, got %v", remaining)
	}
}

func TestCleanup_KeepAtLeastOne(t *testing.T) {
	tmp := t.TempDir()
	store := NewStore(filepath.Join(tmp, "backups"))

	path := filepath.Join(store.Dir, "old")
	writeFile(t, path, "x")
	index := &Index{Version: IndexVersion, Backups: map[string]Metadata{
		"old": {ID: "old", SourcePath: "a.rs", BackupPath: path, CreatedAt: time.Now().Add(-90 * 24 * time.Hour)},
	}}
	if err := store.SaveIndex(index); err != nil {
		t.Fatalf("SaveIndex failed: %v", err)
	}

	deleted, err := store.Cleanup(DefaultCleanupOptions())
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("expected newest backup to be kept, deleted %v", deleted)
	}

	opts := DefaultCleanupOptions()
	opts.KeepAtLeastOne = false
	deleted, err = store.Cleanup(opts)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if len(deleted) != 1 {
		t.Errorf("expected old backup to be deleted, got %v", deleted)
	}
}
