package e2e

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Fixture provides helpers for creating project files in E2E tests.
type Fixture struct {
	t       *testing.T
	baseDir string
}

// NewFixture creates a new fixture helper rooted at the given directory.
func NewFixture(t *testing.T, baseDir string) *Fixture {
	t.Helper()
	return &Fixture{
		t:       t,
		baseDir: baseDir,
	}
}

// WriteFile writes content to a file relative to the fixture base directory.
// It creates parent directories as needed.
func (f *Fixture) WriteFile(relPath, content string) string {
	f.t.Helper()
	fullPath := filepath.Join(f.baseDir, relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		f.t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, []byte(content), 0o600); err != nil {
		f.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}

	return fullPath
}

// WriteProject writes marksync.yaml with the given content.
func (f *Fixture) WriteProject(content string) string {
	f.t.Helper()
	return f.WriteFile("marksync.yaml", content)
}

// Path returns the absolute path for a relative path within the fixture.
func (f *Fixture) Path(relPath string) string {
	return filepath.Join(f.baseDir, relPath)
}

// Exists returns true if the file exists.
func (f *Fixture) Exists(relPath string) bool {
	_, err := os.Stat(f.Path(relPath))
	return err == nil
}

// ReadFile reads a file relative to the fixture base directory.
func (f *Fixture) ReadFile(relPath string) string {
	f.t.Helper()
	// #nosec G304 - path is within the fixture directory
	data, err := os.ReadFile(f.Path(relPath))
	if err != nil {
		f.t.Fatalf("failed to read file %s: %v", relPath, err)
	}
	return string(data)
}

// Backdate sets a file's modification time into the past so that a later
// write is observable.
func (f *Fixture) Backdate(relPath string) time.Time {
	f.t.Helper()
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(f.Path(relPath), past, past); err != nil {
		f.t.Fatalf("failed to set times on %s: %v", relPath, err)
	}
	return past
}

// ModTime returns a file's modification time.
func (f *Fixture) ModTime(relPath string) time.Time {
	f.t.Helper()
	info, err := os.Stat(f.Path(relPath))
	if err != nil {
		f.t.Fatalf("failed to stat %s: %v", relPath, err)
	}
	return info.ModTime()
}
