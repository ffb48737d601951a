// Package e2e runs the marksync CLI in-process against throwaway projects.
// A Harness owns an isolated project directory and HOME, and reports the
// exit status the binary would have used.
package e2e

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/klauern/marksync/internal/cli"
)

// envVars are cleared for every harness so the developer's environment
// cannot change a test's configuration.
var envVars = []string{
	"MARKSYNC_SYNTAX_COMMENT",
	"MARKSYNC_BACKUP_ENABLED",
	"MARKSYNC_BACKUP_LOCATION",
	"MARKSYNC_BACKUP_MAX_BACKUPS",
	"MARKSYNC_OUTPUT_COLOR",
	"MARKSYNC_OUTPUT_DIFF",
	"MARKSYNC_OUTPUT_QUIET",
}

// Result is the outcome of one CLI invocation.
type Result struct {
	Stdout   string
	Err      error
	ExitCode int
}

// Harness runs the CLI against one project directory.
type Harness struct {
	t       *testing.T
	project *Fixture
}

// NewHarness creates a harness with an empty project directory.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	for _, key := range envVars {
		t.Setenv(key, "")
	}

	return &Harness{t: t, project: NewFixture(t, t.TempDir())}
}

// Project returns the fixture for the project directory.
func (h *Harness) Project() *Fixture {
	return h.project
}

// Run executes marksync with colors off and --root set to the project.
func (h *Harness) Run(args ...string) *Result {
	h.t.Helper()
	args = append([]string{"marksync", "--no-color", "--root", h.project.Path(".")}, args...)

	var err error
	stdout := h.captureStdout(func() {
		err = cli.Run(context.Background(), args)
	})
	return &Result{Stdout: stdout, Err: err, ExitCode: cli.ExitCode(err)}
}

// Check is Run with --check prepended.
func (h *Harness) Check(args ...string) *Result {
	h.t.Helper()
	return h.Run(append([]string{"--check"}, args...)...)
}

// captureStdout redirects os.Stdout through a pipe while fn runs. The pipe
// is drained concurrently so large reports cannot block fn.
func (h *Harness) captureStdout(fn func()) string {
	h.t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create stdout pipe: %v", err)
	}
	os.Stdout = w

	var buf bytes.Buffer
	var copyErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, copyErr = io.Copy(&buf, r)
	}()

	fn()

	if err := w.Close(); err != nil {
		h.t.Fatalf("failed to close stdout pipe writer: %v", err)
	}
	os.Stdout = old
	<-done
	_ = r.Close()
	if copyErr != nil {
		h.t.Fatalf("failed to read captured stdout: %v", copyErr)
	}
	return buf.String()
}
