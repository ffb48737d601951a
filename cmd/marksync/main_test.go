package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/klauern/marksync/internal/cli"
)

// capture runs the CLI and returns its stdout.
func capture(t *testing.T, args ...string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := cli.Run(context.Background(), args)

	if closeErr := w.Close(); closeErr != nil {
		t.Fatalf("failed to close pipe writer: %v", closeErr)
	}
	os.Stdout = old

	var buf bytes.Buffer
	if _, copyErr := io.Copy(&buf, r); copyErr != nil {
		t.Fatalf("failed to read captured output: %v", copyErr)
	}
	return buf.String(), err
}

func TestCLIInitialization(t *testing.T) {
	output, err := capture(t, "marksync", "--help")
	if err != nil {
		t.Fatalf("CLI initialization failed: %v", err)
	}

	// Verify help output contains expected content
	if !strings.Contains(output, "marksync") {
		t.Errorf("expected help output to contain 'marksync', got: %q", output)
	}
	if !strings.Contains(output, "USAGE") || !strings.Contains(output, "COMMANDS") {
		t.Errorf("expected help output to contain USAGE and COMMANDS sections, got: %q", output)
	}
	for _, flag := range []string{"--check", "--diff", "--config", "--root", "--no-backup"} {
		if !strings.Contains(output, flag) {
			t.Errorf("expected flag %q in help output", flag)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	output, err := capture(t, "marksync", "--version")
	if err != nil {
		t.Fatalf("--version flag failed: %v", err)
	}
	if !strings.Contains(output, "marksync") {
		t.Errorf("expected version output to contain 'marksync', got: %q", output)
	}
}

func TestAllCommandsRegistered(t *testing.T) {
	output, err := capture(t, "marksync", "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}

	for _, cmd := range []string{"rules", "marks", "init", "backups", "version"} {
		if !strings.Contains(output, cmd) {
			t.Errorf("expected command %q to be registered, help output: %q", cmd, output)
		}
	}
}

func TestGlobalFlagsRecognized(t *testing.T) {
	tests := map[string][]string{
		"verbose flag":   {"marksync", "--verbose", "version"},
		"debug flag":     {"marksync", "--debug", "version"},
		"no-color flag":  {"marksync", "--no-color", "version"},
		"combined flags": {"marksync", "--verbose", "--no-color", "version"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := capture(t, args...); err != nil {
				t.Errorf("Run() error = %v", err)
			}
		})
	}
}
