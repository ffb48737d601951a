// Package ui provides terminal output for marksync: colored outcome labels,
// the per-rule console reporter, and styled listings.
package ui

import (
	"fmt"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/klauern/marksync/internal/sync"
)

// Color function types for styled output.
var (
	// Success is used for successful operations (green).
	Success = color.New(color.FgGreen).SprintFunc()
	// Error is used for errors and failures (red).
	Error = color.New(color.FgRed).SprintFunc()
	// Warning is used for warnings and cautions (yellow).
	Warning = color.New(color.FgYellow).SprintFunc()
	// Info is used for informational messages (cyan).
	Info = color.New(color.FgCyan).SprintFunc()
	// Bold is used for emphasis (bold white).
	Bold = color.New(color.Bold).SprintFunc()
	// Dim is used for secondary information (faint).
	Dim = color.New(color.Faint).SprintFunc()
	// Header is used for table headers (bold cyan).
	Header = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// Outcome colors: Synced is blue, Unsynced red, Syncing green.
var outcomeColors = map[sync.Outcome]func(a ...any) string{
	sync.OutcomeSynced:   color.New(color.FgBlue).SprintFunc(),
	sync.OutcomeUnsynced: color.New(color.FgRed).SprintFunc(),
	sync.OutcomeSyncing:  color.New(color.FgGreen).SprintFunc(),
	sync.OutcomeFailed:   color.New(color.FgRed, color.Bold).SprintFunc(),
}

var titleCaser = cases.Title(language.English)

// Title returns s with its first letter upper-cased, e.g. "unsynced" → "Unsynced".
func Title(s string) string {
	return titleCaser.String(s)
}

// OutcomeLabel returns the colored, fixed-width label for an outcome.
func OutcomeLabel(o sync.Outcome) string {
	label := fmt.Sprintf("%-8s", Title(string(o)))
	if paint, ok := outcomeColors[o]; ok {
		return paint(label)
	}
	return label
}

// Status symbols with colors.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolSkipped = "-"
)

// StatusSuccess returns a green checkmark with optional message.
func StatusSuccess(msg string) string {
	if msg == "" {
		return Success(SymbolSuccess)
	}
	return Success(SymbolSuccess) + " " + msg
}

// StatusError returns a red X with optional message.
func StatusError(msg string) string {
	if msg == "" {
		return Error(SymbolError)
	}
	return Error(SymbolError) + " " + msg
}

// StatusWarning returns a yellow warning with optional message.
func StatusWarning(msg string) string {
	if msg == "" {
		return Warning(SymbolWarning)
	}
	return Warning(SymbolWarning) + " " + msg
}

// StatusSkipped returns a dimmed skip symbol with optional message.
func StatusSkipped(msg string) string {
	if msg == "" {
		return Dim(SymbolSkipped)
	}
	return Dim(SymbolSkipped) + " " + msg
}

// DisableColors disables all color output.
// This is useful for piping output or for users who prefer no colors.
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output.
func EnableColors() {
	color.NoColor = false
}

// IsColorEnabled returns whether colors are currently enabled.
func IsColorEnabled() bool {
	return !color.NoColor
}
