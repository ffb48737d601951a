// Package validation provides pre-flight checks for a sync table. The checks
// run after the table is built and before any rule is processed, so a run
// that is bound to fail on a missing or unwritable file fails without
// touching anything.
package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauern/marksync/internal/marker"
	"github.com/klauern/marksync/internal/region"
	"github.com/klauern/marksync/internal/table"
)

// Error represents a validation failure with context.
type Error struct {
	// Field is the path or component that failed validation
	Field string
	// Message describes the validation failure
	Message string
	// Err is the underlying error (if any)
	Err error
}

// Error returns a formatted validation error message.
func (ve *Error) Error() string {
	if ve.Err != nil {
		return fmt.Sprintf("validation failed for %q: %s: %v", ve.Field, ve.Message, ve.Err)
	}
	return fmt.Sprintf("validation failed for %q: %s", ve.Field, ve.Message)
}

// Unwrap returns the underlying error for errors.Is/As.
func (ve *Error) Unwrap() error {
	return ve.Err
}

// Errors collects multiple validation errors.
type Errors []error

// Error returns a formatted error message for all validation failures.
func (ve Errors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	return fmt.Sprintf("%d validation errors:\n- %s", len(ve), errors.Join(ve...))
}

// Unwrap exposes every collected error to errors.Is/As.
func (ve Errors) Unwrap() []error {
	return ve
}

// Options configures validation behavior.
type Options struct {
	// RequireWritePermission checks that every destination can be opened
	// for writing. Only needed when the run may rewrite files.
	RequireWritePermission bool
	// StrictMode warns about rules whose files hold no marks of the rule's family.
	StrictMode bool
	// Syntax is the marker spelling used in strict mode.
	Syntax marker.Syntax
}

// DefaultOptions returns the default validation options.
func DefaultOptions() Options {
	return Options{
		RequireWritePermission: true,
		StrictMode:             false,
		Syntax:                 marker.DefaultSyntax(),
	}
}

// Result contains the outcome of a validation check.
type Result struct {
	// Valid indicates whether all validations passed
	Valid bool
	// Warnings contains non-fatal validation issues
	Warnings []string
	// Errors contains validation failures that prevent the operation
	Errors []error
}

// AddError adds an error to the validation result.
func (r *Result) AddError(err error) {
	r.Valid = false
	r.Errors = append(r.Errors, err)
}

// AddWarning adds a warning to the validation result.
func (r *Result) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// HasErrors returns true if there are any validation errors.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns the combined validation error.
func (r *Result) Error() error {
	if !r.HasErrors() {
		return nil
	}
	if len(r.Errors) == 1 {
		return r.Errors[0]
	}
	return Errors(r.Errors)
}

// Summary returns a human-readable summary of the validation result.
func (r *Result) Summary() string {
	if r.Valid && len(r.Warnings) == 0 {
		return "All validations passed"
	}
	var msg string
	if r.Valid {
		msg = "Validation passed with warnings"
	} else {
		msg = "Validation failed"
	}
	if len(r.Warnings) > 0 {
		msg += fmt.Sprintf(" (%d warning(s))", len(r.Warnings))
	}
	return msg
}

// Table checks every file named by the rules of t, resolving relative paths
// against root. Each path is checked once even when several rules share it.
func Table(root string, t *table.Table, opts Options) *Result {
	result := &Result{Valid: true}
	if opts.Syntax == (marker.Syntax{}) {
		opts.Syntax = marker.DefaultSyntax()
	}

	checked := make(map[string]bool)
	check := func(p string, dest bool) {
		if checked[p] {
			return
		}
		checked[p] = true

		full := resolve(root, p)
		if err := ValidatePath(full); err != nil {
			result.AddError(err)
			return
		}
		if escapesRoot(root, full) {
			result.AddWarning(fmt.Sprintf("%s is outside the project root", p))
		}
		if dest && opts.RequireWritePermission {
			if err := validateWritePermission(full); err != nil {
				result.AddError(err)
			}
		}
	}

	for _, rule := range t.Rules() {
		check(rule.Destination, true)
		check(rule.Source, false)
	}

	if opts.StrictMode && !result.HasErrors() {
		for _, rule := range t.Rules() {
			if msg := checkMarks(root, rule, opts.Syntax); msg != "" {
				result.AddWarning(msg)
			}
		}
	}

	if t.Len() == 0 {
		result.AddWarning("No rules to sync")
	}

	return result
}

// ValidatePath checks that path names an existing regular file.
func ValidatePath(path string) error {
	if path == "" {
		return &Error{
			Field:   "path",
			Message: "path cannot be empty",
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Error{
				Field:   path,
				Message: "file does not exist",
				Err:     err,
			}
		}
		return &Error{
			Field:   path,
			Message: "cannot access file",
			Err:     err,
		}
	}

	if !info.Mode().IsRegular() {
		return &Error{
			Field:   path,
			Message: "not a regular file",
		}
	}

	return nil
}

// validateWritePermission opens the file for writing without truncating it.
func validateWritePermission(path string) error {
	// #nosec G304 - path comes from the sync table
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return &Error{
			Field:   path,
			Message: "destination is not writable",
			Err:     err,
		}
	}
	return f.Close()
}

// checkMarks returns a warning when the source of rule holds no marks the
// rule would sync.
func checkMarks(root string, rule table.Rule, syntax marker.Syntax) string {
	res, err := rule.Resolver(syntax)
	if err != nil {
		return ""
	}
	// #nosec G304 - path comes from the sync table
	data, err := os.ReadFile(resolve(root, rule.Source))
	if err != nil {
		return ""
	}
	spans, err := region.Spans(string(data), res)
	if err != nil || len(spans) > 0 {
		return ""
	}
	return fmt.Sprintf("%s has no %s marks for %s", rule.Source, rule.Family, rule.Destination)
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}

func escapesRoot(root, full string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
