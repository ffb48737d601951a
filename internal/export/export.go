// Package export writes the result of a sync run in machine-readable or
// Markdown form.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/klauern/marksync/internal/diff"
	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/sync"
)

// Format represents the output format for a run report.
type Format string

const (
	// FormatJSON writes the report as JSON.
	FormatJSON Format = "json"
	// FormatYAML writes the report as YAML.
	FormatYAML Format = "yaml"
	// FormatMarkdown writes the report as Markdown, e.g. for a CI comment.
	FormatMarkdown Format = "markdown"
)

// IsValid returns true if the format is recognized.
func (f Format) IsValid() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatMarkdown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// ParseFormat parses a string into a Format.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(s)))
	if format == "md" {
		format = FormatMarkdown
	}
	if !format.IsValid() {
		return "", fmt.Errorf("unsupported format %q (valid: json, yaml, markdown)", s)
	}
	return format, nil
}

// Options configures export behavior.
type Options struct {
	// Format specifies the output format.
	Format Format
	// IncludeHunks includes line hunks of drifted marks.
	IncludeHunks bool
	// IncludeSynced includes rules that needed no change.
	IncludeSynced bool
}

// DefaultOptions returns the default export options.
func DefaultOptions() Options {
	return Options{
		Format:        FormatJSON,
		IncludeSynced: true,
	}
}

// Exporter writes run reports.
type Exporter struct {
	opts Options
}

// New creates a new Exporter with the given options.
func New(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

// Report is the exported form of a run.
type Report struct {
	Check   bool         `json:"check" yaml:"check"`
	InSync  bool         `json:"in_sync" yaml:"in_sync"`
	Summary Summary      `json:"summary" yaml:"summary"`
	Rules   []RuleReport `json:"rules" yaml:"rules"`
}

// Summary counts rules per outcome.
type Summary struct {
	Synced   int `json:"synced" yaml:"synced"`
	Unsynced int `json:"unsynced" yaml:"unsynced"`
	Syncing  int `json:"syncing" yaml:"syncing"`
	Failed   int `json:"failed" yaml:"failed"`
}

// RuleReport is the exported form of one rule's result.
type RuleReport struct {
	Destination string       `json:"destination" yaml:"destination"`
	Source      string       `json:"source" yaml:"source"`
	Family      string       `json:"family" yaml:"family"`
	Outcome     string       `json:"outcome" yaml:"outcome"`
	State       string       `json:"state" yaml:"state"`
	Error       string       `json:"error,omitempty" yaml:"error,omitempty"`
	Backup      string       `json:"backup,omitempty" yaml:"backup,omitempty"`
	Marks       []MarkReport `json:"marks,omitempty" yaml:"marks,omitempty"`
}

// MarkReport is the exported form of one mark's comparison.
type MarkReport struct {
	Key   string   `json:"key" yaml:"key"`
	State string   `json:"state" yaml:"state"`
	Diff  []string `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// Build converts a run result to its exported form.
func (e *Exporter) Build(result *sync.Result) Report {
	report := Report{
		Check:  result.Check,
		InSync: result.InSync(),
		Summary: Summary{
			Synced:   len(result.Synced()),
			Unsynced: len(result.Unsynced()),
			Syncing:  len(result.Syncing()),
			Failed:   len(result.Failed()),
		},
		Rules: make([]RuleReport, 0, len(result.Rules)),
	}

	for _, rr := range result.Rules {
		if rr.Outcome == sync.OutcomeSynced && !e.opts.IncludeSynced {
			continue
		}
		report.Rules = append(report.Rules, e.rule(rr))
	}
	return report
}

func (e *Exporter) rule(rr sync.RuleResult) RuleReport {
	out := RuleReport{
		Destination: rr.Rule.Destination,
		Source:      rr.Rule.Source,
		Family:      string(rr.Rule.Family),
		Outcome:     string(rr.Outcome),
		State:       string(rr.State),
	}
	if rr.Error != nil {
		out.Error = rr.Error.Error()
	}
	if rr.Backup != nil {
		out.Backup = rr.Backup.ID
	}
	if rr.Report == nil {
		return out
	}
	for _, m := range rr.Report.Marks {
		mr := MarkReport{Key: m.Key, State: string(m.State)}
		if e.opts.IncludeHunks {
			mr.Diff = hunkLines(m.Hunks)
		}
		out.Marks = append(out.Marks, mr)
	}
	return out
}

func hunkLines(hunks []diff.Hunk) []string {
	var lines []string
	for _, h := range hunks {
		lines = append(lines, h.Header())
		for _, l := range h.Lines {
			lines = append(lines, l.String())
		}
	}
	return lines
}

// Export writes the run report to w in the configured format.
func (e *Exporter) Export(result *sync.Result, w io.Writer) error {
	defer logging.Timer("export")()

	report := e.Build(result)

	logging.Debug("starting export",
		slog.String("format", string(e.opts.Format)),
		logging.Count(len(report.Rules)),
		logging.Operation("export"),
	)

	var err error
	switch e.opts.Format {
	case FormatJSON:
		err = exportJSON(report, w)
	case FormatYAML:
		err = exportYAML(report, w)
	case FormatMarkdown:
		err = exportMarkdown(report, w)
	default:
		err = fmt.Errorf("unsupported format: %s", e.opts.Format)
	}

	if err != nil {
		logging.Error("export failed",
			slog.String("format", string(e.opts.Format)),
			logging.Err(err),
		)
		return err
	}
	return nil
}

func exportJSON(report Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func exportYAML(report Report, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(report); err != nil {
		_ = encoder.Close()
		return err
	}
	return encoder.Close()
}

func exportMarkdown(report Report, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("# marksync report\n\n")
	if report.Check {
		sb.WriteString("Check only - no files modified.\n\n")
	}
	sb.WriteString(fmt.Sprintf("Synced: %d, Unsynced: %d, Syncing: %d, Failed: %d\n\n",
		report.Summary.Synced, report.Summary.Unsynced, report.Summary.Syncing, report.Summary.Failed))

	if len(report.Rules) == 0 {
		sb.WriteString("*No rules to report*\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	sb.WriteString("| Destination | Source | Outcome | Marks |\n")
	sb.WriteString("|-------------|--------|---------|-------|\n")
	for _, r := range report.Rules {
		var marks []string
		for _, m := range r.Marks {
			marks = append(marks, fmt.Sprintf("%s (%s)", m.Key, m.State))
		}
		outcome := r.Outcome
		if r.Error != "" {
			outcome += ": " + strings.ReplaceAll(r.Error, "|", "\\|")
		}
		sb.WriteString(fmt.Sprintf("| `%s` | `%s` | %s | %s |\n", r.Destination, r.Source, outcome, strings.Join(marks, ", ")))
	}

	for _, r := range report.Rules {
		for _, m := range r.Marks {
			if len(m.Diff) == 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf("\n### `%s` %s\n\n```diff\n", r.Destination, m.Key))
			sb.WriteString(strings.Join(m.Diff, "\n"))
			sb.WriteString("\n```\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
