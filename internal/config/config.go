// Package config provides configuration management for marksync.
// It supports YAML and TOML project files, environment variables, and sensible defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/klauern/marksync/internal/marker"
	"github.com/klauern/marksync/internal/table"
	"github.com/klauern/marksync/internal/util"
)

// FileNames lists the project file names searched by Find, in priority order.
var FileNames = []string{
	"marksync.yaml",
	"marksync.yml",
	"marksync.toml",
	".marksync.yaml",
}

// Config represents a marksync project file.
type Config struct {
	// Syntax configures how marker tokens are spelled
	Syntax SyntaxConfig `yaml:"syntax" toml:"syntax"`

	// Backup configures copies taken before a destination is rewritten
	Backup BackupConfig `yaml:"backup" toml:"backup"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output" toml:"output"`

	// Rules maps each destination file to the source it mirrors
	Rules map[string]RuleConfig `yaml:"rules" toml:"rules"`

	// Dir is the directory of the loaded file. Relative rule paths resolve against it.
	Dir string `yaml:"-" toml:"-"`
}

// SyntaxConfig holds the marker spelling.
type SyntaxConfig struct {
	// Comment is the line comment leader, e.g. "//" or "#"
	Comment string `yaml:"comment" toml:"comment"`
	Begin   string `yaml:"begin" toml:"begin"`
	End     string `yaml:"end" toml:"end"`
}

// BackupConfig holds backup settings.
type BackupConfig struct {
	// Enabled enables backups before a destination is rewritten
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// Location is the backup directory, relative to the project directory unless absolute
	Location string `yaml:"location" toml:"location"`
	// MaxBackups is the number of backups kept per destination; 0 keeps all
	MaxBackups int `yaml:"max_backups" toml:"max_backups"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Color controls color output (auto, always, never)
	Color string `yaml:"color" toml:"color"`
	// Diff prints line hunks for drifted marks
	Diff bool `yaml:"diff" toml:"diff"`
	// Quiet replaces per-rule lines with a progress bar and a summary
	Quiet bool `yaml:"quiet" toml:"quiet"`
}

// RuleConfig is one entry of the rules table. In a file it is either a plain
// source path or a mapping with source, family and marks.
type RuleConfig struct {
	Source string   `yaml:"source" toml:"source"`
	Family string   `yaml:"family,omitempty" toml:"family,omitempty"`
	Marks  []string `yaml:"marks,omitempty" toml:"marks,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	syntax := marker.DefaultSyntax()
	return &Config{
		Syntax: SyntaxConfig{
			Comment: syntax.Comment,
			Begin:   syntax.Begin,
			End:     syntax.End,
		},
		Backup: BackupConfig{
			Enabled:    true,
			Location:   filepath.Join(".marksync", "backups"),
			MaxBackups: 10,
		},
		Output: OutputConfig{
			Color: "auto",
		},
		Rules: map[string]RuleConfig{},
	}
}

// Find looks for a project file in dir and its parents. It returns "" when
// none exists.
func Find(dir string) string {
	return util.FindUp(dir, FileNames...)
}

// Load loads the project file at path, merging it over defaults. The format
// is chosen by extension: .toml is TOML, anything else is YAML.
func Load(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.Dir = abs
	} else {
		cfg.Dir = filepath.Dir(path)
	}

	cfg.applyEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SaveToPath writes the configuration to path, as TOML when the extension is
// .toml and YAML otherwise.
func (c *Config) SaveToPath(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(c)
		if err != nil {
			return err
		}
	}

	// #nosec G306 - project file is meant to be committed and shared
	return os.WriteFile(path, data, 0o644)
}

// Validate checks settings that cannot be fixed up silently.
func (c *Config) Validate() error {
	if err := c.MarkerSyntax().Validate(); err != nil {
		return err
	}
	switch c.Output.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("output.color: invalid value %q (want auto, always or never)", c.Output.Color)
	}
	if c.Backup.MaxBackups < 0 {
		return errors.New("backup.max_backups must not be negative")
	}
	dests := make([]string, 0, len(c.Rules))
	for dest := range c.Rules {
		dests = append(dests, dest)
	}
	sort.Strings(dests)
	for _, dest := range dests {
		rc := c.Rules[dest]
		family, err := marker.ParseFamily(rc.Family)
		if err != nil {
			return fmt.Errorf("rules.%s: %w", dest, err)
		}
		// Mark counts and names are checked the way a run would build the rule.
		if _, err := marker.New(marker.Spec{Family: family, Syntax: c.MarkerSyntax(), Marks: rc.Marks}); err != nil {
			return fmt.Errorf("rules.%s: %w", dest, err)
		}
	}
	return nil
}

// MarkerSyntax returns the configured marker spelling.
func (c *Config) MarkerSyntax() marker.Syntax {
	return marker.Syntax{
		Comment: c.Syntax.Comment,
		Begin:   c.Syntax.Begin,
		End:     c.Syntax.End,
	}
}

// Table builds the validated sync table from the rules section. Relative
// rule paths are resolved against the project directory.
func (c *Config) Table() (*table.Table, error) {
	rules := make([]table.Rule, 0, len(c.Rules))
	for dest, rc := range c.Rules {
		rules = append(rules, table.Rule{
			Destination: dest,
			Source:      rc.Source,
			Family:      marker.Family(strings.ToLower(strings.TrimSpace(rc.Family))),
			Marks:       rc.Marks,
		})
	}
	return table.NewAt(c.Dir, rules)
}

// BackupDir returns the backup directory, resolved against the project directory.
func (c *Config) BackupDir() string {
	return util.ExpandPath(c.Backup.Location, c.Dir)
}

// UnmarshalYAML accepts either a source path or a mapping.
func (r *RuleConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.Source = value.Value
		return nil
	}
	type plain RuleConfig
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*r = RuleConfig(p)
	return nil
}

// MarshalYAML writes rules without family or marks in the short form.
func (r RuleConfig) MarshalYAML() (any, error) {
	if r.Family == "" && len(r.Marks) == 0 {
		return r.Source, nil
	}
	type plain RuleConfig
	return plain(r), nil
}

// UnmarshalTOML accepts either a source path or an inline table.
func (r *RuleConfig) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		r.Source = v
		return nil
	case map[string]any:
		for key, val := range v {
			switch key {
			case "source":
				s, ok := val.(string)
				if !ok {
					return fmt.Errorf("rule source must be a string, got %T", val)
				}
				r.Source = s
			case "family":
				s, ok := val.(string)
				if !ok {
					return fmt.Errorf("rule family must be a string, got %T", val)
				}
				r.Family = s
			case "marks":
				list, ok := val.([]any)
				if !ok {
					return fmt.Errorf("rule marks must be an array, got %T", val)
				}
				r.Marks = make([]string, 0, len(list))
				for _, item := range list {
					s, ok := item.(string)
					if !ok {
						return fmt.Errorf("rule mark must be a string, got %T", item)
					}
					r.Marks = append(r.Marks, s)
				}
			default:
				return fmt.Errorf("unknown rule key %q", key)
			}
		}
		return nil
	default:
		return fmt.Errorf("rule must be a path or a table, got %T", data)
	}
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern MARKSYNC_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	// Syntax settings
	if v := os.Getenv("MARKSYNC_SYNTAX_COMMENT"); v != "" {
		c.Syntax.Comment = v
	}
	if v := os.Getenv("MARKSYNC_SYNTAX_BEGIN"); v != "" {
		c.Syntax.Begin = v
	}
	if v := os.Getenv("MARKSYNC_SYNTAX_END"); v != "" {
		c.Syntax.End = v
	}

	// Backup settings
	if v := os.Getenv("MARKSYNC_BACKUP_ENABLED"); v != "" {
		c.Backup.Enabled = parseBool(v)
	}
	if v := os.Getenv("MARKSYNC_BACKUP_LOCATION"); v != "" {
		c.Backup.Location = v
	}
	if v := os.Getenv("MARKSYNC_BACKUP_MAX_BACKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Backup.MaxBackups = n
		}
	}

	// Output settings
	if v := os.Getenv("MARKSYNC_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("MARKSYNC_OUTPUT_DIFF"); v != "" {
		c.Output.Diff = parseBool(v)
	}
	if v := os.Getenv("MARKSYNC_OUTPUT_QUIET"); v != "" {
		c.Output.Quiet = parseBool(v)
	}
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
