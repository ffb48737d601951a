// Package cli provides the command-line interface for marksync.
package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/ui"
)

var (
	// Version is the current version of the application.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the date and time of the build.
	BuildDate = "unknown"
)

var (
	// ErrDriftDetected is returned when at least one destination differed
	// from its source, whether or not it was rewritten.
	ErrDriftDetected = errors.New("drift detected")

	// ErrRulesFailed is returned when at least one rule could not be evaluated.
	ErrRulesFailed = errors.New("one or more rules failed")

	// ErrNoProject is returned when no project file can be found.
	ErrNoProject = errors.New("no marksync project file found (looked for marksync.yaml, marksync.yml, marksync.toml, .marksync.yaml)")
)

// ExitCode maps an error returned by Run to a process exit status: 0 for
// success, 1 when drift or rule failures were reported, 2 for anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrDriftDetected), errors.Is(err, ErrRulesFailed):
		return 1
	default:
		return 2
	}
}

// Run executes the CLI application with the given context and arguments.
func Run(ctx context.Context, args []string) error {
	app := &cli.Command{
		Name:      "marksync",
		Usage:     "Keep marked regions of files in sync with their canonical source",
		UsageText: "marksync [global options] [command [command options]]",
		Description: `Without a command, marksync runs the sync table of the project file:
   every destination's marked regions are compared with its source and
   rewritten when they drifted.

   Examples:
     marksync --check
     marksync --diff --config tools/marksync.toml
     marksync --check --format json > drift.json`,
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output (info level logging)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug output (debug level logging, implies verbose)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format on stderr: text or json",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Project file (default: search the root directory and its parents)",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "Directory rule paths are relative to (default: the project file's directory)",
			},
			&cli.BoolFlag{
				Name:  "check",
				Usage: "Report drift without modifying any file",
			},
			&cli.BoolFlag{
				Name:  "diff",
				Usage: "Show line hunks for drifted regions",
			},
			&cli.BoolFlag{
				Name:  "no-backup",
				Usage: "Skip backups before rewriting destinations",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Show a progress bar and only report destinations that drifted or failed",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Run report format: text, json, yaml, or markdown",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Warn about rules whose source holds no marks",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			configureColors(cmd)
			logger, err := configureLogging(cmd)
			if err != nil {
				return ctx, err
			}
			return logging.NewContext(ctx, logger), nil
		},
		Action: syncAction,
		Commands: []*cli.Command{
			rulesCommand(),
			marksCommand(),
			initCommand(),
			backupsCommand(),
			versionCommand(),
		},
	}
	return app.Run(ctx, args)
}

// configureColors sets up color output based on CLI flags.
func configureColors(cmd *cli.Command) {
	if cmd.Bool("no-color") {
		ui.DisableColors()
	}
}

// configureLogging installs the default logger from the CLI flags and
// returns it for the run's context.
func configureLogging(cmd *cli.Command) (*slog.Logger, error) {
	format, err := logging.ParseFormat(cmd.String("log-format"))
	if err != nil {
		return nil, err
	}

	opts := logging.DefaultOptions()
	opts.Format = format

	if cmd.Bool("debug") {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	} else if cmd.Bool("verbose") {
		opts.Level = slog.LevelInfo
	} else {
		opts.Level = slog.LevelWarn
	}

	logger := logging.New(opts)
	logging.SetDefault(logger)

	logging.Debug("logging configured",
		slog.String("level", opts.Level.String()),
		slog.String("format", string(opts.Format)),
	)

	return logger, nil
}
