package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/klauern/marksync/internal/backup"
	"github.com/klauern/marksync/internal/config"
	"github.com/klauern/marksync/internal/export"
	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/progress"
	"github.com/klauern/marksync/internal/sync"
	"github.com/klauern/marksync/internal/table"
	"github.com/klauern/marksync/internal/ui"
	"github.com/klauern/marksync/internal/validation"
)

// syncAction runs the project's sync table.
func syncAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Present() {
		return fmt.Errorf("unknown command %q", cmd.Args().First())
	}

	format, err := reportFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	cfg, err := loadProject(cmd)
	if err != nil {
		return err
	}

	tbl, err := cfg.Table()
	if err != nil {
		return fmt.Errorf("invalid sync table: %w", err)
	}

	check := cmd.Bool("check")
	showDiff := cmd.Bool("diff") || cfg.Output.Diff
	quiet := cmd.Bool("quiet") || cfg.Output.Quiet

	if err := preflight(cfg, tbl, !check, cmd.Bool("strict")); err != nil {
		return err
	}

	var store *backup.Store
	if !check && cfg.Backup.Enabled && !cmd.Bool("no-backup") {
		store = backup.NewStore(cfg.BackupDir())
	}

	// A structured report owns stdout.
	var out io.Writer = os.Stdout
	if format != "" {
		out = io.Discard
		quiet = false
	}
	console := ui.NewConsole(out, showDiff)

	var reporter sync.Reporter = console
	var bar *progress.Rules
	if quiet {
		bar = progress.New(progress.Options{
			Total:       tbl.Len(),
			Description: "Syncing",
		})
		reporter = bar
	}

	orchestrator := sync.New(sync.Options{
		Root:     cfg.Dir,
		Check:    check,
		Diff:     showDiff,
		Syntax:   cfg.MarkerSyntax(),
		Backups:  store,
		Reporter: reporter,
	})

	result, runErr := orchestrator.Run(ctx, tbl)

	if bar != nil {
		_ = bar.Finish()
		for _, rr := range bar.Notable() {
			console.Report(rr)
		}
	}

	if runErr != nil {
		return fmt.Errorf("sync aborted: %w", runErr)
	}

	console.Summary(result)

	if format != "" {
		exporter := export.New(export.Options{
			Format:        format,
			IncludeHunks:  showDiff,
			IncludeSynced: true,
		})
		if err := exporter.Export(result, os.Stdout); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if store != nil && len(result.Syncing()) > 0 {
		pruneBackups(store, cfg.Backup.MaxBackups)
	}

	switch {
	case !result.Success():
		return ErrRulesFailed
	case result.DriftFound():
		return ErrDriftDetected
	}
	return nil
}

// reportFormat parses the --format flag. Text selects the console reporter
// and yields an empty format.
func reportFormat(s string) (export.Format, error) {
	if s == "" || strings.EqualFold(s, "text") {
		return "", nil
	}
	return export.ParseFormat(s)
}

// preflight checks every file the table names before any rule runs.
func preflight(cfg *config.Config, tbl *table.Table, write, strict bool) error {
	result := validation.Table(cfg.Dir, tbl, validation.Options{
		RequireWritePermission: write,
		StrictMode:             strict,
		Syntax:                 cfg.MarkerSyntax(),
	})
	for _, w := range result.Warnings {
		logging.Warn(w, logging.Operation("preflight"))
	}
	if err := result.Error(); err != nil {
		return fmt.Errorf("sync table check failed: %w", err)
	}
	logging.Debug(result.Summary(), logging.Count(tbl.Len()))
	return nil
}

// pruneBackups applies the retention limit after a run. Failures are logged,
// since the sync itself already succeeded.
func pruneBackups(store *backup.Store, maxBackups int) {
	if maxBackups <= 0 {
		return
	}
	opts := backup.DefaultCleanupOptions()
	opts.MaxBackups = maxBackups
	opts.MaxAge = 0

	deleted, err := store.Cleanup(opts)
	if err != nil && !errors.Is(err, backup.ErrNotFound) {
		logging.Warn("backup cleanup failed", logging.Err(err))
		return
	}
	if len(deleted) > 0 {
		logging.Info("pruned old backups", logging.Count(len(deleted)))
	}
}
