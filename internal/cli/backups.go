package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/klauern/marksync/internal/backup"
	"github.com/klauern/marksync/internal/ui"
)

func backupsCommand() *cli.Command {
	return &cli.Command{
		Name:  "backups",
		Usage: "List and restore copies taken before destinations were rewritten",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List backups, newest first",
				UsageText: "marksync backups list [file]",
				Action: func(_ context.Context, cmd *cli.Command) error {
					store, dir, err := projectStore(cmd)
					if err != nil {
						return err
					}

					var filter string
					if cmd.Args().Present() {
						filter = resolve(dir, cmd.Args().First())
					}

					backups, err := store.List(filter)
					if err != nil {
						return err
					}
					if len(backups) == 0 {
						fmt.Println(ui.Dim("No backups found"))
						return nil
					}

					for _, b := range backups {
						rel, relErr := filepath.Rel(dir, b.SourcePath)
						if relErr != nil {
							rel = b.SourcePath
						}
						fmt.Printf("%s  %s  %s\n",
							ui.Bold(b.ID),
							b.CreatedAt.Local().Format("2006-01-02 15:04:05"),
							rel,
						)
					}
					return nil
				},
			},
			{
				Name:      "restore",
				Usage:     "Restore a backup over its original file",
				UsageText: "marksync backups restore [--to path] <id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "to",
						Usage: "Write the backup to this path instead of the original location",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return errors.New("restore requires exactly 1 argument: <id>")
					}
					store, dir, err := projectStore(cmd)
					if err != nil {
						return err
					}

					id := cmd.Args().First()
					var target string
					if to := cmd.String("to"); to != "" {
						target = resolve(dir, to)
					}
					if err := store.Restore(id, target); err != nil {
						return fmt.Errorf("failed to restore %s: %w", id, err)
					}

					meta, err := store.Get(id)
					if err != nil {
						return err
					}
					if target == "" {
						target = meta.SourcePath
					}
					fmt.Println(ui.StatusSuccess(fmt.Sprintf("Restored %s to %s", id, target)))
					return nil
				},
			},
		},
	}
}

// projectStore opens the backup store of the current project.
func projectStore(cmd *cli.Command) (*backup.Store, string, error) {
	cfg, err := loadProject(cmd)
	if err != nil {
		return nil, "", err
	}
	return backup.NewStore(cfg.BackupDir()), cfg.Dir, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}
