package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/klauern/marksync/internal/config"
	"github.com/klauern/marksync/internal/marker"
	"github.com/klauern/marksync/internal/region"
	"github.com/klauern/marksync/internal/ui"
)

func rulesCommand() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "List the sync table in execution order",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadProject(cmd)
			if err != nil {
				return err
			}
			tbl, err := cfg.Table()
			if err != nil {
				return fmt.Errorf("invalid sync table: %w", err)
			}
			fmt.Print(ui.RenderRules(tbl.Rules()))
			return nil
		},
	}
}

func marksCommand() *cli.Command {
	return &cli.Command{
		Name:      "marks",
		Usage:     "List the marked regions found in a file",
		UsageText: "marksync marks [options] <file>",
		Description: `Show every region a marker family finds in a file, or print one region.

   Examples:
     marksync marks src/timer/timer8.rs
     marksync marks --family literal src/uart/usart.rs
     marksync marks --mark sync2 src/timer/timer8.rs`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "family",
				Aliases: []string{"f"},
				Usage:   "Marker family: literal, qualified, pattern, chained",
				Value:   string(marker.FamilyPattern),
			},
			&cli.StringSliceFlag{
				Name:    "mark",
				Aliases: []string{"m"},
				Usage:   "Restrict to the named mark; with a single mark, print its region",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("marks requires exactly 1 argument: <file>")
			}
			path := cmd.Args().First()

			family, err := marker.ParseFamily(cmd.String("family"))
			if err != nil {
				return err
			}

			syntax, err := projectSyntax(cmd)
			if err != nil {
				return err
			}

			marks := cmd.StringSlice("mark")
			res, err := marker.New(marker.Spec{Family: family, Syntax: syntax, Marks: marks})
			if err != nil {
				return err
			}

			// #nosec G304 - path is provided by the user
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			doc := string(data)

			if len(marks) == 1 {
				split, err := region.Extract(doc, res, marks[0])
				if err != nil {
					return err
				}
				if !split.Found {
					return fmt.Errorf("%s: %w: %s", path, region.ErrMarkNotFound, marks[0])
				}
				fmt.Println(split.Region)
				return nil
			}

			spans, err := region.Spans(doc, res)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Print(ui.RenderSpans(path, doc, spans))
			return nil
		},
	}
}

// projectSyntax returns the marker syntax of the project, or the default
// syntax when there is no project file.
func projectSyntax(cmd *cli.Command) (marker.Syntax, error) {
	cfg, err := loadProject(cmd)
	if errors.Is(err, ErrNoProject) {
		return marker.DefaultSyntax(), nil
	}
	if err != nil {
		return marker.Syntax{}, err
	}
	return cfg.MarkerSyntax(), nil
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a project file with default settings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Project file format: yaml or toml",
				Value: "yaml",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing project file",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			var name string
			switch cmd.String("format") {
			case "yaml", "yml":
				name = "marksync.yaml"
			case "toml":
				name = "marksync.toml"
			default:
				return fmt.Errorf("unsupported format %q (want yaml or toml)", cmd.String("format"))
			}

			dir := cmd.String("root")
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get working directory: %w", err)
				}
				dir = wd
			}
			path := filepath.Join(dir, name)

			if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.Default().SaveToPath(path); err != nil {
				return fmt.Errorf("failed to write project file: %w", err)
			}
			fmt.Println(ui.StatusSuccess("Created " + path))
			return nil
		},
	}
}
