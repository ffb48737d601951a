package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/klauern/marksync/internal/config"
	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/ui"
)

// loadProject locates and loads the project file named by --config, or the
// nearest one above --root (or the working directory). --root replaces the
// project file's directory as the base for rule paths.
func loadProject(cmd *cli.Command) (*config.Config, error) {
	root := cmd.String("root")
	path := cmd.String("config")

	if path == "" {
		start := root
		if start == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get working directory: %w", err)
			}
			start = wd
		}
		path = config.Find(start)
		if path == "" {
			return nil, ErrNoProject
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load project file: %w", err)
	}

	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("invalid root %q: %w", root, err)
		}
		cfg.Dir = abs
	}

	applyColorSetting(cmd, cfg.Output.Color)

	logging.Debug("project loaded",
		logging.Path(path),
		logging.Count(len(cfg.Rules)),
	)
	return cfg, nil
}

// applyColorSetting honors output.color unless --no-color was given.
func applyColorSetting(cmd *cli.Command, setting string) {
	if cmd.Bool("no-color") {
		return
	}
	switch setting {
	case "never":
		ui.DisableColors()
	case "always":
		ui.EnableColors()
	}
}
