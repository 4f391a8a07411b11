// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/clishell/clishell/internal/config"
	"github.com/clishell/clishell/internal/issue"
)

// newConfigCommand creates the `clishell config` command tree.
func newConfigCommand(app *App, root *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage clishell configuration",
		Long: `Manage clishell configuration.

Configuration is read from the first of:
  - the file given with --config
  - Linux: $XDG_CONFIG_HOME/clishell/config.cue (~/.config/clishell/config.cue)
  - macOS: ~/Library/Application Support/clishell/config.cue
  - Windows: %APPDATA%\clishell\config.cue
  - ./config.cue

CLISHELL_* environment variables override file values, for example
CLISHELL_SHELL_PROMPT.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.Context(), app, root)
		},
	})

	var (
		force bool
		dir   string
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(app, root, dir, force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	initCmd.Flags().StringVar(&dir, "dir", "", "directory to write into (default is the platform config directory)")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration directory and the file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfigPath(cmd.Context(), app, root)
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App, root *rootFlags) error {
	cfg, path, err := app.Config.Load(ctx, config.LoadOptions{FilePath: root.configPath})
	if err != nil {
		return app.fail(err, root)
	}
	if path == "" {
		fmt.Fprintln(app.stdout, "// no config file found, showing defaults")
	} else {
		fmt.Fprintf(app.stdout, "// loaded from %s\n", path)
	}
	fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
	return nil
}

func initConfig(app *App, root *rootFlags, dir string, force bool) error {
	path, err := config.Init(dir, force)
	if errors.Is(err, config.ErrConfigExists) {
		return app.fail(issue.NewErrorContext().
			WithOperation("create configuration").
			WithResource(path).
			WithSuggestion("Use --force to overwrite it").
			Wrap(err).
			BuildError(), root)
	}
	if err != nil {
		return app.fail(err, root)
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(ctx context.Context, app *App, root *rootFlags) error {
	dir, err := config.Dir()
	if err != nil {
		return app.fail(err, root)
	}
	fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("Config directory:"), dir)
	fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("Default file:"), filepath.Join(dir, config.FileName+"."+config.FileExt))

	_, path, err := app.Config.Load(ctx, config.LoadOptions{FilePath: root.configPath})
	switch {
	case err != nil:
		fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("In use:"), ErrorStyle.Render(err.Error()))
	case path == "":
		fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("In use:"), SubtitleStyle.Render("(defaults)"))
	default:
		fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("In use:"), path)
	}
	return nil
}
