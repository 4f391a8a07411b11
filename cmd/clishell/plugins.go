// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// newPluginsCommand creates the `clishell plugins` command.
func newPluginsCommand(app *App, root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List registered plugins and their commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listPlugins(cmd.Context(), app, root)
		},
	}
}

func listPlugins(ctx context.Context, app *App, root *rootFlags) error {
	sh, err := app.Open(ctx, root)
	if err != nil {
		return app.fail(err, root)
	}
	defer sh.Close()

	indent := lipgloss.NewStyle().PaddingLeft(2)
	names := sh.Registry.Names()
	if len(names) == 0 {
		fmt.Fprintln(app.stdout, WarningStyle.Render("no plugins registered"))
		return nil
	}
	for _, name := range names {
		info, ok := sh.Registry.Info(name)
		if !ok {
			continue
		}
		fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render(info.Name), SubtitleStyle.Render(info.Version))
		fmt.Fprintln(app.stdout, indent.Render(CmdStyle.Render(strings.Join(info.Commands, " "))))
		if len(info.Methods) > 0 {
			fmt.Fprintln(app.stdout, indent.Render(SubtitleStyle.Render("methods: ")+strings.Join(info.Methods, " ")))
		}
	}
	return nil
}
