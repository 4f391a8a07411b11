// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clishell/clishell/internal/issue"
	"github.com/clishell/clishell/internal/script"
)

type scriptFlags struct {
	retain bool
	handle string
}

// newScriptCommand creates the `clishell script` command.
func newScriptCommand(app *App, root *rootFlags) *cobra.Command {
	flags := &scriptFlags{}
	cmd := &cobra.Command{
		Use:   "script [-r] [-e <handle>] <path>...",
		Short: "Run script files in one session",
		Long: `Run script files in order inside one session.

With --retain the scripts share one retained environment, so functions and
variables defined by an earlier script are visible to later ones. Without it
every script runs in a throwaway environment.

Scripts call back into the shell with dispatchCommand, getPluginInstance,
print and println.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScripts(cmd.Context(), app, root, flags, args)
		},
	}
	cmd.Flags().BoolVarP(&flags.retain, "retain", "r", false, "keep the scripts' bindings in the environment")
	cmd.Flags().StringVarP(&flags.handle, "env", "e", "", "environment handle (default is the session ID)")
	return cmd
}

func runScripts(ctx context.Context, app *App, root *rootFlags, flags *scriptFlags, paths []string) error {
	sh, err := app.Open(ctx, root)
	if err != nil {
		return app.fail(err, root)
	}
	defer sh.Close()

	sess := sh.NewSession("")
	defer sess.Close()

	handle := flags.handle
	if handle == "" {
		handle = sess.SessionID()
	}
	retain := flags.retain || sh.Config.Scripting.DefaultRetain

	for _, path := range paths {
		err := sess.Scripts().RunFile(ctx, path, handle, retain, app.stdio())
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return app.fail(scriptError(path, err), root)
	}
	return nil
}

func scriptError(path string, err error) error {
	ec := issue.NewErrorContext().
		WithOperation("load script").
		WithResource(path).
		Wrap(err)
	switch {
	case errors.Is(err, os.ErrNotExist):
		ec.WithSuggestion("Check the script path")
	case errors.Is(err, script.ErrScriptTooLarge):
		ec.WithSuggestion(fmt.Sprintf("Raise scripting.max_script_bytes or split %s", path))
	case errors.Is(err, script.ErrSyntax):
		ec.WithSuggestion("Fix the syntax error; nothing in the script ran")
	case script.IsUndefinedBinding(err):
		ec.WithSuggestion("Load the script defining it first with --retain, or check the --env handle")
	}
	return ec.BuildError()
}
