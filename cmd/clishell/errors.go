// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/clishell/clishell/internal/config"
	"github.com/clishell/clishell/internal/issue"
	"github.com/clishell/clishell/internal/plugin"
	"github.com/clishell/clishell/internal/script"
	"github.com/clishell/clishell/internal/sshserver"
)

// classifyError maps a top-level failure to its issue catalog entry.
func classifyError(err error) issue.Id {
	var ae *issue.ActionableError
	switch {
	case errors.Is(err, os.ErrPermission):
		return issue.PermissionDeniedId
	case errors.Is(err, script.ErrScriptTooLarge):
		return issue.ScriptTooLargeId
	case errors.Is(err, plugin.ErrUnknownCommand):
		return issue.UnknownCommandId
	case errors.Is(err, plugin.ErrDuplicateName), errors.Is(err, plugin.ErrInvalidPlugin):
		return issue.PluginRegistrationFailedId
	case errors.Is(err, config.ErrInvalidConfig):
		return issue.ConfigLoadFailedId
	case errors.Is(err, sshserver.ErrInvalidConfig):
		return issue.ServeFailedId
	case errors.As(err, &ae):
		switch ae.Operation {
		case "load configuration", "validate configuration":
			return issue.ConfigLoadFailedId
		case "open command file":
			return issue.CommandFileNotFoundId
		case "load script":
			return issue.ScriptLoadFailedId
		case "serve":
			return issue.ServeFailedId
		case "register plugin":
			return issue.PluginRegistrationFailedId
		}
	}
	return 0
}

// formatErrorForDisplay formats an error for user display.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// fail prints err, and in verbose mode the matching issue explanation, then
// returns the exit error for the command.
func (a *App) fail(err error, flags *rootFlags) error {
	fmt.Fprintf(a.stderr, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, flags.verbose))
	if flags.verbose {
		if is := issue.Get(classifyError(err)); is != nil {
			if rendered, rerr := is.Render(a.markdownStyle); rerr == nil {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}
	return &ExitError{Code: 1}
}
