// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/clishell/clishell/internal/session"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	verbose    bool
	configPath string
	commands   []string
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "clishell",
		Short: "An extensible command shell",
		Long: TitleStyle.Render("clishell") + SubtitleStyle.Render(" - An extensible command shell") + `

clishell reads command lines, splits them into words and dispatches them to
the plugin that registered the command. Output can be captured into named
buffers, and scripts run in retained or throwaway environments.

` + SubtitleStyle.Render("Examples:") + `
  clishell                         Start the interactive shell
  clishell -c 'echo hello'         Run one command line
  clishell run setup.cmds          Run every line of a command file
  clishell script -r lib.sh        Load a script and keep its bindings
  clishell serve                   Serve shell sessions over SSH`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(flags.commands) > 0 {
				return runCommands(cmd.Context(), app, flags)
			}
			return runREPL(cmd.Context(), app, flags)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/clishell/config.cue)")
	rootCmd.Flags().StringArrayVarP(&flags.commands, "command", "c", nil, "run a command line and exit (repeatable)")

	rootCmd.AddCommand(
		newRunCommand(app, flags),
		newScriptCommand(app, flags),
		newServeCommand(app, flags),
		newPluginsCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the resulting code.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// runCommands dispatches every -c line in one session.
func runCommands(ctx context.Context, app *App, flags *rootFlags) error {
	sh, err := app.Open(ctx, flags)
	if err != nil {
		return app.fail(err, flags)
	}
	defer sh.Close()

	sess := sh.NewSession("")
	defer sess.Close()

	var failures int
	for _, line := range flags.commands {
		res := sess.Run(ctx, app.stdio(), line)
		if !res.OK() {
			failures++
		}
		if res.Exit {
			break
		}
	}
	return failureExit(failures)
}

// runREPL reads commands from stdin. A terminal gets line editing and the
// configured prompt; any other input is run line by line without one.
func runREPL(ctx context.Context, app *App, flags *rootFlags) error {
	sh, err := app.Open(ctx, flags)
	if err != nil {
		return app.fail(err, flags)
	}
	defer sh.Close()

	sess := sh.NewSession("")
	defer sess.Close()

	opts := sh.LoopOptions()
	if f, ok := app.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return interactive(ctx, app, f, sess, opts)
	}

	opts.Prompt = ""
	opts.Echo = false
	stats, err := sess.Loop(ctx, app.stdin, app.stdio(), opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return failureExit(stats.Failures)
}

func interactive(ctx context.Context, app *App, in *os.File, sess *session.Session, opts session.LoopOptions) error {
	state, err := term.MakeRaw(int(in.Fd()))
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer term.Restore(int(in.Fd()), state)

	rw := struct {
		io.Reader
		io.Writer
	}{in, app.stdout}
	t := term.NewTerminal(rw, CmdStyle.Render(opts.Prompt))
	if f, ok := app.stdout.(*os.File); ok {
		if w, h, err := term.GetSize(int(f.Fd())); err == nil {
			_ = t.SetSize(w, h)
		}
	}

	fmt.Fprintf(t, "%s %s\n", TitleStyle.Render("clishell"), SubtitleStyle.Render(getVersionString()+", type 'help' for commands"))
	_, err = sess.Interactive(ctx, t, opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func failureExit(failures int) error {
	if failures == 0 {
		return nil
	}
	return &ExitError{Code: 1, Err: fmt.Errorf("%d command(s) failed", failures)}
}
