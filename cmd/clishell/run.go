// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clishell/clishell/internal/issue"
	"github.com/clishell/clishell/internal/session"
	"github.com/clishell/clishell/internal/watch"
)

type runFlags struct {
	watch       bool
	echo        bool
	stopOnError bool
	debounce    time.Duration
}

// newRunCommand creates the `clishell run` command.
func newRunCommand(app *App, root *rootFlags) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <file>...",
		Short: "Run every line of command files",
		Long: `Run every line of one or more command files in a single session.

Blank lines and comment lines are skipped. Buffers and retained script
environments carry over from one file to the next. With --watch the files
are run again, in a fresh session, whenever one of them changes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFiles(cmd.Context(), app, root, flags, args)
		},
	}
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "run again when a file changes")
	cmd.Flags().BoolVarP(&flags.echo, "echo", "e", false, "print each line before running it")
	cmd.Flags().BoolVar(&flags.stopOnError, "stop-on-error", false, "stop at the first failing line")
	cmd.Flags().DurationVar(&flags.debounce, "debounce", 300*time.Millisecond, "quiet period before a watched change reruns")
	return cmd
}

func runFiles(ctx context.Context, app *App, root *rootFlags, flags *runFlags, files []string) error {
	sh, err := app.Open(ctx, root)
	if err != nil {
		return app.fail(err, root)
	}
	defer sh.Close()

	opts := sh.LoopOptions()
	opts.Prompt = ""
	opts.Echo = opts.Echo || flags.echo
	opts.StopOnError = flags.stopOnError

	runErr := runPass(ctx, app, sh, files, opts)
	if !flags.watch {
		return runErr
	}

	w, err := watch.New(watch.Config{
		Files:    files,
		Debounce: flags.debounce,
		Logger:   sh.Logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintln(app.stderr, SubtitleStyle.Render(fmt.Sprintf("changed: %v", changed)))
			if err := runPass(ctx, app, sh, files, opts); err != nil {
				sh.Logger.Debug("rerun failed", "error", err)
			}
			return nil
		},
	})
	if err != nil {
		return app.fail(err, root)
	}
	fmt.Fprintln(app.stderr, SubtitleStyle.Render("watching for changes, press Ctrl+C to stop"))
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return app.fail(err, root)
	}
	return nil
}

// runPass runs files in order in a new session.
func runPass(ctx context.Context, app *App, sh *Shell, files []string, opts session.LoopOptions) error {
	sess := sh.NewSession("")
	defer sess.Close()

	var failures int
	for _, path := range files {
		stats, err := runFile(ctx, app, sess, path, opts)
		failures += stats.Failures
		if err != nil {
			var ae *issue.ActionableError
			switch {
			case errors.As(err, &ae):
				fmt.Fprintf(app.stderr, "%s %s\n", ErrorStyle.Render("Error:"), ae.Format(false))
				failures++
				if !opts.StopOnError {
					continue
				}
			case errors.Is(err, context.Canceled):
				return err
			case stats.Failures == 0:
				fmt.Fprintf(app.stderr, "%s %s: %v\n", ErrorStyle.Render("Error:"), path, err)
			}
			return &ExitError{Code: 1}
		}
		if stats.Exited {
			break
		}
	}
	return failureExit(failures)
}

func runFile(ctx context.Context, app *App, sess *session.Session, path string, opts session.LoopOptions) (session.LoopStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return session.LoopStats{}, issue.NewErrorContext().
			WithOperation("open command file").
			WithResource(path).
			WithSuggestion("Check the path and that the file is readable").
			Wrap(err).
			BuildError()
	}
	defer f.Close()
	return sess.Loop(ctx, f, app.stdio(), opts)
}
