// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/clishell/clishell/internal/buffer"
	"github.com/clishell/clishell/internal/config"
	"github.com/clishell/clishell/internal/issue"
	"github.com/clishell/clishell/internal/metrics"
	"github.com/clishell/clishell/internal/plugin"
	"github.com/clishell/clishell/internal/plugins/builtin"
	"github.com/clishell/clishell/internal/plugins/scripting"
	"github.com/clishell/clishell/internal/plugins/text"
	"github.com/clishell/clishell/internal/session"
)

type (
	// App is the composition root of the CLI. Every command handler receives
	// it and builds its shell through Open.
	App struct {
		Config config.Provider
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
		// markdownStyle renders issue explanations; set from the loaded config.
		markdownStyle string
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config config.Provider
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Shell is the process-wide state shared by every session: the loaded
	// configuration, the plugin registry, the logger and the metrics.
	Shell struct {
		Config     *config.Config
		ConfigPath string
		Logger     *log.Logger
		Metrics    *metrics.Metrics
		Registry   *plugin.Registry
	}
)

// NewApp builds an App, filling nil dependencies with defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config: deps.Config,
		stdin:  deps.Stdin,
		stdout: deps.Stdout,
		stderr: deps.Stderr,

		markdownStyle: config.DefaultConfig().UI.MarkdownStyle,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// Open loads the configuration and registers the enabled plugins.
func (a *App) Open(ctx context.Context, flags *rootFlags) (*Shell, error) {
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{FilePath: flags.configPath})
	if err != nil {
		return nil, err
	}

	a.markdownStyle = cfg.UI.MarkdownStyle

	level := log.WarnLevel
	if flags.verbose || cfg.UI.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName, Level: level})
	if path != "" {
		logger.Debug("configuration loaded", "path", path)
	}

	sh := &Shell{
		Config:     cfg,
		ConfigPath: path,
		Logger:     logger,
		Metrics:    metrics.New(),
		Registry:   plugin.NewRegistry(),
	}

	plugins := []plugin.Plugin{
		builtin.New(
			builtin.WithProperties(cfg.Properties),
			builtin.WithMarkdownStyle(cfg.UI.MarkdownStyle),
			builtin.WithCommentPrefix(cfg.Shell.CommentPrefix),
		),
		text.New(),
		scripting.New(),
	}
	for _, p := range plugins {
		if !cfg.PluginEnabled(p.Name()) {
			logger.Debug("plugin disabled", "plugin", p.Name())
			continue
		}
		if err := sh.Registry.Register(ctx, p); err != nil {
			return nil, errors.Join(
				issue.NewErrorContext().
					WithOperation("register plugin").
					WithResource(p.Name()).
					WithSuggestion("Remove the plugin from plugins.disabled or fix its command names").
					Wrap(err).
					BuildError(),
				sh.Registry.Close(),
			)
		}
	}
	return sh, nil
}

// NewSession creates a session sharing the shell's registry.
func (sh *Shell) NewSession(user string) *session.Session {
	logger := sh.Logger
	if user != "" {
		logger = logger.With("user", user)
	}
	return session.New(sh.Registry, session.Options{
		Logger:         logger,
		Metrics:        sh.Metrics,
		MaxScriptBytes: sh.Config.Scripting.MaxScriptBytes,
		DefaultRetain:  sh.Config.Scripting.DefaultRetain,
	})
}

// LoopOptions returns the line handling configured for the shell.
func (sh *Shell) LoopOptions() session.LoopOptions {
	return session.LoopOptions{
		Prompt:        sh.Config.Shell.Prompt,
		CommentPrefix: sh.Config.Shell.CommentPrefix,
		Echo:          sh.Config.Shell.EchoCommands,
	}
}

// Close unregisters every plugin.
func (sh *Shell) Close() error {
	if err := sh.Registry.Close(); err != nil {
		return fmt.Errorf("close plugins: %w", err)
	}
	return nil
}

func (a *App) stdio() plugin.IO {
	return plugin.IO{Stdin: a.stdin, Stdout: buffer.ConsoleSink(a.stdout), Stderr: a.stderr}
}
