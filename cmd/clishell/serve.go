// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/clishell/clishell/internal/issue"
	"github.com/clishell/clishell/internal/session"
	"github.com/clishell/clishell/internal/sshserver"
)

type serveFlags struct {
	host        string
	port        int
	hostKey     string
	metricsAddr string
	label       string
}

// newServeCommand creates the `clishell serve` command.
func newServeCommand(app *App, root *rootFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve shell sessions over SSH",
		Long: `Serve shell sessions over SSH until interrupted.

Every SSH session gets its own shell: buffers and script environments are
never shared, while the plugins are. Clients log in with the printed token as
the password. A command given to ssh runs as one line; otherwise the input
is read line by line, with line editing when a terminal is requested.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), app, root, flags, cmd)
		},
	}
	cmd.Flags().StringVar(&flags.host, "host", "", "bind address (default from ssh.host)")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "listen port (default from ssh.port)")
	cmd.Flags().StringVar(&flags.hostKey, "host-key", "", "PEM host key file, created when missing (default: ephemeral key)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default from metrics.address)")
	cmd.Flags().StringVar(&flags.label, "label", "cli", "label recorded on the issued token")
	return cmd
}

func serve(ctx context.Context, app *App, root *rootFlags, flags *serveFlags, cmd *cobra.Command) error {
	sh, err := app.Open(ctx, root)
	if err != nil {
		return app.fail(err, root)
	}
	defer sh.Close()

	cfg := sshserver.Config{
		Host:            sh.Config.SSH.Host,
		Port:            sh.Config.SSH.Port,
		HostKeyPath:     flags.hostKey,
		TokenTTL:        sh.Config.SSH.TokenTTL,
		ShutdownTimeout: sh.Config.SSH.ShutdownTimeout,
		Prompt:          sh.Config.Shell.Prompt,
		CommentPrefix:   sh.Config.Shell.CommentPrefix,
		Logger:          sh.Logger,
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = flags.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = flags.port
	}

	srv, err := sshserver.New(cfg, func(user string) *session.Session { return sh.NewSession(user) })
	if err != nil {
		return app.fail(serveError(err), root)
	}
	if err := srv.Start(ctx); err != nil {
		return app.fail(serveError(err), root)
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			sh.Logger.Warn("SSH server stop failed", "error", err)
		}
	}()

	metricsAddr := sh.Config.Metrics.Address
	if cmd.Flags().Changed("metrics-addr") {
		metricsAddr = flags.metricsAddr
	}
	var metricsErr <-chan error
	if metricsAddr != "" {
		httpSrv, errCh, err := serveMetrics(ctx, sh, metricsAddr)
		if err != nil {
			return app.fail(serveError(err), root)
		}
		metricsErr = errCh
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(app.stdout, "%s http://%s/metrics\n", CmdStyle.Render("Metrics:"), metricsAddr)
	}

	info, err := srv.ConnectionInfo(flags.label)
	if err != nil {
		return app.fail(serveError(err), root)
	}
	fmt.Fprintln(app.stdout, TitleStyle.Render("clishell SSH server"))
	fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("Address:"), srv.Address())
	fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("Token:  "), SuccessStyle.Render(info.Token))
	fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("Expires:"), humanize.Time(info.ExpireAt))
	fmt.Fprintf(app.stdout, "\n  ssh -p %d %s@%s\n\n", info.Port, info.User, info.Host)
	fmt.Fprintln(app.stdout, SubtitleStyle.Render("press Ctrl+C to stop"))

	select {
	case <-ctx.Done():
		return nil
	case err := <-srv.Err():
		if err == nil {
			return nil
		}
		return app.fail(serveError(err), root)
	case err := <-metricsErr:
		return app.fail(serveError(err), root)
	}
}

// serveMetrics starts the Prometheus endpoint. The returned channel receives
// a listener failure after startup.
func serveMetrics(ctx context.Context, sh *Shell, addr string) (*http.Server, <-chan error, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", sh.Metrics.Handler())
	httpSrv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	sh.Logger.Debug("metrics listening", "address", l.Addr().String())
	return httpSrv, errCh, nil
}

func serveError(err error) error {
	return issue.NewErrorContext().
		WithOperation("serve").
		WithSuggestion("Pick a free port with --port or ssh.port").
		WithSuggestion("Run with --verbose to see the server log").
		Wrap(err).
		BuildError()
}
