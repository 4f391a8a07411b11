// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"golang.org/x/term"

	"github.com/clishell/clishell/internal/buffer"
	"github.com/clishell/clishell/internal/plugin"
	"github.com/clishell/clishell/internal/session"
	"github.com/clishell/clishell/pkg/cmdline"
)

func (s *Server) sessionMiddleware() wish.Middleware {
	return func(ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			_ = sess.Exit(s.handle(sess))
		}
	}
}

// handle runs one connection to completion and returns its exit status.
func (s *Server) handle(sess ssh.Session) int {
	shell := s.newSession(sess.User())
	defer func() { _ = shell.Close() }()

	logger := s.logger.With("user", sess.User(), "session", shell.SessionID())
	logger.Info("session opened", "remote", sess.RemoteAddr())
	defer logger.Info("session closed")

	ctx := sess.Context()
	stdio := plugin.IO{
		Stdin:  sess,
		Stdout: buffer.ConsoleSink(sess),
		Stderr: sess.Stderr(),
	}

	if argv := sess.Command(); len(argv) > 0 {
		if res := shell.Run(ctx, stdio, cmdline.Join(argv)); !res.OK() {
			return 1
		}
		return 0
	}

	if _, winCh, isPty := sess.Pty(); isPty {
		return s.interactive(ctx, sess, winCh, shell)
	}

	stats, err := shell.Loop(ctx, sess, stdio, session.LoopOptions{CommentPrefix: s.cfg.CommentPrefix})
	if err != nil || stats.Failures > 0 {
		return 1
	}
	return 0
}

// interactive drives a PTY client through a line editor: the client's
// terminal is raw, so echo and editing happen on this side.
func (s *Server) interactive(ctx context.Context, sess ssh.Session, winCh <-chan ssh.Window, shell *session.Session) int {
	t := term.NewTerminal(sess, s.cfg.Prompt)
	go func() {
		for win := range winCh {
			_ = t.SetSize(win.Width, win.Height)
		}
	}()

	stats, err := shell.Interactive(ctx, t, session.LoopOptions{CommentPrefix: s.cfg.CommentPrefix})
	if err != nil {
		s.logger.Debug("interactive session ended", "error", err)
		return 1
	}
	if stats.Failures > 0 {
		return 1
	}
	return 0
}
