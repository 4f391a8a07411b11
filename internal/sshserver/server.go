// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"github.com/clishell/clishell/internal/core/serverbase"
)

// Server accepts SSH connections and runs one shell session per connection.
// A Server is single-use: once stopped or failed, create a new one.
type Server struct {
	*serverbase.Base

	cfg        Config
	logger     *log.Logger
	newSession SessionFactory

	srvMu    sync.Mutex
	srv      *ssh.Server
	listener net.Listener
	addr     string

	tokenMu sync.RWMutex
	tokens  map[string]*Token
}

// New creates a stopped server. Call Start to listen.
func New(cfg Config, sessions SessionFactory) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sessions == nil {
		return nil, &InvalidConfigError{FieldErrors: []string{"session factory must not be nil"}}
	}
	return &Server{
		Base:       serverbase.NewBase(),
		cfg:        cfg,
		logger:     cfg.Logger.WithPrefix("ssh"),
		newSession: sessions,
		tokens:     make(map[string]*Token),
	}, nil
}

// Start listens and returns once connections are accepted, the listener
// failed, ctx ended or the startup timeout passed. Runtime failures are
// delivered on Err afterwards.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Begin(ctx); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(startCtx, "tcp", addr)
	if err != nil {
		s.Fail(fmt.Errorf("failed to listen on %s: %w", addr, err))
		return s.LastError()
	}

	opts := []ssh.Option{
		wish.WithAddress(listener.Addr().String()),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithPublicKeyAuth(func(ssh.Context, ssh.PublicKey) bool { return false }),
		wish.WithMiddleware(s.sessionMiddleware()),
	}
	if s.cfg.HostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(s.cfg.HostKeyPath))
	}
	srv, err := wish.NewServer(opts...)
	if err != nil {
		_ = listener.Close()
		s.Fail(fmt.Errorf("failed to create SSH server: %w", err))
		return s.LastError()
	}

	s.srvMu.Lock()
	s.srv = srv
	s.listener = listener
	s.addr = listener.Addr().String()
	s.srvMu.Unlock()

	s.Go(s.serve)
	s.Go(s.cleanupExpiredTokens)

	select {
	case <-s.Ready():
		s.logger.Info("listening", "address", s.Address())
		return nil
	case err := <-s.Err():
		s.Fail(err)
		return err
	case <-startCtx.Done():
		s.Fail(fmt.Errorf("startup timeout: %w", startCtx.Err()))
		return s.LastError()
	}
}

func (s *Server) serve() {
	s.srvMu.Lock()
	srv, listener := s.srv, s.listener
	s.srvMu.Unlock()

	s.MarkRunning()
	err := srv.Serve(listener)
	if err != nil && !errors.Is(err, ssh.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		s.Report(fmt.Errorf("serve: %w", err))
	}
}

// Stop shuts the server down gracefully, waiting up to the shutdown timeout
// for open sessions. Calling Stop again is a no-op.
func (s *Server) Stop() error {
	if !s.BeginStop() {
		s.Wait()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var err error
	s.srvMu.Lock()
	if s.srv != nil {
		if err = s.srv.Shutdown(ctx); errors.Is(err, net.ErrClosed) || errors.Is(err, ssh.ErrServerClosed) {
			err = nil
		}
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.srvMu.Unlock()

	s.MarkStopped()
	s.logger.Info("stopped")
	return err
}

// Address returns the bound host:port, or "" before Start succeeded.
func (s *Server) Address() string {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	return s.addr
}

// Port returns the bound port, or 0 before Start succeeded.
func (s *Server) Port() int {
	_, port, err := net.SplitHostPort(s.Address())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}
