// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/clishell/clishell/internal/session"
)

// User is the login name advertised in ConnectionInfo.
const User = "clishell"

// ErrInvalidConfig is wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid SSH server config")

type (
	// SessionFactory creates the shell session for one connection.
	SessionFactory func(user string) *session.Session

	// Config is the immutable server configuration.
	Config struct {
		// Host is the bind address (default 127.0.0.1).
		Host string
		// Port is the listen port; 0 picks a free one.
		Port int
		// HostKeyPath is the PEM host key, created when missing. Empty
		// uses an ephemeral key.
		HostKeyPath string
		// TokenTTL is how long issued tokens stay valid (default 1h).
		TokenTTL time.Duration
		// ShutdownTimeout bounds graceful shutdown (default 10s).
		ShutdownTimeout time.Duration
		// StartupTimeout bounds Start (default 5s).
		StartupTimeout time.Duration
		// Prompt is shown to interactive (PTY) clients.
		Prompt string
		// CommentPrefix marks skipped lines.
		CommentPrefix string
		// Logger defaults to a discarding logger.
		Logger *log.Logger
		// Clock defaults to the system clock.
		Clock Clock
	}

	// Token authorizes one client.
	Token struct {
		ID        string
		Value     string
		Label     string
		CreatedAt time.Time
		ExpiresAt time.Time
	}

	// ConnectionInfo tells a client how to connect.
	ConnectionInfo struct {
		Host     string
		Port     int
		User     string
		Token    string
		ExpireAt time.Time
	}

	// InvalidConfigError lists rejected Config fields.
	InvalidConfigError struct {
		FieldErrors []string
	}
)

// DefaultConfig returns the defaults applied by New.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		TokenTTL:        time.Hour,
		ShutdownTimeout: 10 * time.Second,
		StartupTimeout:  5 * time.Second,
		Prompt:          "clishell> ",
		CommentPrefix:   "#",
	}
}

// Validate rejects a Config New cannot repair.
func (c Config) Validate() error {
	var errs []string
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, "host must not be empty")
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.TokenTTL < 0 {
		errs = append(errs, "token TTL must not be negative")
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return "invalid SSH server config: " + strings.Join(e.FieldErrors, "; ")
}

// Unwrap returns ErrInvalidConfig.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = d.TokenTTL
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = d.StartupTimeout
	}
	if c.Prompt == "" {
		c.Prompt = d.Prompt
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard)
	}
	if c.Clock == nil {
		c.Clock = systemClock{}
	}
	return c
}
