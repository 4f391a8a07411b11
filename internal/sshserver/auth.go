// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/google/uuid"
)

type tokenKey struct{}

// GenerateToken issues a token valid for the configured TTL. The label is
// logged when the token is used.
func (s *Server) GenerateToken(label string) (*Token, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	now := s.cfg.Clock.Now()
	token := &Token{
		ID:        uuid.NewString(),
		Value:     hex.EncodeToString(raw),
		Label:     label,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}

	s.tokenMu.Lock()
	s.tokens[token.Value] = token
	s.tokenMu.Unlock()

	s.logger.Debug("issued token", "id", token.ID, "label", label)
	return token, nil
}

// ValidateToken returns the token for value if it exists and has not
// expired. Expired tokens are revoked on sight.
func (s *Server) ValidateToken(value string) (*Token, bool) {
	s.tokenMu.RLock()
	token, ok := s.tokens[value]
	s.tokenMu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.cfg.Clock.Now().After(token.ExpiresAt) {
		s.RevokeToken(value)
		return nil, false
	}
	return token, true
}

// RevokeToken invalidates value.
func (s *Server) RevokeToken(value string) {
	s.tokenMu.Lock()
	delete(s.tokens, value)
	s.tokenMu.Unlock()
}

// ConnectionInfo issues a token for label and returns everything a client
// needs to connect. The server must be running.
func (s *Server) ConnectionInfo(label string) (*ConnectionInfo, error) {
	if !s.IsRunning() {
		return nil, fmt.Errorf("SSH server is not running (state: %s)", s.State())
	}
	token, err := s.GenerateToken(label)
	if err != nil {
		return nil, err
	}
	return &ConnectionInfo{
		Host:     s.cfg.Host,
		Port:     s.Port(),
		User:     User,
		Token:    token.Value,
		ExpireAt: token.ExpiresAt,
	}, nil
}

func (s *Server) cleanupExpiredTokens() {
	ctx := s.Context()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneTokens()
		}
	}
}

func (s *Server) pruneTokens() int {
	now := s.cfg.Clock.Now()
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	pruned := 0
	for value, token := range s.tokens {
		if now.After(token.ExpiresAt) {
			delete(s.tokens, value)
			pruned++
		}
	}
	return pruned
}

func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	token, ok := s.ValidateToken(password)
	if !ok {
		s.logger.Warn("rejected login", "user", ctx.User(), "remote", ctx.RemoteAddr())
		return false
	}
	ctx.SetValue(tokenKey{}, token)
	s.logger.Debug("accepted login", "user", ctx.User(), "token", token.ID, "label", token.Label)
	return true
}
