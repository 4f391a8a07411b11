// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	gossh "golang.org/x/crypto/ssh"

	"github.com/clishell/clishell/internal/core/serverbase"
	"github.com/clishell/clishell/internal/plugin"
	"github.com/clishell/clishell/internal/plugins/builtin"
	"github.com/clishell/clishell/internal/plugins/scripting"
	"github.com/clishell/clishell/internal/session"
	"github.com/clishell/clishell/internal/testutil"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	reg := plugin.NewRegistry()
	for _, p := range []plugin.Plugin{builtin.New(), scripting.New()} {
		if err := reg.Register(t.Context(), p); err != nil {
			t.Fatal(err)
		}
	}
	srv, err := New(cfg, func(string) *session.Session {
		return session.New(reg, session.Options{})
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func startServer(t *testing.T) *Server {
	t.Helper()
	srv := newTestServer(t, Config{})
	if err := srv.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	testutil.StopOnCleanup(t, srv)
	return srv
}

func dial(t *testing.T, srv *Server, password string) (*gossh.Client, error) {
	t.Helper()
	return gossh.Dial("tcp", srv.Address(), &gossh.ClientConfig{
		User:            User,
		Auth:            []gossh.AuthMethod{gossh.Password(password)},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
}

func connect(t *testing.T, srv *Server) *gossh.Client {
	t.Helper()
	info, err := srv.ConnectionInfo("test")
	if err != nil {
		t.Fatal(err)
	}
	client, err := dial(t, srv, info.Token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func run(t *testing.T, client *gossh.Client, cmd string) (string, error) {
	t.Helper()
	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sess.Close() }()
	out, err := sess.Output(cmd)
	return string(out), err
}

func TestTokens(t *testing.T) {
	t.Parallel()

	clock := testutil.NewFakeClock(time.Time{})
	srv := newTestServer(t, Config{TokenTTL: time.Minute, Clock: clock})

	tok, err := srv.GenerateToken("cli")
	if err != nil {
		t.Fatal(err)
	}
	if len(tok.Value) != 64 || tok.ID == "" || tok.Label != "cli" {
		t.Errorf("token = %+v", tok)
	}
	if got, ok := srv.ValidateToken(tok.Value); !ok || got != tok {
		t.Error("fresh token rejected")
	}
	if _, ok := srv.ValidateToken("nope"); ok {
		t.Error("unknown token accepted")
	}

	clock.Advance(time.Minute + time.Second)
	if _, ok := srv.ValidateToken(tok.Value); ok {
		t.Error("expired token accepted")
	}

	a, _ := srv.GenerateToken("a")
	b, _ := srv.GenerateToken("b")
	srv.RevokeToken(a.Value)
	if _, ok := srv.ValidateToken(a.Value); ok {
		t.Error("revoked token accepted")
	}
	clock.Advance(2 * time.Minute)
	if n := srv.pruneTokens(); n != 1 {
		t.Errorf("pruneTokens() = %d, want 1", n)
	}
	if _, ok := srv.ValidateToken(b.Value); ok {
		t.Error("pruned token accepted")
	}
}

var _ Clock = (*testutil.FakeClock)(nil)

func TestConfig_DefaultClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		clock Clock
		want  Clock
	}{
		{name: "unset uses the system clock", want: systemClock{}},
		{name: "injected clock is kept", clock: testutil.NewFakeClock(time.Time{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := Config{Clock: tt.clock}.withDefaults()
			want := tt.want
			if want == nil {
				want = tt.clock
			}
			if c.Clock != want {
				t.Errorf("Clock = %#v, want %#v", c.Clock, want)
			}
			before := time.Now()
			if tt.want != nil && (c.Clock.Now().Before(before) || c.Clock.Since(before) < 0) {
				t.Error("system clock went backwards")
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Port: 70000}, func(string) *session.Session { return nil }); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New() with bad port error = %v", err)
	}
	if _, err := New(Config{}, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New() without factory error = %v", err)
	}
}

func TestServer_Lifecycle(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Config{})
	if _, err := srv.ConnectionInfo("x"); err == nil {
		t.Error("ConnectionInfo() before Start should fail")
	}
	if err := srv.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if srv.State() != serverbase.StateRunning || srv.Port() == 0 {
		t.Errorf("state %s, port %d", srv.State(), srv.Port())
	}
	if err := srv.Start(t.Context()); err == nil {
		t.Error("second Start() should fail")
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if srv.State() != serverbase.StateStopped {
		t.Errorf("state = %s", srv.State())
	}
}

func TestServer_StartErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	srv := newTestServer(t, Config{})
	if err := srv.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start() with canceled context error = %v", err)
	}

	var lc net.ListenConfig
	l, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Close() }()
	port := l.Addr().(*net.TCPAddr).Port
	busy := newTestServer(t, Config{Port: port})
	if err := busy.Start(t.Context()); err == nil {
		_ = busy.Stop()
		t.Error("Start() on a used port should fail")
	}
	if busy.State() != serverbase.StateFailed {
		t.Errorf("state = %s, want failed", busy.State())
	}
}

func TestServer_RejectsBadToken(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	if client, err := dial(t, srv, "wrong"); err == nil {
		_ = client.Close()
		t.Fatal("login with a wrong token succeeded")
	}
}

func TestServer_CommandMode(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	client := connect(t, srv)

	out, err := run(t, client, "echo hello   world")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "hello world\n" {
		t.Errorf("output = %q", out)
	}

	_, err = run(t, client, "no-such-command")
	var exitErr *gossh.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitStatus() != 1 {
		t.Errorf("unknown command error = %v, want exit status 1", err)
	}
}

func TestServer_SessionsAreIsolated(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	client := connect(t, srv)

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sess.Close() }()
	var stdout bytes.Buffer
	sess.Stdout = &stdout
	sess.Stdin = strings.NewReader("# setup\ncapture buffer greeting echo hi\nlist-buffers\nexit\necho unreachable\n")
	if err := sess.Shell(); err != nil {
		t.Fatal(err)
	}
	if err := sess.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if stdout.String() != "greeting\n" {
		t.Errorf("first session output = %q", stdout.String())
	}

	out, err := run(t, client, "list-buffers")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("second session sees buffers: %q", out)
	}
}
