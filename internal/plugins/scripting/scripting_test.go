// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clishell/clishell/internal/buffer"
	"github.com/clishell/clishell/internal/dispatch"
	"github.com/clishell/clishell/internal/plugin"
	"github.com/clishell/clishell/internal/plugins/builtin"
	"github.com/clishell/clishell/internal/plugins/text"
	"github.com/clishell/clishell/internal/script"
	"github.com/clishell/clishell/internal/session"
	"github.com/clishell/clishell/pkg/cmdline"
)

type shell struct {
	s      *session.Session
	dir    string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newShell(t *testing.T, opts ...Option) *shell {
	t.Helper()

	reg := plugin.NewRegistry()
	for _, p := range []plugin.Plugin{builtin.New(), New(opts...), text.New()} {
		if err := reg.Register(t.Context(), p); err != nil {
			t.Fatal(err)
		}
	}
	s := session.New(reg, session.Options{ID: "sess"})
	t.Cleanup(func() { _ = s.Close() })
	return &shell{s: s, dir: t.TempDir(), stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
}

func (sh *shell) run(t *testing.T, line string) dispatch.Result {
	t.Helper()
	return sh.s.Run(t.Context(), plugin.IO{Stdout: buffer.ConsoleSink(sh.stdout), Stderr: sh.stderr}, line)
}

func (sh *shell) writeScript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(sh.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return cmdline.Quote(path)
}

func TestPluginIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		p    plugin.Plugin
		name string
	}{
		{p: New(), name: "scripting"},
		{p: builtin.New(), name: "builtin"},
		{p: text.New(), name: "text"},
	}
	for _, tt := range tests {
		if got := tt.p.Name(); got != tt.name {
			t.Errorf("Name() = %q, want %q", got, tt.name)
		}
		if got := tt.p.Version(); got != "1.0" {
			t.Errorf("%s Version() = %q, want 1.0", tt.name, got)
		}
	}
}

func TestScript_RetainedAcrossLoads(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	def := sh.writeScript(t, "def.sh", `message="hello"
greet() { println "$message, $1"; }`)
	use := sh.writeScript(t, "use.sh", `greet world`)

	if res := sh.run(t, "vsh -r "+def); !res.OK() {
		t.Fatalf("load def: %v", res.Err)
	}
	if res := sh.run(t, "script -r "+use); !res.OK() {
		t.Fatalf("load use: %v", res.Err)
	}
	if got := sh.stdout.String(); got != "hello, world\n" {
		t.Errorf("stdout = %q", got)
	}

	// A non-retained load on the default handle starts empty.
	res := sh.run(t, "vsh "+use)
	if !errors.Is(res.Err, script.ErrUndefinedBinding) {
		t.Errorf("ephemeral load error = %v, want ErrUndefinedBinding", res.Err)
	}
}

func TestScript_FreshHandleIsUndefined(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	def := sh.writeScript(t, "def.sh", `greet() { println hi; }`)
	use := sh.writeScript(t, "use.sh", `greet`)

	sh.run(t, "vsh -r "+def)
	res := sh.run(t, "vsh -e other "+use)
	if !errors.Is(res.Err, script.ErrUndefinedBinding) {
		t.Fatalf("error = %v, want ErrUndefinedBinding", res.Err)
	}
	var see *script.ScriptExecutionError
	if !errors.As(res.Err, &see) {
		t.Errorf("error %T is not a ScriptExecutionError", res.Err)
	}
	if !strings.Contains(sh.stderr.String(), "undefined binding: greet") {
		t.Errorf("stderr = %q", sh.stderr.String())
	}
}

func TestScript_CaptureAndFeed(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	src := sh.writeScript(t, "cap.sh", `dispatchCommand capture buffer one echo hi from one
p=$(getPluginInstance scripting)
"$p" setBuffer two "b a" 
println "one=$("$p" getBuffer one)"
"$p" listBuffers`)

	if res := sh.run(t, "vsh "+src); !res.OK() {
		t.Fatalf("error = %v", res.Err)
	}
	if got, want := sh.stdout.String(), "one=hi from one\none\ntwo\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}

	sh.stdout.Reset()
	if res := sh.run(t, "feed-buffer one wc -w"); !res.OK() {
		t.Fatal(res.Err)
	}
	if got := sh.stdout.String(); got != "      3\n" {
		t.Errorf("feed-buffer output = %q", got)
	}
}

func TestSelfReferenceIsBounded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content func(self string) string
		line    func(self string) string
	}{
		{
			name:    "source",
			file:    "self.cmds",
			content: func(self string) string { return "source " + self + "\n" },
			line:    func(self string) string { return "source " + self },
		},
		{
			name:    "script",
			file:    "self.sh",
			content: func(self string) string { return "dispatchCommand script -e x " + self + "\n" },
			line:    func(self string) string { return "script -e x " + self },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sh := newShell(t)
			self := cmdline.Quote(filepath.Join(sh.dir, tt.file))
			sh.writeScript(t, tt.file, tt.content(self))

			if res := sh.run(t, tt.line(self)); res.OK() {
				t.Fatal("self-referencing load succeeded")
			}
			if !strings.Contains(sh.stderr.String(), dispatch.ErrNestingTooDeep.Error()) {
				t.Errorf("stderr does not report the nesting limit: %q", sh.stderr.String())
			}

			sh.stdout.Reset()
			if res := sh.run(t, "echo still here"); !res.OK() || sh.stdout.String() != "still here\n" {
				t.Errorf("session unusable afterwards: err %v, stdout %q", res.Err, sh.stdout.String())
			}
		})
	}
}

func TestScript_UnknownBufferAborts(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	src := sh.writeScript(t, "bad.sh", `p=$(getPluginInstance scripting)
"$p" getBuffer nothing
println after`)
	res := sh.run(t, "vsh "+src)
	if !errors.Is(res.Err, buffer.ErrUnknownBuffer) {
		t.Fatalf("error = %v, want ErrUnknownBuffer", res.Err)
	}
	if strings.Contains(sh.stdout.String(), "after") {
		t.Error("script continued after failure")
	}
}

func TestScript_Usage(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	for _, line := range []string{"vsh", "vsh a b", "vsh -x a"} {
		if res := sh.run(t, line); !errors.Is(res.Err, plugin.ErrUsage) {
			t.Errorf("%q error = %v, want ErrUsage", line, res.Err)
		}
	}
	if res := sh.run(t, "vsh "+filepath.Join(sh.dir, "missing.sh")); !errors.Is(res.Err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", res.Err)
	}
}

func TestBuffers(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	sh.run(t, "capture buffer b echo bee")
	sh.run(t, "capture buffer a echo aye")

	sh.run(t, "list-buffers")
	if got := sh.stdout.String(); got != "a\nb\n" {
		t.Errorf("list-buffers = %q", got)
	}

	sh.stdout.Reset()
	sh.run(t, "list-buffers -v a")
	if got := sh.stdout.String(); !strings.HasPrefix(got, "a") || !strings.Contains(got, "4 B") {
		t.Errorf("list-buffers -v = %q", got)
	}

	if res := sh.run(t, "list-buffers nope"); !errors.Is(res.Err, buffer.ErrUnknownBuffer) {
		t.Errorf("list-buffers nope error = %v", res.Err)
	}
	if res := sh.run(t, "delete-buffers a nope"); !errors.Is(res.Err, buffer.ErrUnknownBuffer) {
		t.Errorf("delete-buffers error = %v", res.Err)
	}
	if got := sh.s.Buffers().Names(); len(got) != 1 || got[0] != "b" {
		t.Errorf("Names() = %v", got)
	}
	if res := sh.run(t, "feed-buffer a wc"); !errors.Is(res.Err, buffer.ErrUnknownBuffer) {
		t.Errorf("feed-buffer deleted buffer error = %v", res.Err)
	}
}

func TestEnvCommands(t *testing.T) {
	t.Parallel()

	sh := newShell(t)
	def := sh.writeScript(t, "def.sh", "n=3\nf() { println x; }")
	sh.run(t, "vsh -r -e work "+def)

	sh.run(t, "list-envs")
	if got := sh.stdout.String(); !strings.HasPrefix(got, "work") || !strings.Contains(got, "2 bindings") {
		t.Errorf("list-envs = %q", got)
	}

	sh.stdout.Reset()
	if res := sh.run(t, "show-env -e work"); !res.OK() {
		t.Fatal(res.Err)
	}
	out := sh.stdout.String()
	if !strings.Contains(out, "f() {") || !strings.Contains(out, "n=3\t# number") {
		t.Errorf("show-env = %q", out)
	}

	if res := sh.run(t, "show-env -e work missing"); !errors.Is(res.Err, script.ErrUndefinedBinding) {
		t.Errorf("show-env missing error = %v", res.Err)
	}
	if res := sh.run(t, "drop-env work"); !res.OK() {
		t.Fatal(res.Err)
	}
	if res := sh.run(t, "drop-env work"); !errors.Is(res.Err, script.ErrUnknownEnvironment) {
		t.Errorf("second drop-env error = %v", res.Err)
	}
	if res := sh.run(t, "show-env -e work"); !errors.Is(res.Err, script.ErrUnknownEnvironment) {
		t.Errorf("show-env after drop error = %v", res.Err)
	}
}

func TestGetResource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ok" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "remote body")
	}))
	defer srv.Close()

	sh := newShell(t, WithHTTPClient(srv.Client()))
	local := filepath.Join(sh.dir, "local.txt")
	if err := os.WriteFile(local, []byte("local body"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		resource string
		want     string
		wantErr  bool
	}{
		{srv.URL + "/ok", "remote body", false},
		{local, "local body", false},
		{"file://" + local, "local body", false},
		{srv.URL + "/missing", "", true},
		{"ftp://example.com/x", "", true},
	}
	for _, tt := range tests {
		sh.stdout.Reset()
		res := sh.run(t, "get-url "+cmdline.Quote(tt.resource))
		if tt.wantErr {
			if res.OK() {
				t.Errorf("get-url %s: expected error", tt.resource)
			}
			continue
		}
		if !res.OK() || sh.stdout.String() != tt.want {
			t.Errorf("get-url %s = %q, %v", tt.resource, sh.stdout.String(), res.Err)
		}
	}
}

func TestNoScriptHost(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()
	if err := reg.Register(t.Context(), New()); err != nil {
		t.Fatal(err)
	}
	d := dispatch.New(reg, buffer.NewStore())
	if res := d.Dispatch(t.Context(), plugin.IO{}, "list-envs"); !errors.Is(res.Err, ErrNoScripting) {
		t.Errorf("error = %v, want ErrNoScripting", res.Err)
	}
}
