// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/clishell/clishell/internal/buffer"
	"github.com/clishell/clishell/internal/metrics"
	"github.com/clishell/clishell/internal/plugin"
	"github.com/clishell/clishell/pkg/cmdline"
)

type testPlugin struct{}

func (testPlugin) Name() string    { return "test" }
func (testPlugin) Version() string { return "0" }

func (testPlugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Names: []string{"echo"}, Run: func(_ context.Context, inv *plugin.Invocation) error {
			_, err := inv.Stdout.Write([]byte(strings.Join(inv.Args, " ") + "\n"))
			return err
		}},
		{Names: []string{"warn"}, Run: func(_ context.Context, inv *plugin.Invocation) error {
			_, _ = inv.Stdout.Write([]byte("out\n"))
			_, err := inv.Stderr.Write([]byte("err\n"))
			return err
		}},
		{Names: []string{"fail"}, Run: func(context.Context, *plugin.Invocation) error {
			return errors.New("boom")
		}},
		{Names: []string{"exit"}, Run: func(context.Context, *plugin.Invocation) error {
			return plugin.ErrExit
		}},
		{Names: []string{"target"}, Run: func(_ context.Context, inv *plugin.Invocation) error {
			_, err := inv.Stdout.Write([]byte(inv.Stdout.Target()))
			return err
		}},
		// nest runs itself n more times; a negative n never stops.
		{Names: []string{"nest"}, Run: func(ctx context.Context, inv *plugin.Invocation) error {
			n, err := strconv.Atoi(inv.Arg(0))
			if err != nil {
				return err
			}
			if n == 0 {
				_, err = inv.Stdout.Write([]byte("depth " + strconv.Itoa(Depth(ctx)) + "\n"))
				return err
			}
			return inv.Host.Exec(ctx, inv.IO, []string{"nest", strconv.Itoa(n - 1)})
		}},
	}
}

type harness struct {
	d       *Dispatcher
	metrics *metrics.Metrics
	buffers *buffer.Store
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	reg := plugin.NewRegistry()
	if err := reg.Register(t.Context(), testPlugin{}); err != nil {
		t.Fatal(err)
	}
	h := &harness{
		metrics: metrics.New(),
		buffers: buffer.NewStore(),
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
	}
	h.d = New(reg, h.buffers, WithMetrics(h.metrics))
	return h
}

func (h *harness) stdio() plugin.IO {
	return plugin.IO{Stdout: buffer.ConsoleSink(h.stdout), Stderr: h.stderr}
}

func (h *harness) run(t *testing.T, line string) Result {
	t.Helper()
	return h.d.Dispatch(t.Context(), h.stdio(), line)
}

func TestDispatch_Echo(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	res := h.run(t, `echo "hello world" again`)
	if !res.OK() {
		t.Fatalf("Dispatch() error = %v", res.Err)
	}
	if got := h.stdout.String(); got != "hello world again\n" {
		t.Errorf("stdout = %q", got)
	}
	if res.Command.Name != "echo" {
		t.Errorf("Command.Name = %q", res.Command.Name)
	}
}

func TestDispatch_Blank(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	for _, line := range []string{"", "   ", "\t"} {
		if res := h.run(t, line); !res.OK() || !res.Command.Empty() {
			t.Errorf("Dispatch(%q) = %+v", line, res)
		}
	}
	if h.stderr.Len() != 0 {
		t.Errorf("stderr = %q, want empty", h.stderr.String())
	}
}

func TestDispatch_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line    string
		wantErr error
		wantMsg string
	}{
		{"nope arg", plugin.ErrUnknownCommand, "unknown command: nope"},
		{`echo "open`, cmdline.ErrMalformedCommand, "unterminated"},
		{"capture buffer x", plugin.ErrUsage, "usage: capture"},
		{"capture bogus x echo hi", plugin.ErrUsage, "unknown capture mode"},
		{"capture buffer x nope", plugin.ErrUnknownCommand, "unknown command: nope"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			res := h.run(t, tt.line)
			if !errors.Is(res.Err, tt.wantErr) {
				t.Fatalf("Dispatch(%q) error = %v, want %v", tt.line, res.Err, tt.wantErr)
			}
			if !strings.Contains(h.stderr.String(), tt.wantMsg) {
				t.Errorf("stderr = %q, want it to contain %q", h.stderr.String(), tt.wantMsg)
			}
		})
	}
}

func TestDispatch_HandlerErrorIsPrefixed(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	res := h.run(t, "fail")
	if res.OK() {
		t.Fatal("expected failure")
	}
	if got := h.stderr.String(); got != "fail: boom\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestDispatch_FailureDoesNotStopLaterCommands(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	lines := append([]string{"unknown-command"}, strings.Split(strings.Repeat("echo ok\n", 9), "\n")[:9]...)

	ok := 0
	for _, line := range lines {
		if h.run(t, line).OK() {
			ok++
		}
	}
	if ok != 9 {
		t.Errorf("successes = %d, want 9", ok)
	}
}

func TestDispatch_Exit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	res := h.run(t, "exit")
	if !res.OK() || !res.Exit {
		t.Errorf("Dispatch(exit) = %+v, want OK with Exit", res)
	}
}

func TestDispatch_CaptureBuffer(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if res := h.run(t, "capture buffer one echo hi from one"); !res.OK() {
		t.Fatalf("capture error = %v", res.Err)
	}
	got, err := h.buffers.Read("one")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "hi from one\n" {
		t.Errorf("buffer = %q", got)
	}
	if h.stdout.Len() != 0 {
		t.Errorf("console received %q, want nothing", h.stdout.String())
	}
}

func TestDispatch_RecaptureReplaces(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.run(t, "capture buffer X echo a")
	h.run(t, "capture buffer X echo b")
	if got, _ := h.buffers.Read("X"); got != "b\n" {
		t.Errorf("buffer = %q, want %q", got, "b\n")
	}
}

func TestDispatch_CaptureFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line       string
		wantBuffer string
		wantOut    string
		wantErr    string
	}{
		{"capture buffer b warn", "out\n", "", "err\n"},
		{"capture -t buffer b warn", "out\n", "out\n", "err\n"},
		{"capture -e buffer b warn", "out\nerr\n", "", ""},
		{"capture -te buffer b warn", "out\nerr\n", "out\n", "err\n"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			if res := h.run(t, tt.line); !res.OK() {
				t.Fatalf("error = %v", res.Err)
			}
			if got, _ := h.buffers.Read("b"); got != tt.wantBuffer {
				t.Errorf("buffer = %q, want %q", got, tt.wantBuffer)
			}
			if got := h.stdout.String(); got != tt.wantOut {
				t.Errorf("stdout = %q, want %q", got, tt.wantOut)
			}
			if got := h.stderr.String(); got != tt.wantErr {
				t.Errorf("stderr = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestDispatch_NestedCaptureConflict(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	res := h.run(t, "capture buffer n capture buffer n echo x")
	if !errors.Is(res.Err, buffer.ErrCaptureAlreadyActive) {
		t.Fatalf("error = %v, want ErrCaptureAlreadyActive", res.Err)
	}
	// The outer capture still completes.
	if _, err := h.buffers.Read("n"); err != nil {
		t.Errorf("outer capture not committed: %v", err)
	}
}

func TestDispatch_NestedCaptureDistinctBuffers(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if res := h.run(t, "capture -t buffer outer capture buffer inner target"); !res.OK() {
		t.Fatalf("error = %v", res.Err)
	}
	if got, _ := h.buffers.Read("inner"); got != "buffer:inner" {
		t.Errorf("inner = %q", got)
	}
	if got, _ := h.buffers.Read("outer"); got != "" {
		t.Errorf("outer = %q, want empty", got)
	}
}

func TestDispatch_CaptureFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "out.txt")
	if res := h.run(t, "capture file "+cmdline.Quote(path)+" echo to file"); !res.OK() {
		t.Fatalf("error = %v", res.Err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "to file\n" {
		t.Errorf("file = %q", data)
	}
}

func TestDispatch_NestingDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line    string
		wantErr error
		wantOut string
	}{
		{line: "nest 63", wantOut: "depth 64\n"},
		{line: "capture buffer out nest 62"},
		{line: "nest 64", wantErr: ErrNestingTooDeep},
		{line: "nest -1", wantErr: ErrNestingTooDeep},
		{line: "capture buffer out nest -1", wantErr: ErrNestingTooDeep},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			res := h.run(t, tt.line)
			if !errors.Is(res.Err, tt.wantErr) {
				t.Fatalf("Dispatch(%q) error = %v, want %v", tt.line, res.Err, tt.wantErr)
			}
			if tt.wantErr != nil && strings.Count(h.stderr.String(), ErrNestingTooDeep.Error()) != 1 {
				t.Errorf("stderr = %q, want one nesting report", h.stderr.String())
			}
			if h.stdout.String() != tt.wantOut {
				t.Errorf("stdout = %q, want %q", h.stdout.String(), tt.wantOut)
			}

			// The dispatcher stays usable after a runaway command.
			h.stdout.Reset()
			if res := h.run(t, "echo still here"); !res.OK() || h.stdout.String() != "still here\n" {
				t.Errorf("echo after nesting: err %v, stdout %q", res.Err, h.stdout.String())
			}
		})
	}
}

func TestDispatch_MetricLabelsAreBounded(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.run(t, "echo hi")
	h.run(t, "capture buffer x echo hi")
	for i := range 500 {
		h.run(t, "nosuch"+strconv.Itoa(i))
	}
	h.run(t, `"unterminated`)
	h.run(t, "capture buffer y nosuch")

	tests := []struct {
		metric string
		want   int
	}{
		// echo/ok, capture/ok, <unknown>/error, capture/error
		{metric: "clishell_dispatch_total", want: 4},
		// echo, capture, <unknown>
		{metric: "clishell_dispatch_duration_seconds", want: 3},
	}
	for _, tt := range tests {
		got, err := testutil.GatherAndCount(h.metrics.Registry(), tt.metric)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%s series = %d, want %d", tt.metric, got, tt.want)
		}
	}
}

func TestDispatch_CancelledContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	res := h.d.Dispatch(ctx, h.stdio(), "echo hi")
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", res.Err)
	}
}

func TestExec_StandaloneHost(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()
	var host plugin.Host
	p := &hostRecorder{seen: &host}
	if err := reg.Register(t.Context(), p); err != nil {
		t.Fatal(err)
	}
	store := buffer.NewStore()
	d := New(reg, store)
	if err := d.Exec(t.Context(), plugin.IO{}, []string{"record"}); err != nil {
		t.Fatal(err)
	}
	if host == nil || host.Buffers() != store || host.Plugins() != reg {
		t.Errorf("standalone host not wired: %#v", host)
	}
}

type hostRecorder struct{ seen *plugin.Host }

func (p *hostRecorder) Name() string    { return "record" }
func (p *hostRecorder) Version() string { return "0" }

func (p *hostRecorder) Commands() []plugin.Command {
	return []plugin.Command{{Names: []string{"record"}, Run: func(_ context.Context, inv *plugin.Invocation) error {
		*p.seen = inv.Host
		return nil
	}}}
}
