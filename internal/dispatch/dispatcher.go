// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/clishell/clishell/internal/buffer"
	"github.com/clishell/clishell/internal/metrics"
	"github.com/clishell/clishell/internal/plugin"
	"github.com/clishell/clishell/pkg/cmdline"
)

// MaxDepth bounds how deeply commands may run other commands.
const MaxDepth = 64

// ErrNestingTooDeep is returned when a nested command would exceed MaxDepth.
var ErrNestingTooDeep = errors.New("command nesting too deep")

type (
	// Dispatcher executes command lines against a plugin registry.
	// A Dispatcher belongs to one session and is not meant for concurrent use.
	Dispatcher struct {
		registry *plugin.Registry
		buffers  *buffer.Store
		host     plugin.Host
		logger   *log.Logger
		metrics  *metrics.Metrics
	}

	// Option configures a Dispatcher.
	Option func(*Dispatcher)

	// Result is the outcome of one dispatched line.
	Result struct {
		Command cmdline.Command
		// Err is nil on success.
		Err error
		// Exit reports that the command asked the session to end.
		Exit    bool
		Elapsed time.Duration
	}

	// standaloneHost serves as the Host when the Dispatcher is used without
	// a session.
	standaloneHost struct {
		d *Dispatcher
	}

	depthKey struct{}
)

// WithHost sets the Host handed to handlers.
func WithHost(h plugin.Host) Option {
	return func(d *Dispatcher) { d.host = h }
}

// WithLogger sets the logger for dispatch failures.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics records dispatch outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a Dispatcher over registry, capturing into buffers.
func New(registry *plugin.Registry, buffers *buffer.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		buffers:  buffers,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.host == nil {
		d.host = &standaloneHost{d: d}
	}
	return d
}

// OK reports whether the line succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Dispatch tokenizes and executes one command line. Blank lines succeed
// without doing anything. Failures are reported on stdio.Stderr.
func (d *Dispatcher) Dispatch(ctx context.Context, stdio plugin.IO, line string) Result {
	stdio = normalize(stdio)
	start := time.Now()

	cmd, err := cmdline.Parse(line)
	if err != nil {
		res := Result{Command: cmd, Err: err, Elapsed: time.Since(start)}
		d.report(stdio, res)
		d.metrics.ObserveDispatch(metrics.UnknownCommand, res.Elapsed, res.Err)
		return res
	}
	if cmd.Empty() {
		return Result{Command: cmd}
	}

	err = d.Exec(ctx, stdio, cmd.Argv())
	res := Result{Command: cmd, Elapsed: time.Since(start)}
	switch {
	case errors.Is(err, plugin.ErrExit):
		res.Exit = true
	case err != nil:
		res.Err = err
		d.report(stdio, res)
	}
	d.metrics.ObserveDispatch(d.metricLabel(cmd.Name), res.Elapsed, res.Err)
	return res
}

// metricLabel returns name if it names a command, else metrics.UnknownCommand.
func (d *Dispatcher) metricLabel(name string) string {
	if name == CaptureCommand {
		return name
	}
	if _, err := d.registry.Resolve(name); err != nil {
		return metrics.UnknownCommand
	}
	return name
}

// Exec runs an already tokenized command. It is the entry point for nested
// calls: capture, feed-buffer and script host functions all come through here.
func (d *Dispatcher) Exec(ctx context.Context, stdio plugin.IO, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	depth := Depth(ctx)
	if depth >= MaxDepth {
		return fmt.Errorf("%w: %s exceeds %d levels", ErrNestingTooDeep, argv[0], MaxDepth)
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)
	stdio = normalize(stdio)

	if argv[0] == CaptureCommand {
		return d.capture(ctx, stdio, argv[1:])
	}

	h, err := d.registry.Resolve(argv[0])
	if err != nil {
		return err
	}
	inv := &plugin.Invocation{
		IO:   stdio,
		Name: argv[0],
		Args: argv[1:],
		Host: d.host,
	}
	return h.Command.Run(ctx, inv)
}

// Depth returns how many dispatched commands ctx is nested inside.
func Depth(ctx context.Context) int {
	n, _ := ctx.Value(depthKey{}).(int)
	return n
}

func (d *Dispatcher) report(stdio plugin.IO, res Result) {
	var (
		uce *plugin.UnknownCommandError
		msg string
	)
	switch {
	case errors.As(res.Err, &uce), res.Command.Name == "", errors.Is(res.Err, cmdline.ErrMalformedCommand):
		msg = res.Err.Error()
	default:
		msg = fmt.Sprintf("%s: %v", res.Command.Name, res.Err)
	}
	fmt.Fprintln(stdio.Stderr, strings.TrimRight(msg, "\n"))
	d.logger.Debug("command failed", "command", res.Command.Name, "error", res.Err)
}

func normalize(stdio plugin.IO) plugin.IO {
	if stdio.Stdin == nil {
		stdio.Stdin = strings.NewReader("")
	}
	if stdio.Stdout == nil {
		stdio.Stdout = buffer.ConsoleSink(io.Discard)
	}
	if stdio.Stderr == nil {
		stdio.Stderr = io.Discard
	}
	return stdio
}

func (h *standaloneHost) SessionID() string { return "" }

func (h *standaloneHost) Buffers() *buffer.Store { return h.d.buffers }

func (h *standaloneHost) Plugins() *plugin.Registry { return h.d.registry }

func (h *standaloneHost) Exec(ctx context.Context, stdio plugin.IO, argv []string) error {
	return h.d.Exec(ctx, stdio, argv)
}
