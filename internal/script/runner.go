// SPDX-License-Identifier: MPL-2.0

package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"

	"github.com/clishell/clishell/internal/metrics"
	"github.com/clishell/clishell/internal/plugin"
)

// DefaultMaxScriptBytes bounds the size of script files read by LoadFile.
const DefaultMaxScriptBytes = 1 << 20

type (
	// Source is script text and the name it is reported under.
	Source struct {
		Name string
		Text string
	}

	// Runner executes scripts against the environments of a Manager.
	Runner struct {
		manager  *Manager
		host     Host
		logger   *log.Logger
		metrics  *metrics.Metrics
		maxBytes int64
	}

	// RunnerOption configures a Runner.
	RunnerOption func(*Runner)
)

// WithLogger sets the logger for script loads.
func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records script outcomes in m.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithMaxScriptBytes limits the size of script files read by LoadFile.
func WithMaxScriptBytes(n int64) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// NewRunner creates a Runner. host may be nil, in which case scripts can use
// only builtins, print and their own bindings.
func NewRunner(manager *Manager, host Host, opts ...RunnerOption) *Runner {
	r := &Runner{
		manager:  manager,
		host:     host,
		logger:   log.New(io.Discard),
		maxBytes: DefaultMaxScriptBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Manager returns the environment arena the Runner executes against.
func (r *Runner) Manager() *Manager { return r.manager }

// LoadFile reads a script file.
func (r *Runner) LoadFile(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, err
	}
	if info.Size() > r.maxBytes {
		return Source{}, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrScriptTooLarge, path, info.Size(), r.maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, err
	}
	return Source{Name: path, Text: string(data)}, nil
}

// Run executes src in the environment identified by handle.
//
// With retain set, the retained environment for handle is used, created if
// absent, and keeps every definition src makes, including those made before
// a failure. Without retain, src runs in a fresh ephemeral environment
// discarded afterwards, even when handle names a retained environment.
//
// Every failure is returned as a *ScriptExecutionError.
func (r *Runner) Run(ctx context.Context, src Source, handle string, retain bool, stdio plugin.IO) (err error) {
	defer func() {
		r.metrics.ObserveScript(retain, err)
		if err != nil {
			err = &ScriptExecutionError{Script: src.Name, Handle: handle, Err: err}
		}
	}()

	r.logger.Debug("running script", "script", src.Name, "handle", handle, "retain", retain)

	prog, err := syntax.NewParser().Parse(strings.NewReader(src.Text), src.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	env, err := r.environment(handle, retain)
	if err != nil {
		return err
	}
	if !env.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrEnvironmentBusy, handle)
	}
	defer env.busy.Store(false)
	env.loads.Add(1)

	if r.host != nil {
		ctx = withHost(ctx, r.host)
	}
	return env.exec(ctx, prog, stdio)
}

// RunFile loads path and runs it.
func (r *Runner) RunFile(ctx context.Context, path, handle string, retain bool, stdio plugin.IO) error {
	src, err := r.LoadFile(path)
	if err != nil {
		return &ScriptExecutionError{Script: path, Handle: handle, Err: err}
	}
	return r.Run(ctx, src, handle, retain, stdio)
}

func (r *Runner) environment(handle string, retain bool) (*Environment, error) {
	if retain {
		return r.manager.Retain(handle)
	}
	return newEnvironment(handle, false)
}

// IsUndefinedBinding reports whether err was caused by an undefined binding.
func IsUndefinedBinding(err error) bool {
	return errors.Is(err, ErrUndefinedBinding)
}
