// SPDX-License-Identifier: MPL-2.0

// Package session ties one user's shell state together: a buffer store, a
// dispatcher and the script environments, all sharing a plugin registry with
// every other session of the process.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/clishell/clishell/internal/buffer"
	"github.com/clishell/clishell/internal/dispatch"
	"github.com/clishell/clishell/internal/metrics"
	"github.com/clishell/clishell/internal/plugin"
	"github.com/clishell/clishell/internal/script"
)

type (
	// Session is one interactive or scripted shell. It is driven by a single
	// goroutine; only the registry it shares is safe for concurrent use.
	Session struct {
		id         string
		registry   *plugin.Registry
		buffers    *buffer.Store
		dispatcher *dispatch.Dispatcher
		manager    *script.Manager
		scripts    *script.Runner
		logger     *log.Logger
		metrics    *metrics.Metrics
		opts       Options
	}

	// Options configures a Session.
	Options struct {
		// ID overrides the generated session ID.
		ID string
		// Logger receives dispatch failures and script loads.
		Logger *log.Logger
		// Metrics receives dispatch, capture and script counters.
		Metrics *metrics.Metrics
		// MaxScriptBytes limits script file size; zero uses the default.
		MaxScriptBytes int64
		// DefaultRetain is the retain flag used when a script load does not
		// give one.
		DefaultRetain bool
	}

	// LoopOptions controls line-by-line execution.
	LoopOptions struct {
		// Prompt is written to stdout before each line when non-empty.
		Prompt string
		// CommentPrefix marks lines that are skipped.
		CommentPrefix string
		// Echo writes each line to stdout before running it.
		Echo bool
		// StopOnError ends the loop at the first failing line.
		StopOnError bool
	}

	// LoopStats summarizes a Loop run.
	LoopStats struct {
		Lines    int
		Failures int
		Exited   bool
	}
)

// New creates a Session dispatching through registry.
func New(registry *plugin.Registry, opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Session{
		id:       opts.ID,
		registry: registry,
		buffers:  buffer.NewStore(),
		logger:   logger.With("session", shortID(opts.ID)),
		metrics:  opts.Metrics,
		opts:     opts,
	}
	s.dispatcher = dispatch.New(registry, s.buffers,
		dispatch.WithHost(s),
		dispatch.WithLogger(s.logger),
		dispatch.WithMetrics(s.metrics),
	)
	s.manager = script.NewManager(script.WithManagerMetrics(s.metrics))
	s.scripts = script.NewRunner(s.manager, s,
		script.WithLogger(s.logger),
		script.WithMetrics(s.metrics),
		script.WithMaxScriptBytes(opts.MaxScriptBytes),
	)
	s.metrics.SessionOpened()
	return s
}

// SessionID returns the session's unique ID.
func (s *Session) SessionID() string { return s.id }

// Buffers returns the session's buffer store.
func (s *Session) Buffers() *buffer.Store { return s.buffers }

// Plugins returns the shared plugin registry.
func (s *Session) Plugins() *plugin.Registry { return s.registry }

// Scripts returns the session's script runner.
func (s *Session) Scripts() *script.Runner { return s.scripts }

// DefaultRetain reports the retain flag used when a script load omits it.
func (s *Session) DefaultRetain() bool { return s.opts.DefaultRetain }

// Exec runs a tokenized command.
func (s *Session) Exec(ctx context.Context, stdio plugin.IO, argv []string) error {
	return s.dispatcher.Exec(ctx, stdio, argv)
}

// Dispatch runs one command line and returns its failure.
func (s *Session) Dispatch(ctx context.Context, stdio plugin.IO, line string) error {
	return s.dispatcher.Dispatch(ctx, stdio, line).Err
}

// Run runs one command line and returns the full result.
func (s *Session) Run(ctx context.Context, stdio plugin.IO, line string) dispatch.Result {
	return s.dispatcher.Dispatch(ctx, stdio, line)
}

// Loop reads lines from r and dispatches each until EOF, an exit command or
// context cancellation. Failing lines are reported and, unless
// StopOnError is set, do not stop the loop.
func (s *Session) Loop(ctx context.Context, r io.Reader, stdio plugin.IO, opts LoopOptions) (LoopStats, error) {
	var stats LoopStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	prompt := func() {
		if opts.Prompt != "" && stdio.Stdout != nil {
			fmt.Fprint(stdio.Stdout, opts.Prompt)
		}
	}

	prompt()
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := scanner.Text()
		if skip(line, opts.CommentPrefix) {
			prompt()
			continue
		}
		if opts.Echo && stdio.Stdout != nil {
			fmt.Fprintln(stdio.Stdout, line)
		}

		stats.Lines++
		res := s.Run(ctx, stdio, line)
		if !res.OK() {
			stats.Failures++
			if opts.StopOnError {
				return stats, res.Err
			}
		}
		if res.Exit {
			stats.Exited = true
			return stats, nil
		}
		prompt()
	}
	return stats, scanner.Err()
}

// Interactive runs a line-edited loop on t, whose underlying terminal must
// be in raw mode. The terminal draws the prompt; opts.Prompt and opts.Echo
// are ignored. Command output goes through t so line endings are translated.
func (s *Session) Interactive(ctx context.Context, t *term.Terminal, opts LoopOptions) (LoopStats, error) {
	var stats LoopStats
	stdio := plugin.IO{Stdout: buffer.ConsoleSink(t), Stderr: t}
	for {
		line, err := t.ReadLine()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if skip(line, opts.CommentPrefix) {
			continue
		}

		stats.Lines++
		res := s.Run(ctx, stdio, line)
		if !res.OK() {
			stats.Failures++
			if opts.StopOnError {
				return stats, res.Err
			}
		}
		if res.Exit {
			stats.Exited = true
			return stats, nil
		}
	}
}

// Close discards the session's script environments.
func (s *Session) Close() error {
	s.manager.Close()
	s.metrics.SessionClosed()
	return nil
}

func skip(line, commentPrefix string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || (commentPrefix != "" && strings.HasPrefix(trimmed, commentPrefix))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
