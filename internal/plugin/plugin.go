// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"io"
	"sort"

	"github.com/clishell/clishell/internal/buffer"
)

type (
	// IO is the set of streams a command runs with.
	IO struct {
		Stdin  io.Reader
		Stdout buffer.Sink
		Stderr io.Writer
	}

	// Host exposes the calling session to a handler.
	Host interface {
		// SessionID identifies the session the command runs in.
		SessionID() string
		// Buffers is the session's buffer store.
		Buffers() *buffer.Store
		// Plugins is the registry the session dispatches through.
		Plugins() *Registry
		// Exec runs argv as a nested command, exactly as if it had been
		// dispatched from a command line, using the given streams.
		Exec(ctx context.Context, stdio IO, argv []string) error
	}

	// Invocation is a single execution of a command.
	Invocation struct {
		IO
		// Name is the command name as typed (may be an alias).
		Name string
		// Args are the argument tokens after the name.
		Args []string
		// Host is the calling session.
		Host Host
	}

	// HandlerFunc executes one command invocation.
	HandlerFunc func(ctx context.Context, inv *Invocation) error

	// Command describes one command a plugin contributes.
	Command struct {
		// Names lists the primary name first, then aliases.
		Names []string
		// Syntax is the argument synopsis shown by help, e.g. "[-v] <name>".
		Syntax string
		// Help is the help text, one entry per line.
		Help []string
		// Run executes the command.
		Run HandlerFunc
	}

	// Plugin is a named provider of commands.
	Plugin interface {
		Name() string
		Version() string
		Commands() []Command
	}

	// InstanceProvider is implemented by plugins that expose a queryable
	// instance to scripts.
	InstanceProvider interface {
		Instance() Instance
	}

	// Initializer is implemented by plugins that need setup after their
	// names have been reserved in the registry.
	Initializer interface {
		Init(ctx context.Context) error
	}

	// Finalizer is implemented by plugins that release resources when they
	// are unregistered.
	Finalizer interface {
		Close() error
	}

	// Method is one callable operation of an Instance. It reads its
	// arguments from the invocation and writes results to inv.Stdout.
	Method func(ctx context.Context, inv *Invocation) error

	// Instance is the queryable side of a plugin.
	Instance interface {
		Method(name string) (Method, bool)
		Methods() []string
	}

	// Methods is an Instance backed by a map.
	Methods map[string]Method
)

// Primary returns the command's primary name.
func (c Command) Primary() string {
	if len(c.Names) == 0 {
		return ""
	}
	return c.Names[0]
}

// Method looks up a method by name.
func (m Methods) Method(name string) (Method, bool) {
	fn, ok := m[name]
	return fn, ok
}

// Methods returns the method names in sorted order.
func (m Methods) Methods() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Arg returns the i-th argument or "" when absent.
func (inv *Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}
