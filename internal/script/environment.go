// SPDX-License-Identifier: MPL-2.0

package script

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/clishell/clishell/internal/plugin"
)

// Environment is a set of bindings backed by one interpreter instance.
// Bindings persist across scripts run in the same Environment.
type Environment struct {
	handle   string
	retained bool
	created  time.Time

	runner *interp.Runner
	// baseline holds variable names present before any script ran, so that
	// inherited process variables are not reported as bindings.
	baseline map[string]bool

	busy  atomic.Bool
	loads atomic.Int64
}

func newEnvironment(handle string, retained bool) (*Environment, error) {
	runner, err := interp.New(
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(nil, io.Discard, io.Discard),
		interp.ExecHandlers(hostExecHandler),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}
	runner.Reset()

	e := &Environment{
		handle:   handle,
		retained: retained,
		created:  time.Now(),
		runner:   runner,
	}
	if err := runner.Run(context.Background(), &syntax.File{}); err != nil {
		return nil, fmt.Errorf("failed to initialize interpreter: %w", err)
	}
	e.baseline = make(map[string]bool, len(runner.Vars))
	for name := range runner.Vars {
		e.baseline[name] = true
	}
	return e, nil
}

// Handle returns the key the Environment was created under.
func (e *Environment) Handle() string { return e.handle }

// Retained reports whether the Environment outlives a single script.
func (e *Environment) Retained() bool { return e.retained }

// Created returns the creation time.
func (e *Environment) Created() time.Time { return e.created }

// Loads returns how many scripts have run in the Environment.
func (e *Environment) Loads() int64 { return e.loads.Load() }

// Busy reports whether a script is currently executing in the Environment.
func (e *Environment) Busy() bool { return e.busy.Load() }

// Lookup resolves name in this Environment only.
func (e *Environment) Lookup(name string) (Value, error) {
	if body, ok := e.runner.Funcs[name]; ok {
		return functionValue(body), nil
	}
	if vr, ok := e.runner.Vars[name]; ok && vr.IsSet() && !e.baseline[name] {
		return fromVariable(vr), nil
	}
	return Value{}, &UndefinedBindingError{Name: name}
}

// Bindings returns every binding defined by scripts, sorted by name.
func (e *Environment) Bindings() []Binding {
	var out []Binding
	for name, body := range e.runner.Funcs {
		out = append(out, Binding{Name: name, Value: functionValue(body)})
	}
	for name, vr := range e.runner.Vars {
		if e.baseline[name] || !vr.IsSet() {
			continue
		}
		if _, shadowed := e.runner.Funcs[name]; shadowed {
			continue
		}
		out = append(out, Binding{Name: name, Value: fromVariable(vr)})
	}
	slices.SortFunc(out, func(a, b Binding) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Define binds name to v, replacing any earlier binding of that name.
func (e *Environment) Define(ctx context.Context, name string, v Value) error {
	if !syntax.ValidName(name) {
		return fmt.Errorf("invalid binding name %q", name)
	}
	src, err := definition(name, v)
	if err != nil {
		return err
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(src), name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	delete(e.baseline, name)
	return e.exec(ctx, prog, plugin.IO{})
}

// exec runs prog with the given streams.
func (e *Environment) exec(ctx context.Context, prog *syntax.File, stdio plugin.IO) error {
	var stdout io.Writer = io.Discard
	if stdio.Stdout != nil {
		stdout = stdio.Stdout
	}
	stderr := stdio.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	if err := interp.StdIO(stdio.Stdin, stdout, stderr)(e.runner); err != nil {
		return err
	}
	return e.runner.Run(ctx, prog)
}

func definition(name string, v Value) (string, error) {
	// A name is either a function or a variable binding, never both.
	switch v.kind {
	case KindFunction:
		return "unset -v " + name + "\n" + name + "() " + v.text + "\n", nil
	case KindText, KindNumber:
		return "unset -f " + name + "\nunset -v " + name + "\n" + name + "=" + quote(v.text) + "\n", nil
	case KindStructured:
		assign := name + "=" + v.String()
		if v.fields != nil {
			assign = "declare -A " + assign
		}
		return "unset -f " + name + "\nunset -v " + name + "\n" + assign + "\n", nil
	default:
		return "", fmt.Errorf("cannot define %s: empty value", name)
	}
}

func functionValue(body *syntax.Stmt) Value {
	var sb strings.Builder
	if err := syntax.NewPrinter().Print(&sb, body); err != nil {
		return Value{kind: KindFunction}
	}
	return Value{kind: KindFunction, text: strings.TrimSpace(sb.String())}
}

// quote renders s as a single shell word.
func quote(s string) string {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return q
}
