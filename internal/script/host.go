// SPDX-License-Identifier: MPL-2.0

package script

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/interp"

	"github.com/clishell/clishell/internal/buffer"
	"github.com/clishell/clishell/internal/plugin"
)

// InstancePrefix starts every plugin instance handle handed to scripts.
const InstancePrefix = "plugin:"

type (
	// Host is the session a script runs in.
	Host interface {
		plugin.Host
		// Dispatch runs one command line and returns its failure, if any.
		// The failure has already been reported on stdio.Stderr.
		Dispatch(ctx context.Context, stdio plugin.IO, line string) error
	}

	hostFunc func(ctx context.Context, host Host, stdio plugin.IO, args []string) error

	hostKey struct{}
)

var hostFuncs = map[string]hostFunc{
	"print":             hostPrint,
	"println":           hostPrintln,
	"dispatchCommand":   hostDispatchCommand,
	"getPluginInstance": hostGetPluginInstance,
}

// HostFunctions returns the names of the functions every script can call.
func HostFunctions() []string {
	return slices.Sorted(maps.Keys(hostFuncs))
}

func withHost(ctx context.Context, h Host) context.Context {
	return context.WithValue(ctx, hostKey{}, h)
}

func hostFrom(ctx context.Context) Host {
	h, _ := ctx.Value(hostKey{}).(Host)
	return h
}

// hostExecHandler resolves command names the interpreter could not find
// among builtins and script functions.
func hostExecHandler(_ interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		hc := interp.HandlerCtx(ctx)
		stdio := plugin.IO{
			Stdin:  hc.Stdin,
			Stdout: buffer.ConsoleSink(hc.Stdout),
			Stderr: hc.Stderr,
		}
		if stdio.Stdin == nil {
			stdio.Stdin = strings.NewReader("")
		}
		host := hostFrom(ctx)

		name := args[0]
		if fn, ok := hostFuncs[name]; ok {
			return fn(ctx, host, stdio, args[1:])
		}
		if pluginName, ok := strings.CutPrefix(name, InstancePrefix); ok {
			return callMethod(ctx, host, stdio, pluginName, args[1:])
		}
		return &UndefinedBindingError{Name: name}
	}
}

func hostPrint(_ context.Context, _ Host, stdio plugin.IO, args []string) error {
	_, err := io.WriteString(stdio.Stdout, strings.Join(args, " "))
	return err
}

func hostPrintln(_ context.Context, _ Host, stdio plugin.IO, args []string) error {
	_, err := io.WriteString(stdio.Stdout, strings.Join(args, " ")+"\n")
	return err
}

func hostDispatchCommand(ctx context.Context, host Host, stdio plugin.IO, args []string) error {
	if host == nil {
		return ErrNoHost
	}
	if err := host.Dispatch(ctx, stdio, strings.Join(args, " ")); err != nil {
		return interp.ExitStatus(1)
	}
	return nil
}

func hostGetPluginInstance(_ context.Context, host Host, stdio plugin.IO, args []string) error {
	if host == nil {
		return ErrNoHost
	}
	if len(args) != 1 {
		fmt.Fprintln(stdio.Stderr, "usage: getPluginInstance <name>")
		return interp.ExitStatus(2)
	}
	if _, ok := host.Plugins().Instance(args[0]); !ok {
		return interp.ExitStatus(1)
	}
	_, err := fmt.Fprintln(stdio.Stdout, InstancePrefix+args[0])
	return err
}

func callMethod(ctx context.Context, host Host, stdio plugin.IO, pluginName string, args []string) error {
	if host == nil {
		return ErrNoHost
	}
	if len(args) == 0 {
		return &UndefinedBindingError{Name: InstancePrefix + pluginName}
	}
	inst, ok := host.Plugins().Instance(pluginName)
	if !ok {
		return &UndefinedBindingError{Name: InstancePrefix + pluginName}
	}
	method, ok := inst.Method(args[0])
	if !ok {
		return &UndefinedBindingError{Name: InstancePrefix + pluginName + " " + args[0]}
	}
	inv := &plugin.Invocation{
		IO:   stdio,
		Name: args[0],
		Args: args[1:],
		Host: host,
	}
	if err := method(ctx, inv); err != nil {
		return fmt.Errorf("%s %s: %w", pluginName, args[0], err)
	}
	return nil
}
