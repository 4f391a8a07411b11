// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/clishell/clishell/internal/buffer"
	"github.com/clishell/clishell/internal/plugin"
	"github.com/clishell/clishell/internal/script"
)

const scriptSyntax = "[-r] [-e <handle>] <path>"

func (p *Plugin) script(ctx context.Context, inv *plugin.Invocation) error {
	host, err := scriptHost(inv)
	if err != nil {
		return err
	}
	fs := plugin.NewFlagSet(inv.Name)
	retain := fs.BoolP("retain", "r", host.DefaultRetain(), "keep the script's bindings")
	handle := fs.StringP("env", "e", host.SessionID(), "environment handle")
	args, err := inv.ParseFlags(fs, scriptSyntax, 1)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return inv.Usage(scriptSyntax, "expected one script path")
	}
	return host.Scripts().RunFile(ctx, args[0], *handle, *retain, inv.IO)
}

func (p *Plugin) listBuffers(_ context.Context, inv *plugin.Invocation) error {
	fs := plugin.NewFlagSet(inv.Name)
	verbose := fs.BoolP("verbose", "v", false, "show sizes")
	names, err := inv.ParseFlags(fs, "[-v] [<name>...]", 0)
	if err != nil {
		return err
	}
	store := inv.Host.Buffers()
	if len(names) == 0 {
		names = store.Names()
	}

	tw := tabwriter.NewWriter(inv.Stdout, 0, 4, 2, ' ', 0)
	var missing []string
	for _, name := range names {
		info, ok := store.Stat(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		if !*verbose {
			fmt.Fprintln(tw, name)
			continue
		}
		state := ""
		if info.Capturing {
			state = "capturing"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, humanize.Bytes(uint64(info.Size)), state)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(missing) > 0 {
		return &buffer.UnknownBufferError{Name: strings.Join(missing, ", ")}
	}
	return nil
}

func (p *Plugin) deleteBuffers(_ context.Context, inv *plugin.Invocation) error {
	if len(inv.Args) == 0 {
		return inv.Usage("<name>...", "expected at least one buffer name")
	}
	var errs []error
	for _, name := range inv.Args {
		if !inv.Host.Buffers().Delete(name) {
			errs = append(errs, &buffer.UnknownBufferError{Name: name})
		}
	}
	return errors.Join(errs...)
}

func (p *Plugin) feedBuffer(ctx context.Context, inv *plugin.Invocation) error {
	if len(inv.Args) < 2 {
		return inv.Usage("<name> <command> [<arg>...]", "expected a buffer name and a command")
	}
	content, err := inv.Host.Buffers().Read(inv.Args[0])
	if err != nil {
		return err
	}
	nested := inv.IO
	nested.Stdin = strings.NewReader(content)
	return inv.Host.Exec(ctx, nested, inv.Args[1:])
}

func (p *Plugin) getResource(ctx context.Context, inv *plugin.Invocation) error {
	if len(inv.Args) != 1 {
		return inv.Usage("<file-or-url>", "expected one resource")
	}
	rc, err := p.open(ctx, inv.Args[0])
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(inv.Stdout, rc)
	return err
}

func (p *Plugin) open(ctx context.Context, resource string) (io.ReadCloser, error) {
	if !strings.Contains(resource, "://") {
		return os.Open(resource)
	}
	u, err := url.Parse(resource)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "file":
		return os.Open(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("get %s: %s", resource, resp.Status)
		}
		return resp.Body, nil
	default:
		return nil, fmt.Errorf("unsupported resource scheme %q", u.Scheme)
	}
}

func (p *Plugin) listEnvs(_ context.Context, inv *plugin.Invocation) error {
	host, err := scriptHost(inv)
	if err != nil {
		return err
	}
	mgr := host.Scripts().Manager()
	tw := tabwriter.NewWriter(inv.Stdout, 0, 4, 2, ' ', 0)
	for _, handle := range mgr.Handles() {
		env, ok := mgr.Lookup(handle)
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d bindings\t%d loads\tcreated %s\n",
			handle, len(env.Bindings()), env.Loads(), humanize.Time(env.Created()))
	}
	return tw.Flush()
}

func (p *Plugin) dropEnv(_ context.Context, inv *plugin.Invocation) error {
	host, err := scriptHost(inv)
	if err != nil {
		return err
	}
	if len(inv.Args) == 0 {
		return inv.Usage("<handle>...", "expected at least one handle")
	}
	var errs []error
	for _, handle := range inv.Args {
		if !host.Scripts().Manager().Drop(handle) {
			errs = append(errs, fmt.Errorf("%w: %s", script.ErrUnknownEnvironment, handle))
		}
	}
	return errors.Join(errs...)
}

func (p *Plugin) showEnv(_ context.Context, inv *plugin.Invocation) error {
	host, err := scriptHost(inv)
	if err != nil {
		return err
	}
	fs := plugin.NewFlagSet(inv.Name)
	handle := fs.StringP("env", "e", host.SessionID(), "environment handle")
	names, err := inv.ParseFlags(fs, "[-e <handle>] [<name>...]", 0)
	if err != nil {
		return err
	}
	env, ok := host.Scripts().Manager().Lookup(*handle)
	if !ok {
		return fmt.Errorf("%w: %s", script.ErrUnknownEnvironment, *handle)
	}

	var bindings []script.Binding
	if len(names) == 0 {
		bindings = env.Bindings()
	} else {
		for _, name := range names {
			v, err := env.Lookup(name)
			if err != nil {
				return err
			}
			bindings = append(bindings, script.Binding{Name: name, Value: v})
		}
	}
	for _, b := range bindings {
		if b.Value.Kind() == script.KindFunction {
			fmt.Fprintf(inv.Stdout, "%s() %s\n", b.Name, b.Value)
			continue
		}
		fmt.Fprintf(inv.Stdout, "%s=%s\t# %s\n", b.Name, b.Value, b.Value.Kind())
	}
	return nil
}
