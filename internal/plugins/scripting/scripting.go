// SPDX-License-Identifier: MPL-2.0

// Package scripting provides the commands that load scripts, manage script
// environments and work with capture buffers, plus the plugin instance that
// scripts use to read and write buffers.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/clishell/clishell/internal/plugin"
	"github.com/clishell/clishell/internal/script"
)

// Name is the plugin name.
const Name = "scripting"

// ErrNoScripting is returned when a command runs in a host without script support.
var ErrNoScripting = errors.New("host does not support scripts")

type (
	// Host is the session capability the scripting commands need beyond
	// plugin.Host.
	Host interface {
		plugin.Host
		Scripts() *script.Runner
		DefaultRetain() bool
	}

	// Plugin is the scripting command set.
	Plugin struct {
		client *http.Client
	}

	// Option configures the Plugin.
	Option func(*Plugin)
)

// WithHTTPClient sets the client used by get-resource.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Plugin) {
		if c != nil {
			p.client = c
		}
	}
}

// New creates the scripting plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{client: http.DefaultClient}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return Name }

// Version implements plugin.Plugin.
func (p *Plugin) Version() string { return "1.0" }

// Commands implements plugin.Plugin.
func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Names:  []string{"script", "vsh"},
			Syntax: scriptSyntax,
			Help: []string{
				"Runs a shell script file.",
				"-r keeps the functions and variables it defines in the environment named by",
				"-e (default: the session ID), where later scripts loaded with the same handle see them.",
				"Without -r the script runs in a fresh environment that sees none of them.",
			},
			Run: p.script,
		},
		{
			Names:  []string{"list-buffers"},
			Syntax: "[-v] [<name>...]",
			Help:   []string{"Lists capture buffers; -v adds sizes."},
			Run:    p.listBuffers,
		},
		{
			Names:  []string{"delete-buffers"},
			Syntax: "<name>...",
			Help:   []string{"Deletes capture buffers."},
			Run:    p.deleteBuffers,
		},
		{
			Names:  []string{"feed-buffer"},
			Syntax: "<name> <command> [<arg>...]",
			Help:   []string{"Runs a command with the content of a buffer as its input."},
			Run:    p.feedBuffer,
		},
		{
			Names:  []string{"get-resource", "get-url"},
			Syntax: "<file-or-url>",
			Help:   []string{"Prints the content of a file or of an http(s) or file URL."},
			Run:    p.getResource,
		},
		{
			Names:  []string{"list-envs"},
			Help:   []string{"Lists retained script environments."},
			Run:    p.listEnvs,
		},
		{
			Names:  []string{"drop-env"},
			Syntax: "<handle>...",
			Help:   []string{"Discards retained script environments."},
			Run:    p.dropEnv,
		},
		{
			Names:  []string{"show-env"},
			Syntax: "[-e <handle>] [<name>...]",
			Help:   []string{"Prints the bindings of a retained script environment."},
			Run:    p.showEnv,
		},
	}
}

// Instance exposes the session's buffers to scripts.
func (p *Plugin) Instance() plugin.Instance {
	return plugin.Methods{
		"getBuffer": func(_ context.Context, inv *plugin.Invocation) error {
			if len(inv.Args) != 1 {
				return inv.Usage("<name>", "expected one buffer name")
			}
			content, err := inv.Host.Buffers().Read(inv.Args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(inv.Stdout, content)
			return err
		},
		"setBuffer": func(_ context.Context, inv *plugin.Invocation) error {
			if len(inv.Args) < 1 {
				return inv.Usage("<name> [<text>...]", "expected a buffer name")
			}
			inv.Host.Buffers().Set(inv.Args[0], strings.Join(inv.Args[1:], " "))
			return nil
		},
		"listBuffers": func(_ context.Context, inv *plugin.Invocation) error {
			for _, name := range inv.Host.Buffers().Names() {
				if _, err := fmt.Fprintln(inv.Stdout, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func scriptHost(inv *plugin.Invocation) (Host, error) {
	h, ok := inv.Host.(Host)
	if !ok {
		return nil, ErrNoScripting
	}
	return h, nil
}
