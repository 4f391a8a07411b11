// SPDX-License-Identifier: MPL-2.0

// Package builtin provides the shell's core commands: output, help, plugin
// listing, session exit, shell properties, command files and timing.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/clishell/clishell/internal/plugin"
	"github.com/clishell/clishell/pkg/cmdline"
)

// Name is the plugin name.
const Name = "builtin"

type (
	// Plugin is the builtin command set.
	Plugin struct {
		props         *Properties
		markdownStyle string
		commentPrefix string
	}

	// Option configures the Plugin.
	Option func(*Plugin)
)

// WithProperties seeds the shell properties.
func WithProperties(initial map[string]string) Option {
	return func(p *Plugin) {
		for k, v := range initial {
			p.props.Set(k, v)
		}
	}
}

// WithMarkdownStyle sets the glamour style used by help.
func WithMarkdownStyle(style string) Option {
	return func(p *Plugin) {
		if style != "" {
			p.markdownStyle = style
		}
	}
}

// WithCommentPrefix sets the prefix of comment lines in sourced files.
func WithCommentPrefix(prefix string) Option {
	return func(p *Plugin) { p.commentPrefix = prefix }
}

// New creates the builtin plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		props:         NewProperties(),
		markdownStyle: "notty",
		commentPrefix: "#",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return Name }

// Version implements plugin.Plugin.
func (p *Plugin) Version() string { return "1.0" }

// Properties returns the shell property store.
func (p *Plugin) Properties() *Properties { return p.props }

// Commands implements plugin.Plugin.
func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Names:  []string{"echo"},
			Syntax: "[<arg>...]",
			Help:   []string{"Prints the arguments separated by single spaces."},
			Run:    p.echo,
		},
		{
			Names:  []string{"help"},
			Syntax: "[-p <plugin>] [<filter>...]",
			Help: []string{
				"Shows syntax and help text of commands.",
				"Filters match command names by prefix; -p restricts the list to one plugin.",
			},
			Run: p.help,
		},
		{
			Names:  []string{"list-plugins"},
			Syntax: "[-v]",
			Help:   []string{"Lists registered plugins; -v adds their commands and instance methods."},
			Run:    p.listPlugins,
		},
		{
			Names:  []string{"exit", "quit", "bye"},
			Help:   []string{"Ends the session."},
			Run:    p.exit,
		},
		{
			Names:  []string{"set-property"},
			Syntax: "<name> <value>",
			Help:   []string{"Sets a shell property."},
			Run:    p.setProperty,
		},
		{
			Names:  []string{"get-properties"},
			Syntax: "[<filter>...]",
			Help: []string{
				"Prints name=value for shell properties.",
				"Each filter is a regular expression matched against the start of the name.",
			},
			Run: p.getProperties,
		},
		{
			Names:  []string{"load-properties"},
			Syntax: "<file.toml>",
			Help:   []string{"Loads shell properties from a TOML file."},
			Run:    p.loadProperties,
		},
		{
			Names:  []string{"save-properties"},
			Syntax: "<file.toml>",
			Help:   []string{"Writes the shell properties to a TOML file."},
			Run:    p.saveProperties,
		},
		{
			Names:  []string{"source"},
			Syntax: "<file>",
			Help:   []string{"Runs every line of a command file. Blank lines and comments are skipped."},
			Run:    p.source,
		},
		{
			Names:  []string{"time"},
			Syntax: "<command> [<arg>...]",
			Help:   []string{"Runs a command and reports how long it took on the error stream."},
			Run:    p.time,
		},
	}
}

// Instance exposes the shell properties to scripts.
func (p *Plugin) Instance() plugin.Instance {
	return plugin.Methods{
		"getProperty": func(_ context.Context, inv *plugin.Invocation) error {
			if len(inv.Args) != 1 {
				return inv.Usage("<name>", "expected one argument")
			}
			v, ok := p.props.Get(inv.Args[0])
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownProperty, inv.Args[0])
			}
			_, err := io.WriteString(inv.Stdout, v)
			return err
		},
		"setProperty": func(_ context.Context, inv *plugin.Invocation) error {
			if len(inv.Args) != 2 {
				return inv.Usage("<name> <value>", "expected two arguments")
			}
			p.props.Set(inv.Args[0], inv.Args[1])
			return nil
		},
	}
}

func (p *Plugin) echo(_ context.Context, inv *plugin.Invocation) error {
	_, err := io.WriteString(inv.Stdout, strings.Join(inv.Args, " ")+"\n")
	return err
}

func (p *Plugin) exit(context.Context, *plugin.Invocation) error {
	return plugin.ErrExit
}

func (p *Plugin) listPlugins(_ context.Context, inv *plugin.Invocation) error {
	fs := plugin.NewFlagSet(inv.Name)
	verbose := fs.BoolP("verbose", "v", false, "show commands and methods")
	if _, err := inv.ParseFlags(fs, "[-v]", 0); err != nil {
		return err
	}

	reg := inv.Host.Plugins()
	for _, name := range reg.Names() {
		info, ok := reg.Info(name)
		if !ok {
			continue
		}
		fmt.Fprintf(inv.Stdout, "%s %s\n", info.Name, info.Version)
		if !*verbose {
			continue
		}
		fmt.Fprintf(inv.Stdout, "  commands: %s\n", strings.Join(info.Commands, ", "))
		if len(info.Methods) > 0 {
			fmt.Fprintf(inv.Stdout, "  methods: %s\n", strings.Join(info.Methods, ", "))
		}
	}
	return nil
}

func (p *Plugin) source(ctx context.Context, inv *plugin.Invocation) error {
	if len(inv.Args) != 1 {
		return inv.Usage("<file>", "expected one file")
	}
	data, err := os.ReadFile(inv.Args[0])
	if err != nil {
		return err
	}

	var errs []error
	for i, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || (p.commentPrefix != "" && strings.HasPrefix(trimmed, p.commentPrefix)) {
			continue
		}
		cmd, err := cmdline.Parse(line)
		if err == nil {
			err = inv.Host.Exec(ctx, inv.IO, cmd.Argv())
		}
		if errors.Is(err, plugin.ErrExit) {
			break
		}
		if err != nil {
			err = fmt.Errorf("%s:%d: %w", inv.Args[0], i+1, err)
			fmt.Fprintln(inv.Stderr, err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of the commands in %s failed: %w", len(errs), inv.Args[0], errs[0])
	}
	return nil
}

func (p *Plugin) time(ctx context.Context, inv *plugin.Invocation) error {
	if len(inv.Args) == 0 {
		return inv.Usage("<command> [<arg>...]", "expected a command")
	}
	start := time.Now()
	err := inv.Host.Exec(ctx, inv.IO, inv.Args)
	fmt.Fprintf(inv.Stderr, "%s: %s\n", inv.Args[0], time.Since(start).Round(time.Microsecond))
	return err
}
