// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/clishell/clishell/internal/dispatch"
	"github.com/clishell/clishell/internal/plugin"
)

var (
	render = glamour.Render

	errNoMatch = errors.New("no commands match")
)

func (p *Plugin) help(_ context.Context, inv *plugin.Invocation) error {
	fs := plugin.NewFlagSet(inv.Name)
	only := fs.StringP("plugin", "p", "", "restrict to one plugin")
	filters, err := inv.ParseFlags(fs, "[-p <plugin>] [<filter>...]", 0)
	if err != nil {
		return err
	}

	md := HelpMarkdown(inv.Host.Plugins(), *only, filters)
	if md == "" {
		return errNoMatch
	}
	out, err := render(md, p.markdownStyle)
	if err != nil {
		return fmt.Errorf("render help: %w", err)
	}
	_, err = io.WriteString(inv.Stdout, out)
	return err
}

// HelpMarkdown renders the commands of reg as markdown, grouped by plugin.
// onlyPlugin and prefix filters narrow the listing; empty values match all.
func HelpMarkdown(reg *plugin.Registry, onlyPlugin string, filters []string) string {
	byPlugin := make(map[string][]*plugin.Handler)
	for _, h := range reg.Handlers() {
		if onlyPlugin != "" && h.Plugin != onlyPlugin {
			continue
		}
		if !matchesPrefix(h.Command.Names, filters) {
			continue
		}
		byPlugin[h.Plugin] = append(byPlugin[h.Plugin], h)
	}

	var sb strings.Builder
	if onlyPlugin == "" && matchesPrefix([]string{dispatch.CaptureCommand}, filters) {
		sb.WriteString("# shell\n\n## " + dispatch.CaptureCommand + "\n\n")
		sb.WriteString("```\n" + dispatch.CaptureCommand + " " + dispatch.CaptureSyntax + "\n```\n\n")
		sb.WriteString("Redirects the output of a command into a buffer or a file.\n")
		sb.WriteString("-t also echoes the output; -e also captures the error stream.\n\n")
	}
	for _, name := range reg.Names() {
		handlers := byPlugin[name]
		if len(handlers) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "# %s\n\n", name)
		for _, h := range handlers {
			c := h.Command
			sb.WriteString("## " + strings.Join(c.Names, ", ") + "\n\n")
			sb.WriteString("```\n" + strings.TrimSpace(c.Primary()+" "+c.Syntax) + "\n```\n\n")
			for _, line := range c.Help {
				sb.WriteString(line + "\n")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func matchesPrefix(names, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		for _, n := range names {
			if strings.HasPrefix(n, f) {
				return true
			}
		}
	}
	return false
}
