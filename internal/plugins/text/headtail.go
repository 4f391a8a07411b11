// SPDX-License-Identifier: MPL-2.0

package text

import (
	"context"
	"fmt"
	"io"

	"github.com/clishell/clishell/internal/plugin"
)

const (
	headSyntax = "[-n <lines>] [<file>...]"
	tailSyntax = "[-n <lines>] [<file>...]"
)

func runHead(_ context.Context, inv *plugin.Invocation) error {
	return runLineWindow(inv, headSyntax, func(lines []string, n int) []string {
		return lines[:min(n, len(lines))]
	})
}

func runTail(_ context.Context, inv *plugin.Invocation) error {
	return runLineWindow(inv, tailSyntax, func(lines []string, n int) []string {
		return lines[max(len(lines)-n, 0):]
	})
}

func runLineWindow(inv *plugin.Invocation, syntax string, window func([]string, int) []string) error {
	fs := plugin.NewFlagSet(inv.Name)
	n := fs.IntP("lines", "n", 10, "number of lines")
	files, err := inv.ParseFlags(fs, syntax, 0)
	if err != nil {
		return err
	}
	if *n < 0 {
		return inv.Usage(syntax, "line count must not be negative")
	}
	return processFilesOrStdin(files, inv.Stdin, inv.Name, func(r io.Reader, filename string, index, total int) error {
		if total > 1 {
			if index > 0 {
				fmt.Fprintln(inv.Stdout)
			}
			fmt.Fprintf(inv.Stdout, "==> %s <==\n", filename)
		}
		lines, err := readLines(r)
		if err != nil {
			return err
		}
		for _, line := range window(lines, *n) {
			fmt.Fprintln(inv.Stdout, line)
		}
		return nil
	})
}
