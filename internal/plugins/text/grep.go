// SPDX-License-Identifier: MPL-2.0

package text

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/clishell/clishell/internal/plugin"
)

const grepSyntax = "[-ivnc] <pattern> [<file>...]"

// ErrNoMatch is returned by grep when no line matched.
var ErrNoMatch = errors.New("no match")

func runGrep(_ context.Context, inv *plugin.Invocation) error {
	fs := plugin.NewFlagSet(inv.Name)
	ignoreCase := fs.BoolP("ignore-case", "i", false, "ignore case")
	invert := fs.BoolP("invert-match", "v", false, "select non-matching lines")
	lineNumbers := fs.BoolP("line-number", "n", false, "prefix lines with their number")
	countOnly := fs.BoolP("count", "c", false, "print only the number of matching lines")
	args, err := inv.ParseFlags(fs, grepSyntax, 1)
	if err != nil {
		return err
	}

	pattern := args[0]
	if *ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return inv.Usage(grepSyntax, "invalid pattern: %v", err)
	}

	matched := 0
	files := args[1:]
	err = processFilesOrStdin(files, inv.Stdin, inv.Name, func(r io.Reader, filename string, _, total int) error {
		lines, err := readLines(r)
		if err != nil {
			return err
		}
		prefix := ""
		if total > 1 {
			prefix = filename + ":"
		}
		n := 0
		for i, line := range lines {
			if re.MatchString(line) == *invert {
				continue
			}
			n++
			if *countOnly {
				continue
			}
			if *lineNumbers {
				fmt.Fprintf(inv.Stdout, "%s%d:%s\n", prefix, i+1, line)
			} else {
				fmt.Fprintf(inv.Stdout, "%s%s\n", prefix, line)
			}
		}
		if *countOnly {
			fmt.Fprintf(inv.Stdout, "%s%d\n", prefix, n)
		}
		matched += n
		return nil
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		return ErrNoMatch
	}
	return nil
}
