// SPDX-License-Identifier: MPL-2.0

package text

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/clishell/clishell/internal/plugin"
)

const (
	sortSyntax = "[-rnuf] [<file>...]"
	uniqSyntax = "[-cdui] [<file>...]"
)

func runSort(_ context.Context, inv *plugin.Invocation) error {
	fs := plugin.NewFlagSet(inv.Name)
	reverse := fs.BoolP("reverse", "r", false, "reverse the order")
	numeric := fs.BoolP("numeric-sort", "n", false, "compare by numeric value")
	unique := fs.BoolP("unique", "u", false, "drop equal lines")
	foldCase := fs.BoolP("ignore-case", "f", false, "fold lower case to upper case")
	files, err := inv.ParseFlags(fs, sortSyntax, 0)
	if err != nil {
		return err
	}

	var lines []string
	err = processFilesOrStdin(files, inv.Stdin, inv.Name, func(r io.Reader, _ string, _, _ int) error {
		l, err := readLines(r)
		lines = append(lines, l...)
		return err
	})
	if err != nil {
		return err
	}

	key := func(s string) string {
		if *foldCase {
			return strings.ToUpper(s)
		}
		return s
	}
	cmp := func(a, b string) int {
		if *numeric {
			if c := compareFloat(leadingNumber(a), leadingNumber(b)); c != 0 {
				return c
			}
		}
		return strings.Compare(key(a), key(b))
	}
	slices.SortStableFunc(lines, func(a, b string) int {
		if *reverse {
			return cmp(b, a)
		}
		return cmp(a, b)
	})
	if *unique {
		lines = slices.CompactFunc(lines, func(a, b string) bool { return cmp(a, b) == 0 })
	}
	for _, line := range lines {
		fmt.Fprintln(inv.Stdout, line)
	}
	return nil
}

// leadingNumber parses the numeric prefix of s; lines without one sort as 0.
func leadingNumber(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && strings.ContainsRune("+-.0123456789", rune(s[end])) {
		end++
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func runUniq(_ context.Context, inv *plugin.Invocation) error {
	fs := plugin.NewFlagSet(inv.Name)
	showCount := fs.BoolP("count", "c", false, "prefix lines with their number of occurrences")
	duplicatesOnly := fs.BoolP("repeated", "d", false, "only print duplicated lines")
	uniqueOnly := fs.BoolP("unique", "u", false, "only print unique lines")
	ignoreCase := fs.BoolP("ignore-case", "i", false, "ignore case when comparing")
	files, err := inv.ParseFlags(fs, uniqSyntax, 0)
	if err != nil {
		return err
	}

	equal := func(a, b string) bool {
		if *ignoreCase {
			return strings.EqualFold(a, b)
		}
		return a == b
	}
	return processFilesOrStdin(files, inv.Stdin, inv.Name, func(r io.Reader, _ string, _, _ int) error {
		lines, err := readLines(r)
		if err != nil {
			return err
		}
		for i := 0; i < len(lines); {
			j := i + 1
			for j < len(lines) && equal(lines[i], lines[j]) {
				j++
			}
			n := j - i
			if (*duplicatesOnly && n == 1) || (*uniqueOnly && n > 1) {
				i = j
				continue
			}
			if *showCount {
				fmt.Fprintf(inv.Stdout, "%7d %s\n", n, lines[i])
			} else {
				fmt.Fprintln(inv.Stdout, lines[i])
			}
			i = j
		}
		return nil
	})
}
