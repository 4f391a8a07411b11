// SPDX-License-Identifier: MPL-2.0

package text

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/clishell/clishell/internal/plugin"
)

const wcSyntax = "[-lwcm] [<file>...]"

type wcCounts struct {
	lines int64
	words int64
	bytes int64
	chars int64
}

func runWc(_ context.Context, inv *plugin.Invocation) error {
	fs := plugin.NewFlagSet(inv.Name)
	showLines := fs.BoolP("lines", "l", false, "print line count")
	showWords := fs.BoolP("words", "w", false, "print word count")
	showBytes := fs.BoolP("bytes", "c", false, "print byte count")
	showChars := fs.BoolP("chars", "m", false, "print character count")
	files, err := inv.ParseFlags(fs, wcSyntax, 0)
	if err != nil {
		return err
	}
	if !*showLines && !*showWords && !*showBytes && !*showChars {
		*showLines, *showWords, *showBytes = true, true, true
	}
	show := func(c wcCounts, name string) {
		var parts []string
		if *showLines {
			parts = append(parts, fmt.Sprintf("%7d", c.lines))
		}
		if *showWords {
			parts = append(parts, fmt.Sprintf("%7d", c.words))
		}
		if *showBytes {
			parts = append(parts, fmt.Sprintf("%7d", c.bytes))
		}
		if *showChars && !*showBytes {
			parts = append(parts, fmt.Sprintf("%7d", c.chars))
		}
		if name != "" {
			parts = append(parts, name)
		}
		fmt.Fprintln(inv.Stdout, strings.Join(parts, " "))
	}

	var total wcCounts
	err = processFilesOrStdin(files, inv.Stdin, inv.Name, func(r io.Reader, filename string, _, _ int) error {
		c, err := count(r)
		if err != nil {
			return err
		}
		total.lines += c.lines
		total.words += c.words
		total.bytes += c.bytes
		total.chars += c.chars
		if filename == "-" {
			filename = ""
		}
		show(c, filename)
		return nil
	})
	if err != nil {
		return err
	}
	if len(files) > 1 {
		show(total, "total")
	}
	return nil
}

func count(r io.Reader) (wcCounts, error) {
	var c wcCounts
	reader := bufio.NewReader(r)
	inWord := false
	for {
		ru, size, err := reader.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return c, nil
			}
			return c, fmt.Errorf("reading input: %w", err)
		}
		c.bytes += int64(size)
		c.chars++
		if ru == '\n' {
			c.lines++
		}
		if unicode.IsSpace(ru) {
			inWord = false
		} else if !inWord {
			inWord = true
			c.words++
		}
	}
}
