// SPDX-License-Identifier: MPL-2.0

// Package text provides stream utilities (wc, head, tail, grep, sort, uniq)
// that read files or their standard input, typically a buffer supplied
// through feed-buffer.
package text

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/clishell/clishell/internal/plugin"
)

// Name is the plugin name.
const Name = "text"

type (
	// Plugin is the text utility command set.
	Plugin struct{}

	// inputProcessor handles one input stream. filename is "-" for stdin;
	// index and total are 0 for stdin.
	inputProcessor func(r io.Reader, filename string, index, total int) error
)

// New creates the text plugin.
func New() *Plugin { return &Plugin{} }

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return Name }

// Version implements plugin.Plugin.
func (p *Plugin) Version() string { return "1.0" }

// Commands implements plugin.Plugin.
func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Names: []string{"wc"}, Syntax: wcSyntax, Help: []string{"Counts lines, words and bytes."}, Run: runWc},
		{Names: []string{"head"}, Syntax: headSyntax, Help: []string{"Prints the first lines of the input."}, Run: runHead},
		{Names: []string{"tail"}, Syntax: tailSyntax, Help: []string{"Prints the last lines of the input."}, Run: runTail},
		{Names: []string{"grep"}, Syntax: grepSyntax, Help: []string{"Prints lines matching a regular expression."}, Run: runGrep},
		{Names: []string{"sort"}, Syntax: sortSyntax, Help: []string{"Sorts lines."}, Run: runSort},
		{Names: []string{"uniq"}, Syntax: uniqSyntax, Help: []string{"Collapses adjacent duplicate lines."}, Run: runUniq},
	}
}

// processFilesOrStdin runs fn over each named file, or over stdin when no
// files are given.
func processFilesOrStdin(files []string, stdin io.Reader, cmd string, fn inputProcessor) error {
	if len(files) == 0 {
		return fn(stdin, "-", 0, 0)
	}
	for i, name := range files {
		if err := processFile(name, cmd, func(f *os.File) error {
			return fn(f, name, i, len(files))
		}); err != nil {
			return err
		}
	}
	return nil
}

func processFile(name, cmd string, fn func(*os.File) error) (err error) {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%s: %w", cmd, closeErr)
		}
	}()
	return fn(f)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
