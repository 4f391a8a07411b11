// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// NewFlagSet returns a flag set for parsing a command's own options.
// Parsing stops at the first positional argument so that nested command
// lines keep their flags, and errors are returned rather than printed.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	return fs
}

// Usage builds a UsageError for inv's command.
func (inv *Invocation) Usage(syntax, format string, args ...any) error {
	return &UsageError{Command: inv.Name, Syntax: syntax, Reason: fmt.Sprintf(format, args...)}
}

// ParseFlags parses inv.Args with fs and returns the positional arguments.
// At least minArgs positionals are required.
func (inv *Invocation) ParseFlags(fs *pflag.FlagSet, syntax string, minArgs int) ([]string, error) {
	if err := fs.Parse(inv.Args); err != nil {
		return nil, inv.Usage(syntax, "%v", err)
	}
	rest := fs.Args()
	if len(rest) < minArgs {
		return nil, inv.Usage(syntax, "expected at least %d argument(s), got %d", minArgs, len(rest))
	}
	return rest, nil
}
