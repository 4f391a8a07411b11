// SPDX-License-Identifier: MPL-2.0

package cmdline

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrMalformedCommand is the sentinel error wrapped by MalformedCommandError.
var ErrMalformedCommand = errors.New("malformed command")

type (
	// Command is a tokenized command line. The zero value is the empty
	// command produced by a blank line.
	Command struct {
		// Raw is the original line, untouched.
		Raw string
		// Name is the first token.
		Name string
		// Args are the remaining tokens in order.
		Args []string
	}

	// MalformedCommandError reports a line that cannot be tokenized.
	MalformedCommandError struct {
		Line   string
		Offset int
		Reason string
	}
)

// Error implements the error interface.
func (e *MalformedCommandError) Error() string {
	return fmt.Sprintf("malformed command at offset %d: %s", e.Offset, e.Reason)
}

// Unwrap returns ErrMalformedCommand for errors.Is compatibility.
func (e *MalformedCommandError) Unwrap() error { return ErrMalformedCommand }

// Empty reports whether the line held no tokens at all.
func (c Command) Empty() bool { return c.Name == "" && len(c.Args) == 0 }

// Argv returns the name followed by the arguments.
func (c Command) Argv() []string {
	if c.Empty() {
		return nil
	}
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Name)
	return append(argv, c.Args...)
}

// String re-joins the tokens with single spaces, without quoting.
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Parse tokenizes line into a Command.
// A blank line yields the empty Command and a nil error.
func Parse(line string) (Command, error) {
	tokens, err := Split(line)
	if err != nil {
		return Command{}, err
	}
	if len(tokens) == 0 {
		return Command{Raw: line}, nil
	}
	return Command{Raw: line, Name: tokens[0], Args: tokens[1:]}, nil
}

// Split tokenizes line into its words.
func Split(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		// inToken is tracked separately from current.Len() so that an
		// explicitly empty quoted span ('') still yields a token.
		inToken bool
		quote   rune
		quoteAt int
		escaped bool
	)

	for i, r := range line {
		switch {
		case escaped:
			if r != '"' && r != '\\' {
				current.WriteRune('\\')
			}
			current.WriteRune(r)
			escaped = false
		case quote == '"' && r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			quoteAt = i
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}

	if quote != 0 {
		return nil, &MalformedCommandError{
			Line:   line,
			Offset: quoteAt,
			Reason: fmt.Sprintf("unterminated %c quote", quote),
		}
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

// Quote renders token so that Split reads it back unchanged.
// Tokens without whitespace or quote characters are returned as-is.
func Quote(token string) string {
	if token != "" && !strings.ContainsAny(token, " \t\r\n\"'\\") {
		return token
	}
	if !strings.Contains(token, "'") {
		return "'" + token + "'"
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(token)
	return `"` + escaped + `"`
}

// Join quotes each token as needed and joins them into one command line.
func Join(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = Quote(t)
	}
	return strings.Join(quoted, " ")
}
