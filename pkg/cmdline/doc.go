// SPDX-License-Identifier: MPL-2.0

// Package cmdline splits raw shell command lines into a command name and its
// argument tokens.
//
// Tokens are separated by unquoted whitespace. Single- and double-quoted spans
// keep their whitespace and lose their quotes; quoted and unquoted runs that
// touch each other form a single token:
//
//	echo 'hi - you should see this!'   -> [echo] [hi - you should see this!]
//	say "a b"c                         -> [say] [a bc]
//
// Inside double quotes a backslash escapes a double quote or another
// backslash. Single-quoted spans are fully literal.
package cmdline
