// SPDX-License-Identifier: MPL-2.0

// Package dispatch turns command lines into handler invocations.
//
// A Dispatcher tokenizes a line, resolves the command name through the plugin
// registry and runs the handler synchronously. The reserved command
// "capture" redirects the output of the command that follows it into a named
// buffer or a file; the redirected command is executed through the same
// Dispatcher as an ordinary nested call.
//
// Failures never escape as panics or abort the caller: they are written to
// the error stream, logged and returned in the Result.
package dispatch
