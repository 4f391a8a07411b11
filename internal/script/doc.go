// SPDX-License-Identifier: MPL-2.0

// Package script runs shell scripts inside the command shell and keeps the
// environments they define.
//
// Scripts are POSIX shell, interpreted in-process by mvdan.cc/sh/v3. The
// functions and variables a script defines are its bindings. A script loaded
// with retention enabled runs in a persistent Environment owned by the
// Manager and keyed by a handle; later scripts loaded under the same handle
// see and may overwrite those bindings. A script loaded without retention
// runs in an ephemeral environment that is discarded afterwards.
//
// Scripts reach back into the shell through host functions:
//
//	print TEXT...                 write TEXT without a trailing newline
//	println TEXT...               write TEXT followed by a newline
//	dispatchCommand LINE          run LINE as a shell command (status 1 on failure)
//	getPluginInstance NAME        print a handle for NAME's instance (status 1 if absent)
//	"$handle" METHOD ARGS...      call a method on a plugin instance
//
// Any other command name that is neither a shell builtin nor a binding of the
// active environment aborts the script with ErrUndefinedBinding.
package script
