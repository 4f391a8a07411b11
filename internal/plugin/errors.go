// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCommand is returned when no registered plugin handles a name.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrDuplicateName is returned when registering a plugin whose name, or
	// one of whose command names, is already taken.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrUnknownPlugin is returned when unregistering a name that is not registered.
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrInvalidPlugin is returned for plugins with empty names or commands
	// without a handler.
	ErrInvalidPlugin = errors.New("invalid plugin")
	// ErrExit is returned by a handler to ask the session to end. It is not
	// a failure.
	ErrExit = errors.New("exit requested")
	// ErrUsage is returned when a command is invoked with invalid arguments.
	ErrUsage = errors.New("invalid usage")
)

type (
	// UnknownCommandError names the command that could not be resolved.
	UnknownCommandError struct {
		Name string
	}

	// DuplicateNameError reports a registration conflict.
	DuplicateNameError struct {
		// Kind is "plugin" or "command".
		Kind string
		Name string
		// Owner is the plugin that already holds the name.
		Owner string
	}

	// UsageError reports invalid arguments together with the command synopsis.
	UsageError struct {
		Command string
		Syntax  string
		Reason  string
	}
)

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: %s", e.Name)
}

func (e *UnknownCommandError) Unwrap() error { return ErrUnknownCommand }

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s name %q already registered by plugin %q", e.Kind, e.Name, e.Owner)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

func (e *UsageError) Error() string {
	if e.Syntax == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s (usage: %s %s)", e.Reason, e.Command, e.Syntax)
}

func (e *UsageError) Unwrap() error { return ErrUsage }
