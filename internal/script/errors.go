// SPDX-License-Identifier: MPL-2.0

package script

import (
	"errors"
	"fmt"
)

var (
	// ErrUndefinedBinding is returned when a name is not bound in the active
	// environment.
	ErrUndefinedBinding = errors.New("undefined binding")
	// ErrEnvironmentBusy is returned when loading a script into a retained
	// environment that is already executing.
	ErrEnvironmentBusy = errors.New("environment busy")
	// ErrSyntax is returned for scripts that do not parse.
	ErrSyntax = errors.New("syntax error")
	// ErrScriptTooLarge is returned when a script file exceeds the size limit.
	ErrScriptTooLarge = errors.New("script too large")
	// ErrNoHost is returned when a host function is called by a script that
	// runs without a shell session.
	ErrNoHost = errors.New("no host session")
	// ErrUnknownEnvironment is returned for a handle with no retained environment.
	ErrUnknownEnvironment = errors.New("unknown environment")
)

type (
	// UndefinedBindingError names the unresolved binding.
	UndefinedBindingError struct {
		Name string
	}

	// ScriptExecutionError reports a failed script load.
	ScriptExecutionError struct {
		// Script is the script name, usually its path.
		Script string
		// Handle is the environment handle the script ran under.
		Handle string
		Err    error
	}
)

func (e *UndefinedBindingError) Error() string {
	return fmt.Sprintf("undefined binding: %s", e.Name)
}

func (e *UndefinedBindingError) Unwrap() error { return ErrUndefinedBinding }

func (e *ScriptExecutionError) Error() string {
	return fmt.Sprintf("script %s (environment %s): %v", e.Script, e.Handle, e.Err)
}

func (e *ScriptExecutionError) Unwrap() error { return e.Err }
