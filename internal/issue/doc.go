// SPDX-License-Identifier: MPL-2.0

// Package issue turns failures into user-facing guidance: ActionableError
// carries the failed operation, the resource involved and suggestions, and
// the Markdown catalogue explains the common failure modes of the shell.
package issue
