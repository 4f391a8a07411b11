// SPDX-License-Identifier: MPL-2.0

// Package cmd implements the clishell command line: the interactive shell,
// one-shot and file-driven dispatch, script loading, the SSH server and
// configuration management.
package cmd
