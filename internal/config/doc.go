// SPDX-License-Identifier: MPL-2.0

// Package config loads the shell configuration with Viper, using CUE as the
// file format.
//
// The file is looked up at <config dir>/clishell/config.cue, where the config
// dir is $XDG_CONFIG_HOME (default ~/.config) on Linux, ~/Library/Application
// Support on macOS and %APPDATA% on Windows, and then at ./config.cue. Files
// are validated against the embedded schema.cue before they are merged over
// the defaults. CLISHELL_* environment variables override file values.
package config
